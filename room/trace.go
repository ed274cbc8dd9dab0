package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang/glog"
)

// HandleError runs `do` and recovers a panic from it, so a failing callback or loop event
// only affects itself. The panic is logged under `tag` and passed to each handler as an error.
// Returns nil when `do` did not panic.
func HandleError(tag string, do func(), handlers ...func(error)) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		glog.Warningf("%srecovered %s\n", tag, panicJson(r, debug.Stack()))
		if rErr, ok := r.(error); ok {
			err = rErr
		} else {
			err = errors.New(fmt.Sprint(r))
		}
		for _, handler := range handlers {
			handler(err)
		}
	}()
	do()
	return nil
}

func panicJson(r any, stack []byte) string {
	frames := []string{}
	for _, line := range strings.Split(string(stack), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			frames = append(frames, line)
		}
	}
	panicJson, _ := json.Marshal(map[string]any{
		"panic": fmt.Sprint(r),
		"type":  fmt.Sprintf("%T", r),
		"stack": frames,
	})
	return string(panicJson)
}

// TraceWithReturnError logs how long `do` took under `tag`, with its error if any.
func TraceWithReturnError[R any](tag string, do func() (R, error)) (R, error) {
	start := time.Now()
	result, err := do()
	millis := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		glog.Infof("%s (%.2fms) err = %s\n", tag, millis, err)
	} else {
		glog.Infof("%s (%.2fms)\n", tag, millis)
	}
	return result, err
}
