package room

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/coderoom/coderoom/protocol"
)

func runState(loop *EventLoop, controller *RunController) (state RunState, display string, running bool) {
	loop.Call(func() {
		state = controller.State()
		display = controller.Display()
		running = controller.Running()
	})
	return
}

func stringPtr(s string) *string {
	return &s
}

func TestRunOutput(t *testing.T) {
	loop := NewEventLoop(context.Background())
	defer loop.Close()
	service := &testExecutionService{}
	controller := NewRunController(loop, service)

	state, display, running := runState(loop, controller)
	assert.Equal(t, state, RunIdle)
	assert.Equal(t, display, "")
	assert.Equal(t, running, false)

	var started bool
	loop.Call(func() {
		started = controller.Run(protocol.LanguagePython, "print(1)")
	})
	assert.Equal(t, started, true)
	calls := service.Calls()
	assert.Equal(t, len(calls), 1)
	assert.Equal(t, calls[0].args, &protocol.RunArgs{Language: protocol.LanguagePython, Code: "print(1)"})

	state, display, running = runState(loop, controller)
	assert.Equal(t, state, RunRequesting)
	assert.Equal(t, display, RunPending)
	assert.Equal(t, running, true)

	calls[0].callback.Result(&protocol.RunResult{
		Stdout: stringPtr("1\n"),
		Stderr: stringPtr("warn\n"),
	}, nil)
	state, display, running = runState(loop, controller)
	assert.Equal(t, state, RunOutput)
	assert.Equal(t, display, "1\nwarn\n")
	assert.Equal(t, running, false)
}

func TestRunNoOutput(t *testing.T) {
	loop := NewEventLoop(context.Background())
	defer loop.Close()
	service := &testExecutionService{}
	controller := NewRunController(loop, service)

	loop.Call(func() {
		controller.Run(protocol.LanguageC, "int main() { return 0; }")
	})
	service.Calls()[0].callback.Result(&protocol.RunResult{
		Stdout: stringPtr(""),
		Stderr: stringPtr(""),
	}, nil)

	state, display, _ := runState(loop, controller)
	assert.Equal(t, state, RunOutput)
	assert.Equal(t, display, RunNoOutput)
	assert.NotEqual(t, display, RunPending)
	assert.NotEqual(t, display, RunError)
}

func TestRunError(t *testing.T) {
	loop := NewEventLoop(context.Background())
	defer loop.Close()
	service := &testExecutionService{}
	controller := NewRunController(loop, service)

	loop.Call(func() {
		controller.Run(protocol.LanguageJava, "class A {}")
	})
	service.Calls()[0].callback.Result(nil, errors.New("sandbox unreachable"))

	state, display, running := runState(loop, controller)
	assert.Equal(t, state, RunFailed)
	assert.Equal(t, display, RunError)
	assert.NotEqual(t, display, RunNoOutput)
	assert.Equal(t, running, false)

	// a failed run does not block the next one
	var started bool
	loop.Call(func() {
		started = controller.Run(protocol.LanguageJava, "class B {}")
	})
	assert.Equal(t, started, true)
}

func TestRunSingleFlight(t *testing.T) {
	loop := NewEventLoop(context.Background())
	defer loop.Close()
	service := &testExecutionService{}
	controller := NewRunController(loop, service)

	var first, second bool
	loop.Call(func() {
		first = controller.Run(protocol.LanguagePython, "a")
		second = controller.Run(protocol.LanguagePython, "b")
	})
	assert.Equal(t, first, true)
	assert.Equal(t, second, false)
	assert.Equal(t, len(service.Calls()), 1)
}

func TestRunClearDropsStale(t *testing.T) {
	loop := NewEventLoop(context.Background())
	defer loop.Close()
	service := &testExecutionService{}
	controller := NewRunController(loop, service)

	loop.Call(func() {
		controller.Run(protocol.LanguagePython, "print('old')")
		// an edit clears the output while the run is in flight
		controller.Clear()
	})
	state, display, running := runState(loop, controller)
	assert.Equal(t, state, RunIdle)
	assert.Equal(t, display, "")
	// still single flight until the response arrives
	assert.Equal(t, running, true)

	service.Calls()[0].callback.Result(&protocol.RunResult{Stdout: stringPtr("old\n")}, nil)
	state, display, running = runState(loop, controller)
	assert.Equal(t, state, RunIdle)
	assert.Equal(t, display, "")
	assert.Equal(t, running, false)
}
