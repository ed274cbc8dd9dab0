package room

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/coderoom/coderoom/protocol"
)

const RunNoOutput = "(no output)"
const RunError = "Error running code"
const RunPending = "Running…"

type RunState int

const (
	// nothing to show
	RunIdle RunState = iota
	RunRequesting
	RunOutput
	RunFailed
)

func (self RunState) String() string {
	switch self {
	case RunIdle:
		return "idle"
	case RunRequesting:
		return "requesting"
	case RunOutput:
		return "output"
	case RunFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(self))
	}
}

type RunStateFunction = func(state RunState)

// RunController makes one execution request at a time and holds the displayed result.
// All methods must be called on the controller's event loop.
type RunController struct {
	loop    *EventLoop
	service ExecutionService

	state  RunState
	output string
	// a request is outstanding. Stays set after a clear until the response arrives.
	inFlight bool
	runSeq   uint64

	closed bool

	stateCallbacks CallbackList[RunStateFunction]
}

func NewRunController(loop *EventLoop, service ExecutionService) *RunController {
	return &RunController{
		loop:    loop,
		service: service,
		state:   RunIdle,
	}
}

func (self *RunController) AddStateCallback(stateCallback RunStateFunction) func() {
	return self.stateCallbacks.add(stateCallback)
}

func (self *RunController) State() RunState {
	return self.state
}

func (self *RunController) Running() bool {
	return self.inFlight
}

// Display is the text for the output panel. Empty means the panel is hidden.
func (self *RunController) Display() string {
	switch self.state {
	case RunRequesting:
		return RunPending
	case RunOutput, RunFailed:
		return self.output
	default:
		return ""
	}
}

// Run starts an execution of `code`. Returns false if a run is already in flight.
func (self *RunController) Run(language protocol.Language, code string) bool {
	if self.closed || self.inFlight {
		return false
	}
	self.runSeq += 1
	runSeq := self.runSeq
	self.inFlight = true
	self.output = ""
	glog.V(2).Infof("[r]run %d %s\n", runSeq, language)
	self.setState(RunRequesting)

	args := &protocol.RunArgs{
		Language: language,
		Code:     code,
	}
	self.service.Run(args, NewApiCallback[*protocol.RunResult](
		func(result *protocol.RunResult, err error) {
			self.loop.Post(func() {
				self.resolve(runSeq, result, err)
			})
		},
	))
	return true
}

func (self *RunController) resolve(runSeq uint64, result *protocol.RunResult, err error) {
	if runSeq == self.runSeq {
		self.inFlight = false
	}
	if self.closed {
		return
	}
	if runSeq != self.runSeq || self.state != RunRequesting {
		glog.V(2).Infof("[r]drop stale result %d\n", runSeq)
		return
	}
	if err != nil {
		glog.Infof("[r]run error = %s\n", err)
		self.output = RunError
		self.setState(RunFailed)
		return
	}
	output := ""
	if result != nil {
		output = result.Output()
	}
	if output == "" {
		output = RunNoOutput
	}
	self.output = output
	self.setState(RunOutput)
}

// Clear hides the current result. A result still in flight is dropped when it arrives.
func (self *RunController) Clear() {
	self.output = ""
	self.setState(RunIdle)
}

func (self *RunController) Close() {
	self.Clear()
	self.closed = true
	self.stateCallbacks.clear()
}

func (self *RunController) setState(state RunState) {
	if self.state == state {
		return
	}
	self.state = state
	for _, stateCallback := range self.stateCallbacks.get() {
		stateCallback(state)
	}
}
