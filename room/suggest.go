package room

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/coderoom/coderoom/protocol"
)

type SuggestionState int

const (
	SuggestionIdle SuggestionState = iota
	// waiting out the debounce window
	SuggestionPending
	SuggestionRequesting
	SuggestionHolding
)

func (self SuggestionState) String() string {
	switch self {
	case SuggestionIdle:
		return "idle"
	case SuggestionPending:
		return "pending"
	case SuggestionRequesting:
		return "requesting"
	case SuggestionHolding:
		return "holding"
	default:
		return fmt.Sprintf("unknown(%d)", int(self))
	}
}

// SuggestionContext is the live state a suggestion is computed for.
type SuggestionContext struct {
	Text     string
	Cursor   int
	Language protocol.Language
}

// AppliedSuggestion is an accepted suggestion and the offset it must be inserted at.
type AppliedSuggestion struct {
	Text   string
	Offset int
}

type SuggestionStateFunction = func(state SuggestionState)

type SuggestionSettings struct {
	// quiet time after the last edit before a request is made
	DebounceTimeout time.Duration
}

func DefaultSuggestionSettings() *SuggestionSettings {
	return &SuggestionSettings{
		DebounceTimeout: 600 * time.Millisecond,
	}
}

// SuggestionController debounces edits into suggestion requests and holds the latest answer.
//
// idle -> pending -> requesting -> holding -> idle
//
// An edit from any state restarts the debounce window. Responses are matched to the
// latest issued request by sequence number and any other response is dropped.
// All methods must be called on the controller's event loop.
type SuggestionController struct {
	loop     *EventLoop
	service  SuggestionService
	settings *SuggestionSettings

	state      SuggestionState
	context    SuggestionContext
	suggestion string

	debounceTimer *time.Timer
	// bumped on every edit. A timer fire carrying an older value is ignored.
	debounceSeq uint64
	// the last issued request
	requestSeq uint64

	closed bool

	stateCallbacks CallbackList[SuggestionStateFunction]
}

func NewSuggestionController(
	loop *EventLoop,
	service SuggestionService,
	settings *SuggestionSettings,
) *SuggestionController {
	return &SuggestionController{
		loop:     loop,
		service:  service,
		settings: settings,
		state:    SuggestionIdle,
	}
}

func (self *SuggestionController) AddStateCallback(stateCallback SuggestionStateFunction) func() {
	return self.stateCallbacks.add(stateCallback)
}

func (self *SuggestionController) State() SuggestionState {
	return self.state
}

// Suggestion is the held suggestion, or empty when not holding.
func (self *SuggestionController) Suggestion() string {
	return self.suggestion
}

func (self *SuggestionController) Context() SuggestionContext {
	return self.context
}

// OnEdit is called for every local change of the text.
func (self *SuggestionController) OnEdit(context SuggestionContext) {
	if self.closed {
		return
	}
	self.stopDebounce()
	self.suggestion = ""
	self.context = context

	self.debounceSeq += 1
	debounceSeq := self.debounceSeq
	self.debounceTimer = time.AfterFunc(self.settings.DebounceTimeout, func() {
		self.loop.Post(func() {
			self.fire(debounceSeq)
		})
	})
	glog.V(2).Infof("[s]debounce %d\n", debounceSeq)
	self.setState(SuggestionPending)
}

// OnCursor is called when the cursor moves without a text change.
func (self *SuggestionController) OnCursor(cursor int) {
	if self.closed || cursor == self.context.Cursor {
		return
	}
	switch self.state {
	case SuggestionPending:
		// the request reads the cursor when it fires
		self.context.Cursor = cursor
	case SuggestionRequesting, SuggestionHolding:
		glog.V(2).Infof("[s]cursor moved, drop %d\n", self.requestSeq)
		self.suggestion = ""
		self.setState(SuggestionIdle)
	}
}

// OnRemoteText is called when a peer replaced the text. Remote text never starts a request.
// A pending request keeps its window and is re-keyed to the new text.
// An in flight or held suggestion was computed for other text and is dropped.
func (self *SuggestionController) OnRemoteText(text string, cursor int) {
	if self.closed {
		return
	}
	switch self.state {
	case SuggestionPending:
		self.context.Text = text
		self.context.Cursor = cursor
	case SuggestionRequesting, SuggestionHolding:
		glog.V(2).Infof("[s]remote text, drop %d\n", self.requestSeq)
		self.suggestion = ""
		self.setState(SuggestionIdle)
	}
}

func (self *SuggestionController) fire(debounceSeq uint64) {
	if self.closed || debounceSeq != self.debounceSeq || self.state != SuggestionPending {
		return
	}
	self.debounceTimer = nil

	self.requestSeq += 1
	requestSeq := self.requestSeq
	args := &protocol.AutocompleteArgs{
		Code:           self.context.Text,
		CursorPosition: self.context.Cursor,
		Language:       self.context.Language,
	}
	glog.V(2).Infof("[s]request %d\n", requestSeq)
	self.setState(SuggestionRequesting)

	self.service.Autocomplete(args, NewApiCallback[*protocol.AutocompleteResult](
		func(result *protocol.AutocompleteResult, err error) {
			self.loop.Post(func() {
				self.resolve(requestSeq, result, err)
			})
		},
	))
}

func (self *SuggestionController) resolve(requestSeq uint64, result *protocol.AutocompleteResult, err error) {
	if self.closed {
		return
	}
	if requestSeq != self.requestSeq || self.state != SuggestionRequesting {
		glog.V(2).Infof("[s]drop stale response %d (latest %d, %s)\n", requestSeq, self.requestSeq, self.state)
		return
	}
	if err != nil {
		glog.Infof("[s]autocomplete error = %s\n", err)
		self.setState(SuggestionIdle)
		return
	}
	if result == nil || result.Suggestion == "" {
		glog.V(2).Infof("[s]empty response %d\n", requestSeq)
		self.setState(SuggestionIdle)
		return
	}
	glog.V(2).Infof("[s]hold %d\n", requestSeq)
	self.suggestion = result.Suggestion
	self.setState(SuggestionHolding)
}

// Dismiss drops any pending, in flight, or held suggestion.
func (self *SuggestionController) Dismiss() {
	self.stopDebounce()
	self.suggestion = ""
	self.setState(SuggestionIdle)
}

// Accept takes the held suggestion. Returns false when there is nothing to accept.
func (self *SuggestionController) Accept() (AppliedSuggestion, bool) {
	if self.closed || self.state != SuggestionHolding {
		return AppliedSuggestion{}, false
	}
	applied := AppliedSuggestion{
		Text:   self.suggestion,
		Offset: self.context.Cursor,
	}
	self.suggestion = ""
	self.setState(SuggestionIdle)
	return applied, true
}

func (self *SuggestionController) Close() {
	self.Dismiss()
	self.closed = true
	self.stateCallbacks.clear()
}

func (self *SuggestionController) stopDebounce() {
	if self.debounceTimer != nil {
		self.debounceTimer.Stop()
		self.debounceTimer = nil
	}
}

func (self *SuggestionController) setState(state SuggestionState) {
	if self.state == state {
		return
	}
	self.state = state
	for _, stateCallback := range self.stateCallbacks.get() {
		stateCallback(state)
	}
}
