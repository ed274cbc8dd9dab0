package room

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/coderoom/coderoom/protocol"
)

const LoadRoomError = "Failed to load room"

// Channel is the realtime connection a room session mirrors its document over.
// `ChannelSession` is the websocket implementation.
type Channel interface {
	AddMessageCallback(messageCallback MessageFunction) func()
	AddStatusCallback(statusCallback StatusFunction) func()
	Open()
	Send(text string)
	Close()
}

type ChannelFactory func(ctx context.Context, roomId string) Channel

func NewWebsocketChannelFactory(wsUrl string, settings *ChannelSettings) ChannelFactory {
	return func(ctx context.Context, roomId string) Channel {
		return NewChannelSession(ctx, RoomChannelUrl(wsUrl, roomId), settings)
	}
}

// Services are the request/response collaborators of a room session.
type Services struct {
	Directory   RoomDirectory
	Suggestions SuggestionService
	Execution   ExecutionService
}

func NewApiServices(api *RoomApi) *Services {
	return &Services{
		Directory:   api,
		Suggestions: api,
		Execution:   api,
	}
}

type RoomSessionSettings struct {
	Language           protocol.Language
	SuggestionSettings *SuggestionSettings
}

func DefaultRoomSessionSettings() *RoomSessionSettings {
	return &RoomSessionSettings{
		Language:           protocol.DefaultLanguage,
		SuggestionSettings: DefaultSuggestionSettings(),
	}
}

// comparable
type SessionState struct {
	RoomId   string
	Document Document
	Language protocol.Language
	Status   ConnectionStatus

	SuggestionState SuggestionState
	// the held suggestion, empty unless `SuggestionState` is holding
	Suggestion string

	RunState RunState
	// output panel text, see `RunController.Display`
	RunOutput string
	Running   bool

	// set when the initial snapshot could not be loaded
	LoadError string
}

func (self SessionState) LoadingSuggestion() bool {
	return self.SuggestionState == SuggestionRequesting
}

type SessionStateFunction = func(state SessionState)

// RoomSession mirrors one room's document between a local editor and the room channel,
// and drives suggestions and runs for it.
//
// Every event (local edit, channel message, status change, timer, service response) is handled
// on the session's event loop. The editor must only be changed through the session.
//
// The initial snapshot from the directory and the first channel message race.
// Whichever is applied last wins. There is no ordering token between them to do better.
type RoomSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	sessionId Id
	roomId    string

	loop     *EventLoop
	editor   Editor
	services *Services
	channel  Channel

	echoGuard   EchoGuard
	suggestions *SuggestionController
	runs        *RunController

	// owned by the loop
	document  Document
	language  protocol.Language
	status    ConnectionStatus
	loadError string

	removeChangeCallback func()

	stateLock      sync.Mutex
	state          SessionState
	stateCallbacks CallbackList[SessionStateFunction]

	closeOnce sync.Once
}

func NewRoomSessionWithDefaults(ctx context.Context, roomId string, api *RoomApi, wsUrl string) *RoomSession {
	return NewRoomSession(
		ctx,
		roomId,
		NewBuffer(),
		NewApiServices(api),
		NewWebsocketChannelFactory(wsUrl, DefaultChannelSettings()),
		DefaultRoomSessionSettings(),
	)
}

// NewRoomSession starts the session: the snapshot fetch and the channel open begin immediately.
func NewRoomSession(
	ctx context.Context,
	roomId string,
	editor Editor,
	services *Services,
	channelFactory ChannelFactory,
	settings *RoomSessionSettings,
) *RoomSession {
	cancelCtx, cancel := context.WithCancel(ctx)
	loop := NewEventLoop(cancelCtx)

	session := &RoomSession{
		ctx:         cancelCtx,
		cancel:      cancel,
		sessionId:   NewId(),
		roomId:      roomId,
		loop:        loop,
		editor:      editor,
		services:    services,
		suggestions: NewSuggestionController(loop, services.Suggestions, settings.SuggestionSettings),
		runs:        NewRunController(loop, services.Execution),
		language:    settings.Language,
		status:      StatusConnecting,
	}
	session.suggestions.AddStateCallback(func(state SuggestionState) {
		session.notify()
	})
	session.runs.AddStateCallback(func(state RunState) {
		session.notify()
	})

	loop.Post(func() {
		session.start(channelFactory)
	})
	return session
}

func (self *RoomSession) start(channelFactory ChannelFactory) {
	glog.V(1).Infof("[session]%s start room %s\n", self.sessionId, self.roomId)

	self.document = NewDocument(self.editor.Text(), self.editor.Cursor())
	self.removeChangeCallback = self.editor.AddChangeCallback(self.handleEditorChange)

	self.channel = channelFactory(self.ctx, self.roomId)
	self.channel.AddMessageCallback(func(text string) {
		self.loop.Post(func() {
			self.handleRemoteMessage(text)
		})
	})
	self.channel.AddStatusCallback(func(status ConnectionStatus) {
		self.loop.Post(func() {
			self.handleStatus(status)
		})
	})
	self.channel.Open()

	self.services.Directory.GetRoom(self.roomId, NewApiCallback[*protocol.Room](
		func(room *protocol.Room, err error) {
			self.loop.Post(func() {
				self.handleSnapshot(room, err)
			})
		},
	))

	self.notify()
}

func (self *RoomSession) SessionId() Id {
	return self.sessionId
}

func (self *RoomSession) RoomId() string {
	return self.roomId
}

// the editor text changed, either typed locally or applied from the channel under the echo guard
func (self *RoomSession) handleEditorChange(text string) {
	self.document = NewDocument(text, self.editor.Cursor())

	if self.echoGuard.IsSuppressed() {
		// remote text only updates the document. It is never sent back and keeps the run panel.
		glog.V(2).Infof("[session]%s apply remote text\n", self.sessionId)
		self.suggestions.OnRemoteText(self.document.Text, self.document.Cursor)
		self.notify()
		return
	}

	self.suggestions.Dismiss()
	self.runs.Clear()
	self.channel.Send(text)
	self.suggestions.OnEdit(SuggestionContext{
		Text:     self.document.Text,
		Cursor:   self.document.Cursor,
		Language: self.language,
	})
	self.notify()
}

func (self *RoomSession) handleRemoteMessage(text string) {
	self.echoGuard.WithSuppressed(func() {
		self.editor.SetText(text)
	})
}

func (self *RoomSession) handleStatus(status ConnectionStatus) {
	glog.V(1).Infof("[session]%s status %s\n", self.sessionId, status)
	self.status = status
	self.notify()
}

func (self *RoomSession) handleSnapshot(room *protocol.Room, err error) {
	if err != nil {
		glog.Infof("[session]%s load room %s error = %s\n", self.sessionId, self.roomId, err)
		self.loadError = LoadRoomError
		self.notify()
		return
	}
	if room != nil && room.Code != "" {
		// the snapshot is the server's own copy, so it is not sent back
		self.echoGuard.WithSuppressed(func() {
			self.editor.SetText(room.Code)
		})
	}
}

// Edit applies a local change: the whole new text and the cursor after it.
func (self *RoomSession) Edit(text string, cursor int) {
	self.loop.Post(func() {
		if text == self.editor.Text() {
			self.moveCursor(cursor)
			return
		}
		self.editor.Replace(text, cursor)
	})
}

func (self *RoomSession) MoveCursor(cursor int) {
	self.loop.Post(func() {
		self.moveCursor(cursor)
	})
}

func (self *RoomSession) moveCursor(cursor int) {
	self.editor.SetCursor(cursor)
	self.document = self.document.WithCursor(self.editor.Cursor())
	self.suggestions.OnCursor(self.document.Cursor)
	self.notify()
}

// ChangeLanguage selects the language for suggestions and runs.
// The held suggestion and the run output belong to the old language and are cleared.
func (self *RoomSession) ChangeLanguage(language protocol.Language) error {
	if !language.Valid() {
		_, err := protocol.ParseLanguage(string(language))
		return err
	}
	self.loop.Post(func() {
		self.language = language
		self.suggestions.Dismiss()
		self.runs.Clear()
		self.notify()
	})
	return nil
}

// AcceptSuggestion inserts the held suggestion at the cursor it was computed for and
// sends the result like any local edit. Returns false when there is nothing to accept.
// Waits for the session loop. Do not call from a state callback.
func (self *RoomSession) AcceptSuggestion() bool {
	accepted := false
	self.loop.Call(func() {
		applied, ok := self.suggestions.Accept()
		if !ok {
			glog.V(2).Infof("[session]%s nothing to accept\n", self.sessionId)
			return
		}
		next := self.document.Splice(applied.Offset, applied.Text)
		self.editor.Replace(next.Text, next.Cursor)
		accepted = true
	})
	return accepted
}

func (self *RoomSession) DismissSuggestion() {
	self.loop.Post(func() {
		self.suggestions.Dismiss()
		self.notify()
	})
}

// Run executes the current text in the current language.
// Returns false when a run is already in flight.
// Waits for the session loop. Do not call from a state callback.
func (self *RoomSession) Run() bool {
	started := false
	self.loop.Call(func() {
		started = self.runs.Run(self.language, self.document.Text)
		self.notify()
	})
	return started
}

// State waits for all previously posted events and returns the resulting state.
// Do not call from a state callback.
func (self *RoomSession) State() SessionState {
	self.loop.Call(func() {})

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.state
}

// AddStateCallback is called on the session loop after every event that changed the state.
// A state callback may call `Edit`, `MoveCursor`, `ChangeLanguage` and `DismissSuggestion`, which
// only post to the loop. It must not call `AcceptSuggestion`, `Run`, `State` or `Close`, which wait
// for the loop and would deadlock it. Read the state from the callback argument instead.
func (self *RoomSession) AddStateCallback(stateCallback SessionStateFunction) func() {
	return self.stateCallbacks.add(stateCallback)
}

func (self *RoomSession) notify() {
	state := SessionState{
		RoomId:          self.roomId,
		Document:        self.document,
		Language:        self.language,
		Status:          self.status,
		SuggestionState: self.suggestions.State(),
		Suggestion:      self.suggestions.Suggestion(),
		RunState:        self.runs.State(),
		RunOutput:       self.runs.Display(),
		Running:         self.runs.Running(),
		LoadError:       self.loadError,
	}
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.state == state {
			return false
		}
		self.state = state
		return true
	}()
	if changed {
		for _, stateCallback := range self.stateCallbacks.get() {
			stateCallback(state)
		}
	}
}

// Close leaves the room: the channel is closed and the debounce timer is stopped.
// Waits for the session loop. Do not call from a state callback.
// Safe to call more than once.
func (self *RoomSession) Close() {
	self.closeOnce.Do(func() {
		self.loop.Call(func() {
			glog.V(1).Infof("[session]%s close room %s\n", self.sessionId, self.roomId)
			self.suggestions.Close()
			self.runs.Close()
			if self.channel != nil {
				self.channel.Close()
			}
			if self.removeChangeCallback != nil {
				self.removeChangeCallback()
			}
			if self.status != StatusErrored {
				self.status = StatusDisconnected
			}
			self.notify()
		})
		self.loop.Close()
		self.cancel()
	})
}
