package room

import (
	"context"
	"flag"
	"sync"
	"testing"
	"time"

	"github.com/coderoom/coderoom/protocol"
)

func init() {
	initGlog()
}

func initGlog() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	end := time.Now().Add(timeout)
	for !condition() {
		if end.Before(time.Now()) {
			t.Fatalf("condition not met after %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type autocompleteCall struct {
	args     *protocol.AutocompleteArgs
	callback AutocompleteCallback
}

func (self *autocompleteCall) respond(suggestion string) {
	self.callback.Result(&protocol.AutocompleteResult{Suggestion: suggestion}, nil)
}

// records requests. Tests answer them explicitly, in any order.
type testSuggestionService struct {
	mutex sync.Mutex
	calls []*autocompleteCall
}

func (self *testSuggestionService) Autocomplete(args *protocol.AutocompleteArgs, callback AutocompleteCallback) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.calls = append(self.calls, &autocompleteCall{
		args:     args,
		callback: callback,
	})
}

func (self *testSuggestionService) Calls() []*autocompleteCall {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	calls := make([]*autocompleteCall, len(self.calls))
	copy(calls, self.calls)
	return calls
}

func (self *testSuggestionService) Count() int {
	return len(self.Calls())
}

type runCall struct {
	args     *protocol.RunArgs
	callback RunCallback
}

type testExecutionService struct {
	mutex sync.Mutex
	calls []*runCall
}

func (self *testExecutionService) Run(args *protocol.RunArgs, callback RunCallback) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.calls = append(self.calls, &runCall{
		args:     args,
		callback: callback,
	})
}

func (self *testExecutionService) Calls() []*runCall {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	calls := make([]*runCall, len(self.calls))
	copy(calls, self.calls)
	return calls
}

type testDirectory struct {
	mutex sync.Mutex
	rooms map[string]*protocol.Room
	err   error
	// when set, `GetRoom` waits for a value before answering
	release chan struct{}
}

func newTestDirectory() *testDirectory {
	return &testDirectory{
		rooms: map[string]*protocol.Room{},
	}
}

func (self *testDirectory) ListRooms(callback ListRoomsCallback) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	summaries := []*protocol.RoomSummary{}
	for roomId := range self.rooms {
		summaries = append(summaries, &protocol.RoomSummary{RoomId: roomId})
	}
	go callback.Result(summaries, nil)
}

func (self *testDirectory) CreateRoom(callback CreateRoomCallback) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	room := &protocol.Room{RoomId: NewId().String()}
	self.rooms[room.RoomId] = room
	go callback.Result(room, nil)
}

func (self *testDirectory) GetRoom(roomId string, callback GetRoomCallback) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	room, err := self.rooms[roomId], self.err
	release := self.release
	go func() {
		if release != nil {
			<-release
		}
		if err != nil {
			callback.Result(nil, err)
		} else {
			callback.Result(room, nil)
		}
	}()
}

type testChannel struct {
	mutex  sync.Mutex
	sends  []string
	opened bool
	closed int

	messageCallbacks CallbackList[MessageFunction]
	statusCallbacks  CallbackList[StatusFunction]
}

func (self *testChannel) AddMessageCallback(messageCallback MessageFunction) func() {
	return self.messageCallbacks.add(messageCallback)
}

func (self *testChannel) AddStatusCallback(statusCallback StatusFunction) func() {
	return self.statusCallbacks.add(statusCallback)
}

func (self *testChannel) Open() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.opened = true
}

func (self *testChannel) Send(text string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.sends = append(self.sends, text)
}

func (self *testChannel) Close() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.closed += 1
}

func (self *testChannel) Sends() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	sends := make([]string, len(self.sends))
	copy(sends, self.sends)
	return sends
}

func (self *testChannel) Opened() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.opened
}

func (self *testChannel) CloseCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.closed
}

func (self *testChannel) receive(text string) {
	for _, messageCallback := range self.messageCallbacks.get() {
		messageCallback(text)
	}
}

func (self *testChannel) setStatus(status ConnectionStatus) {
	for _, statusCallback := range self.statusCallbacks.get() {
		statusCallback(status)
	}
}

type testSession struct {
	*RoomSession
	channel     *testChannel
	directory   *testDirectory
	suggestions *testSuggestionService
	execution   *testExecutionService
}

func newTestSession(t *testing.T, debounceTimeout time.Duration, directory *testDirectory) *testSession {
	channel := &testChannel{}
	suggestions := &testSuggestionService{}
	execution := &testExecutionService{}
	if directory == nil {
		directory = newTestDirectory()
	}

	settings := DefaultRoomSessionSettings()
	settings.SuggestionSettings.DebounceTimeout = debounceTimeout

	session := NewRoomSession(
		context.Background(),
		"test-room",
		NewBuffer(),
		&Services{
			Directory:   directory,
			Suggestions: suggestions,
			Execution:   execution,
		},
		func(ctx context.Context, roomId string) Channel {
			return channel
		},
		settings,
	)
	t.Cleanup(session.Close)

	return &testSession{
		RoomSession: session,
		channel:     channel,
		directory:   directory,
		suggestions: suggestions,
		execution:   execution,
	}
}
