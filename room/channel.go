package room

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type ConnectionStatus int

const (
	StatusConnecting ConnectionStatus = iota
	StatusConnected
	StatusDisconnected
	StatusErrored
)

func (self ConnectionStatus) String() string {
	switch self {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int(self))
	}
}

// Label is the status shown to the user.
func (self ConnectionStatus) Label() string {
	switch self {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnected:
		return "Disconnected"
	case StatusErrored:
		return "Error"
	default:
		return self.String()
	}
}

type MessageFunction = func(text string)
type StatusFunction = func(status ConnectionStatus)

type ChannelSettings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendBufferSize   int
}

func DefaultChannelSettings() *ChannelSettings {
	return &ChannelSettings{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		SendBufferSize:   16,
	}
}

// RoomChannelUrl is the realtime address of a room, `<wsUrl>/<roomId>`.
func RoomChannelUrl(wsUrl string, roomId string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(wsUrl, "/"), url.PathEscape(roomId))
}

// ChannelSession is one websocket connection to a room.
// Every message is the whole document text. Sends are fire-and-forget and
// transport faults are only observable through the status callbacks.
// There is no reconnect. A new session must be opened to retry.
type ChannelSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	settings *ChannelSettings

	stateLock sync.Mutex
	status    ConnectionStatus

	send chan string

	openOnce  sync.Once
	closeOnce sync.Once
	opened    bool

	messageCallbacks CallbackList[MessageFunction]
	statusCallbacks  CallbackList[StatusFunction]
}

func NewChannelSessionWithDefaults(ctx context.Context, url string) *ChannelSession {
	return NewChannelSession(ctx, url, DefaultChannelSettings())
}

func NewChannelSession(ctx context.Context, url string, settings *ChannelSettings) *ChannelSession {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &ChannelSession{
		ctx:      cancelCtx,
		cancel:   cancel,
		url:      url,
		settings: settings,
		status:   StatusConnecting,
		send:     make(chan string, settings.SendBufferSize),
	}
}

func (self *ChannelSession) AddMessageCallback(messageCallback MessageFunction) func() {
	return self.messageCallbacks.add(messageCallback)
}

func (self *ChannelSession) AddStatusCallback(statusCallback StatusFunction) func() {
	return self.statusCallbacks.add(statusCallback)
}

func (self *ChannelSession) Status() ConnectionStatus {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.status
}

// Open starts connecting. Register callbacks before opening to see every message.
func (self *ChannelSession) Open() {
	self.openOnce.Do(func() {
		self.stateLock.Lock()
		self.opened = true
		self.stateLock.Unlock()
		go self.run()
	})
}

func (self *ChannelSession) run() {
	defer self.cancel()

	dial := func() (*websocket.Conn, error) {
		dialer := &websocket.Dialer{
			HandshakeTimeout: self.settings.HandshakeTimeout,
		}
		ws, _, err := dialer.DialContext(self.ctx, self.url, nil)
		return ws, err
	}

	var ws *websocket.Conn
	var err error
	if glog.V(2) {
		ws, err = TraceWithReturnError(fmt.Sprintf("[c]connect %s", self.url), dial)
	} else {
		ws, err = dial()
	}
	if err != nil {
		if self.ctx.Err() != nil {
			// closed while connecting
			self.setStatus(StatusDisconnected)
		} else {
			glog.Infof("[c]connect %s error = %s\n", self.url, err)
			self.setStatus(StatusErrored)
		}
		return
	}
	glog.V(1).Infof("[c]connected %s\n", self.url)
	self.setStatus(StatusConnected)

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	var writeErr error
	writeDone := make(chan struct{})

	go func() {
		defer func() {
			handleCancel()
			close(writeDone)
		}()

		for {
			select {
			case <-handleCtx.Done():
				return
			case text := <-self.send:
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
					// note that for websocket a deadline timeout cannot be recovered
					writeErr = err
					return
				}
				glog.V(2).Infof("[c]-> %d\n", len(text))
			}
		}
	}()

	go func() {
		<-handleCtx.Done()
		if self.ctx.Err() != nil {
			// local close. tell the peer this was intentional
			ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(self.settings.WriteTimeout),
			)
		}
		ws.Close()
	}()

	var readErr error
	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			glog.V(2).Infof("[c]<- %d\n", len(message))
			text := string(message)
			for _, messageCallback := range self.messageCallbacks.get() {
				HandleError("[c]", func() {
					messageCallback(text)
				})
			}
		}
	}
	handleCancel()
	<-writeDone

	switch {
	case self.ctx.Err() != nil:
		self.setStatus(StatusDisconnected)
	case writeErr != nil:
		glog.Infof("[c]write %s error = %s\n", self.url, writeErr)
		self.setStatus(StatusErrored)
	case websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		glog.V(1).Infof("[c]closed by peer %s\n", self.url)
		self.setStatus(StatusDisconnected)
	default:
		glog.Infof("[c]read %s error = %s\n", self.url, readErr)
		self.setStatus(StatusErrored)
	}
}

// errored only leaves through a new connect attempt, so a close after an error keeps the error visible.
func (self *ChannelSession) setStatus(status ConnectionStatus) {
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if self.status == status {
			return false
		}
		if self.status == StatusErrored && status != StatusConnecting {
			return false
		}
		self.status = status
		return true
	}()
	if changed {
		for _, statusCallback := range self.statusCallbacks.get() {
			HandleError("[c]", func() {
				statusCallback(status)
			})
		}
	}
}

// Send queues the whole document text. It never blocks and never fails at the call site.
// Text sent while not connected is dropped. When the queue is full the oldest queued text is
// dropped, since every message supersedes the ones before it.
func (self *ChannelSession) Send(text string) {
	if status := self.Status(); status != StatusConnected {
		glog.V(2).Infof("[c]drop send while %s\n", status)
		return
	}
	for {
		select {
		case self.send <- text:
			return
		default:
		}
		select {
		case <-self.send:
			glog.V(2).Infof("[c]coalesce queued send\n")
		default:
		}
	}
}

// Close releases the connection. Safe to call more than once.
func (self *ChannelSession) Close() {
	self.closeOnce.Do(func() {
		self.cancel()

		self.stateLock.Lock()
		opened := self.opened
		self.stateLock.Unlock()
		if !opened {
			self.setStatus(StatusDisconnected)
		}
	})
}
