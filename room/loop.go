package room

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// EventLoop runs posted handlers one at a time, in post order, on a single goroutine.
// All state of a room session is owned by its loop, so handlers need no locks.
// Posting never blocks, so a handler may post follow up events.
type EventLoop struct {
	ctx    context.Context
	cancel context.CancelFunc

	stateLock sync.Mutex
	events    []func()

	notify chan struct{}
}

func NewEventLoop(ctx context.Context) *EventLoop {
	cancelCtx, cancel := context.WithCancel(ctx)
	loop := &EventLoop{
		ctx:    cancelCtx,
		cancel: cancel,
		notify: make(chan struct{}, 1),
	}
	go loop.run()
	return loop
}

func (self *EventLoop) run() {
	defer func() {
		self.cancel()

		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.events = nil
	}()

	for {
		select {
		case <-self.ctx.Done():
			return
		case <-self.notify:
		}

		for {
			event, ok := self.next()
			if !ok {
				break
			}
			// a failing handler is scoped to its own event
			HandleError("[loop]", event)
			if self.ctx.Err() != nil {
				return
			}
		}
	}
}

func (self *EventLoop) next() (func(), bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(self.events) == 0 {
		return nil, false
	}
	event := self.events[0]
	self.events[0] = nil
	self.events = self.events[1:]
	return event, true
}

// Post enqueues `event`. Returns false if the loop is closed.
func (self *EventLoop) Post(event func()) bool {
	posted := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.ctx.Err() != nil {
			return false
		}
		self.events = append(self.events, event)
		return true
	}()
	if !posted {
		glog.V(2).Infof("[loop]drop event after close\n")
		return false
	}
	select {
	case self.notify <- struct{}{}:
	default:
	}
	return true
}

// Call runs `event` on the loop and waits for it to finish.
// Must not be called from a handler running on the same loop.
func (self *EventLoop) Call(event func()) bool {
	done := make(chan struct{})
	posted := self.Post(func() {
		defer close(done)
		event()
	})
	if !posted {
		return false
	}
	select {
	case <-done:
		return true
	case <-self.ctx.Done():
		// the loop may have run the event just before closing
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (self *EventLoop) Done() <-chan struct{} {
	return self.ctx.Done()
}

// Close stops the loop. Events still queued are dropped.
func (self *EventLoop) Close() {
	self.cancel()
}
