package room

import (
	"sync"

	"golang.org/x/exp/slices"
)

// CallbackList is a copy-on-write list of callbacks.
// `get` returns a snapshot that is safe to iterate while callbacks add or remove themselves.
// Callbacks are compared by the pointer of the holder returned from `add`.
type CallbackList[T any] struct {
	mutex     sync.Mutex
	callbacks []*callbackHolder[T]
}

type callbackHolder[T any] struct {
	callback T
}

func (self *CallbackList[T]) get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	callbacks := make([]T, 0, len(self.callbacks))
	for _, holder := range self.callbacks {
		callbacks = append(callbacks, holder.callback)
	}
	return callbacks
}

// returns a function that removes the callback
func (self *CallbackList[T]) add(callback T) func() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	holder := &callbackHolder[T]{
		callback: callback,
	}
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = append(nextCallbacks, holder)
	self.callbacks = nextCallbacks

	return func() {
		self.remove(holder)
	}
}

func (self *CallbackList[T]) remove(holder *callbackHolder[T]) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.callbacks, holder)
	if i < 0 {
		// not present
		return
	}
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = slices.Delete(nextCallbacks, i, i+1)
	self.callbacks = nextCallbacks
}

func (self *CallbackList[T]) clear() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.callbacks = nil
}
