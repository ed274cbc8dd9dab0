package room

import (
	"sync"
)

type ChangeFunction = func(text string)

// Editor is the text editing capability a room session drives.
// `SetText` and `Replace` must call the change callbacks synchronously, on the caller's path,
// for any change to the text. Cursor moves alone do not notify.
type Editor interface {
	Text() string
	Cursor() int
	// keeps the cursor, clamped into the new text
	SetText(text string)
	// sets text and cursor together, as typing does. Callbacks see the new cursor.
	Replace(text string, cursor int)
	SetCursor(offset int)
	AddChangeCallback(callback ChangeFunction) func()
}

// Buffer is a headless `Editor` holding a `Document`.
type Buffer struct {
	stateLock sync.Mutex
	document  Document

	changeCallbacks CallbackList[ChangeFunction]
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (self *Buffer) Text() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.document.Text
}

func (self *Buffer) Cursor() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.document.Cursor
}

func (self *Buffer) Document() Document {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.document
}

func (self *Buffer) SetText(text string) {
	self.update(func(document Document) Document {
		return document.WithText(text)
	})
}

func (self *Buffer) Replace(text string, cursor int) {
	self.update(func(document Document) Document {
		return NewDocument(text, cursor)
	})
}

func (self *Buffer) update(next func(Document) Document) {
	text, changed := func() (string, bool) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		document := next(self.document)
		changed := document.Text != self.document.Text
		self.document = document
		return document.Text, changed
	}()
	if changed {
		for _, changeCallback := range self.changeCallbacks.get() {
			changeCallback(text)
		}
	}
}

func (self *Buffer) SetCursor(offset int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.document = self.document.WithCursor(offset)
}

func (self *Buffer) AddChangeCallback(callback ChangeFunction) func() {
	return self.changeCallbacks.add(callback)
}
