package room

import (
	"unicode/utf8"
)

// Document is the client mirror of a room's text plus the local cursor.
// Cursor is a character (rune) offset into Text and is kept in [0, runeCount(Text)].
type Document struct {
	Text   string
	Cursor int
}

func NewDocument(text string, cursor int) Document {
	return Document{
		Text:   text,
		Cursor: clampOffset(text, cursor),
	}
}

func (self Document) Len() int {
	return utf8.RuneCountInString(self.Text)
}

// WithText replaces the text and clamps the cursor into the new text.
func (self Document) WithText(text string) Document {
	return NewDocument(text, self.Cursor)
}

func (self Document) WithCursor(cursor int) Document {
	return NewDocument(self.Text, cursor)
}

// Splice inserts `insert` at the character offset and moves the cursor to the end of the insertion.
func (self Document) Splice(offset int, insert string) Document {
	offset = clampOffset(self.Text, offset)
	i := byteIndex(self.Text, offset)
	return Document{
		Text:   self.Text[:i] + insert + self.Text[i:],
		Cursor: offset + utf8.RuneCountInString(insert),
	}
}

func clampOffset(text string, offset int) int {
	if offset < 0 {
		return 0
	}
	if n := utf8.RuneCountInString(text); n < offset {
		return n
	}
	return offset
}

// byte index of the rune offset. `offset` must be clamped.
func byteIndex(text string, offset int) int {
	i := 0
	for j := 0; j < offset; j += 1 {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return i
}
