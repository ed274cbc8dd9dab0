package room

import (
	"bytes"

	"github.com/oklog/ulid/v2"
)

// comparable
// Ids are ulids, ordered by create time.
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func (self Id) LessThan(b Id) bool {
	return bytes.Compare(self[:], b[:]) < 0
}

func (self Id) String() string {
	return ulid.ULID(self).String()
}
