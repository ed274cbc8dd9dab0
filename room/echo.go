package room

// EchoGuard marks the synchronous application of a remote update,
// so the resulting editor change is not broadcast back onto the channel.
// Not safe for concurrent use. A guard belongs to one event loop.
type EchoGuard struct {
	suppressed bool
}

// WithSuppressed runs `apply` with the guard set. The guard is restored when `apply` returns or panics.
func (self *EchoGuard) WithSuppressed(apply func()) {
	previous := self.suppressed
	self.suppressed = true
	defer func() {
		self.suppressed = previous
	}()
	apply()
}

func (self *EchoGuard) IsSuppressed() bool {
	return self.suppressed
}
