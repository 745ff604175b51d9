package encoder

import "sync/atomic"

// Signal is a cancellation flag shared between the owner of a job and the Engine.
// The Engine only reads it; the owner sets it and resets it before reuse.
type Signal struct {
	set atomic.Bool
}

// NewSignal returns a cleared Signal
func NewSignal() *Signal {
	return &Signal{}
}

// Set requests cancellation
func (s *Signal) Set() {
	s.set.Store(true)
}

// Reset clears the flag for the next job
func (s *Signal) Reset() {
	s.set.Store(false)
}

// IsSet reports whether cancellation was requested. A nil Signal is never set.
func (s *Signal) IsSet() bool {
	return s != nil && s.set.Load()
}
