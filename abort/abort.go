// Package abort carries the user-interrupt request from interrupt and poll
// contexts to the main context. Producers only ever raise it; the main
// context consumes it at its cooperative check points.
package abort

import "sync/atomic"

// Signal is a one-shot, process-wide interrupt request.
type Signal struct {
	pending atomic.Bool
	wake    chan struct{}
}

// New returns a cleared Signal.
func New() *Signal {
	return &Signal{wake: make(chan struct{}, 1)}
}

// Raise requests an abort. It never blocks and is safe from interrupt context.
func (s *Signal) Raise() {
	s.pending.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether an abort is waiting, without consuming it.
func (s *Signal) Pending() bool { return s.pending.Load() }

// Take consumes a pending abort and reports whether there was one.
func (s *Signal) Take() bool {
	if !s.pending.Swap(false) {
		return false
	}
	select {
	case <-s.wake:
	default:
	}
	return true
}

// Wake returns a coalesced notification that fires after Raise, so blocked
// waits can re-run their abort check.
func (s *Signal) Wake() <-chan struct{} { return s.wake }
