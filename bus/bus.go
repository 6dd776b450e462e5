// Package bus guards a shared peripheral bus. The main context blocks in
// Acquire; background tasks use TryAcquire and skip their turn when the bus
// is busy, so they never stall the foreground.
package bus

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Lock is a binary semaphore with a non-blocking acquire. It counts its
// holders so a second one is caught the moment it gets in.
type Lock struct {
	sem     *semaphore.Weighted
	holders atomic.Int32
}

// New returns an unheld Lock.
func New() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the bus is free.
func (l *Lock) Acquire() {
	// Acquire only fails once its context is done.
	_ = l.sem.Acquire(context.Background(), 1)
	l.enter()
}

// AcquireContext blocks until the bus is free or ctx is done.
func (l *Lock) AcquireContext(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.enter()
	return nil
}

// TryAcquire takes the bus if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.enter()
	return true
}

// Release frees the bus. Releasing an unheld bus panics.
func (l *Lock) Release() {
	if l.holders.Add(-1) < 0 {
		l.holders.Add(1)
		panic("bus: release of unheld lock")
	}
	l.sem.Release(1)
}

// Busy reports whether some operation currently holds the bus.
func (l *Lock) Busy() bool { return l.Holders() != 0 }

// Holders returns the number of current holders; it is never above one.
func (l *Lock) Holders() int { return int(l.holders.Load()) }

func (l *Lock) enter() {
	if l.holders.Add(1) != 1 {
		panic("bus: more than one holder")
	}
}
