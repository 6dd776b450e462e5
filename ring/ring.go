// ring/ring.go

// Package ring provides the byte queues that carry input from interrupt and
// polling producers to the main context. Each Buffer has exactly one producer
// and one consumer: the producer is the only writer of head, the consumer the
// only writer of tail, so neither side needs a lock.
//
// When the producer laps the consumer the oldest unread bytes are overwritten.
// The consumer notices the lap on its next read and skips forward to the
// oldest byte that survived.
package ring

import (
	"context"
	"sync/atomic"
)

// Buffer is a fixed-capacity SPSC byte queue with overwrite-on-full.
type Buffer struct {
	slots []slot
	size  uint32
	mask  uint32

	head atomic.Uint32 // free-running write count, producer only
	tail atomic.Uint32 // free-running read count, consumer only
	seq  atomic.Uint32 // odd while a Put is in progress, producer only

	notify chan struct{} // coalesced "bytes arrived" wake-up
}

// New returns a Buffer holding up to size bytes. size must be a power of two.
func New(size int) *Buffer {
	if size <= 0 || size&(size-1) != 0 || size > 1<<30 {
		panic("ring: size must be a power of two")
	}
	return &Buffer{
		slots:  make([]slot, size),
		size:   uint32(size),
		mask:   uint32(size - 1),
		notify: make(chan struct{}, 1),
	}
}

// Size returns the capacity of the buffer in bytes.
func (rb *Buffer) Size() int { return int(rb.size) }

// Used returns how many unread bytes the buffer holds.
func (rb *Buffer) Used() int {
	n := rb.head.Load() - rb.tail.Load()
	if n > rb.size {
		n = rb.size
	}
	return int(n)
}

// Available reports whether at least one byte can be read without blocking.
func (rb *Buffer) Available() bool {
	return rb.head.Load() != rb.tail.Load()
}

// Readable returns a coalesced notification that fires after Put.
// Callers must re-check Available after waking.
func (rb *Buffer) Readable() <-chan struct{} { return rb.notify }

// Put stores a byte. It never blocks and is safe to call from an interrupt
// handler. If the buffer is full the oldest unread byte is lost.
func (rb *Buffer) Put(b byte) {
	h := rb.head.Load()
	rb.seq.Add(1)
	rb.slots[h&rb.mask].Set(b) // 1) write data
	rb.head.Store(h + 1)       // 2) publish
	rb.seq.Add(1)

	select {
	case rb.notify <- struct{}{}:
	default:
	}
}

// TryGet returns the oldest unread byte, or (0, false) if the buffer is empty.
func (rb *Buffer) TryGet() (byte, bool) {
	for {
		s := rb.seq.Load()
		h := rb.head.Load()
		t := rb.tail.Load()
		if h == t {
			return 0, false
		}
		if h-t > rb.size {
			t = h - rb.size // lapped: skip what was overwritten
		}
		v := rb.slots[t&rb.mask].Get()
		if s&1 != 0 || rb.seq.Load() != s {
			// A Put overlapped the read; slot t is only trustworthy if the
			// producer has not reached its next use.
			if rb.head.Load()-t >= rb.size {
				continue
			}
		}
		rb.tail.Store(t + 1)
		return v, true
	}
}

// Get blocks until a byte is available or ctx is done.
func (rb *Buffer) Get(ctx context.Context) (byte, error) {
	for {
		if b, ok := rb.TryGet(); ok {
			return b, nil
		}
		select {
		case <-rb.notify:
			// coalesced wake; loop and re-check
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Clear discards all unread bytes. Only the consumer may call it.
func (rb *Buffer) Clear() {
	rb.tail.Store(rb.head.Load())
}
