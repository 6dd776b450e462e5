//go:build uartxdebug

package uartx

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// ISR-level
	ISRCount    uint32 // number of ISR entries
	ISRBytes    uint32 // total bytes drained in ISRs
	ISRMaxDrain uint32 // max bytes drained in a single ISR

	// Ring buffer
	RingPuts       uint32 // bytes stored
	RingOverwrites uint32 // stores that overwrote an unread byte
	RingMaxUsed    uint32 // high-water mark of ring occupancy

	// User interrupts (Ctrl-C) received
	Aborts uint32

	// Blocking API behaviour
	ReadWaits uint32 // times ReadByteBlocking had to wait
	Timeouts  uint32 // context expiries in ReadByteBlocking
}

func (u *UART) DebugReset() {
	u.stats = Stats{}
}

func (u *UART) DebugStats() Stats {
	// Return a copy to avoid races; 32-bit atomic reads are fine on Cortex-M0+
	return Stats{
		ISRCount:    atomic.LoadUint32(&u.stats.ISRCount),
		ISRBytes:    atomic.LoadUint32(&u.stats.ISRBytes),
		ISRMaxDrain: atomic.LoadUint32(&u.stats.ISRMaxDrain),

		RingPuts:       atomic.LoadUint32(&u.stats.RingPuts),
		RingOverwrites: atomic.LoadUint32(&u.stats.RingOverwrites),
		RingMaxUsed:    atomic.LoadUint32(&u.stats.RingMaxUsed),

		Aborts: atomic.LoadUint32(&u.stats.Aborts),

		ReadWaits: atomic.LoadUint32(&u.stats.ReadWaits),
		Timeouts:  atomic.LoadUint32(&u.stats.Timeouts),
	}
}
