//go:build uartxdebug

package uartx

import "sync/atomic"

// Called after each interrupt (or host pump read) with the bytes drained.
func (u *UART) dbgISR(bytesDrained int) {
	atomic.AddUint32(&u.stats.ISRCount, 1)
	atomic.AddUint32(&u.stats.ISRBytes, uint32(bytesDrained))
	for {
		max := atomic.LoadUint32(&u.stats.ISRMaxDrain)
		if uint32(bytesDrained) <= max {
			break
		}
		if atomic.CompareAndSwapUint32(&u.stats.ISRMaxDrain, max, uint32(bytesDrained)) {
			break
		}
	}
}

// Called per received byte; full reports that the Put will overwrite.
func (u *UART) dbgOnByte(full bool) {
	atomic.AddUint32(&u.stats.RingPuts, 1)
	if full {
		atomic.AddUint32(&u.stats.RingOverwrites, 1)
	}
	used := uint32(u.Buffer.Used())
	for {
		max := atomic.LoadUint32(&u.stats.RingMaxUsed)
		if used <= max {
			break
		}
		if atomic.CompareAndSwapUint32(&u.stats.RingMaxUsed, max, used) {
			break
		}
	}
}

func (u *UART) dbgAbort() {
	atomic.AddUint32(&u.stats.Aborts, 1)
}

func (u *UART) dbgReadWait() {
	atomic.AddUint32(&u.stats.ReadWaits, 1)
}

func (u *UART) dbgTimeout() {
	atomic.AddUint32(&u.stats.Timeouts, 1)
}
