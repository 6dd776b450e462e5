package lcd

import (
	"context"
	"time"
)

// DefaultBlinkPeriod is the cursor half-period: 500ms on, 500ms off.
const DefaultBlinkPeriod = 500 * time.Millisecond

// Blinker toggles the cursor bar on a timer. A tick that finds the bus
// held by someone else is skipped; the blinker never waits for the bus.
type Blinker struct {
	d       *Device
	period  time.Duration
	visible bool
	skipped int
}

// NewBlinker returns a Blinker for d. A zero period means DefaultBlinkPeriod.
func NewBlinker(d *Device, period time.Duration) *Blinker {
	if period <= 0 {
		period = DefaultBlinkPeriod
	}
	return &Blinker{d: d, period: period}
}

// Tick performs one blink step and reports whether the bus was free.
func (b *Blinker) Tick() bool {
	if !b.d.lock.TryAcquire() {
		b.skipped++
		return false
	}
	defer b.d.lock.Release()

	if b.visible {
		b.d.eraseCursor()
	} else {
		b.d.drawCursor()
	}
	b.visible = !b.visible
	return true
}

// Skipped returns how many ticks found the bus busy.
func (b *Blinker) Skipped() int { return b.skipped }

// Run ticks every period until ctx is done.
func (b *Blinker) Run(ctx context.Context) error {
	t := time.NewTicker(b.period)
	defer t.Stop()
	b.d.log.Debug("lcd: cursor blink started", "period", b.period)
	for {
		select {
		case <-ctx.Done():
			b.d.log.Debug("lcd: cursor blink stopped")
			return ctx.Err()
		case <-t.C:
			b.Tick()
		}
	}
}
