// Package keyboard decodes the PicoCalc keyboard controller into a byte
// stream.
//
// The controller is an I2C device holding a FIFO of [state, code] events.
// A poll task drains the FIFO on a fixed period, tracks the modifier keys,
// and turns each key release into one character in a ring buffer that the
// main context reads. The break key raises the abort signal instead.
package keyboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/ring"
)

// Address is the controller's 7-bit I2C address.
const Address = 0x1F

// Controller registers.
const (
	RegVersion = 0x01
	RegFIFO    = 0x09
	RegBattery = 0x0B
)

// Event states.
const (
	StateIdle     = 0
	StatePressed  = 1
	StateHold     = 2
	StateReleased = 3
)

// Key codes.
const (
	KeyAlt    = 0xA1
	KeyShiftL = 0xA2
	KeyShiftR = 0xA3
	KeySym    = 0xA4
	KeyCtrl   = 0xA5

	KeyEsc   = 0xB1
	KeyLeft  = 0xB4
	KeyUp    = 0xB5
	KeyDown  = 0xB6
	KeyRight = 0xB7

	KeyBreak    = 0xD0
	KeyInsert   = 0xD1
	KeyHome     = 0xD2
	KeyDelete   = 0xD4
	KeyEnd      = 0xD5
	KeyPageUp   = 0xD6
	KeyPageDown = 0xD7

	KeyCapsLock = 0xC1
)

const (
	DefaultBufferSize = 32
	DefaultPollPeriod = 100 * time.Millisecond

	// The controller FIFO holds 31 events; a tick never reads more than this.
	maxEventsPerTick = 64
)

// Config tunes a Decoder. Zero fields take the defaults.
type Config struct {
	Address    uint16
	BufferSize int
	Logger     *slog.Logger
}

// Decoder polls the controller and buffers decoded characters.
type Decoder struct {
	i2c   drivers.I2C
	addr  uint16
	lock  *bus.Lock
	abort *abort.Signal
	buf   *ring.Buffer
	log   *slog.Logger

	// poll task only
	ctrl, shift, alt bool
	failing          bool
	w                [1]byte
	r                [2]byte

	battery atomic.Int32
	faults  atomic.Uint32
}

// New returns a Decoder on i2c. sig is raised by the break key; lock guards
// the I2C bus and may be nil when nothing else uses it.
func New(i2c drivers.I2C, sig *abort.Signal, lock *bus.Lock, cfg Config) *Decoder {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if lock == nil {
		lock = bus.New()
	}
	if sig == nil {
		sig = abort.New()
	}
	d := &Decoder{
		i2c:   i2c,
		addr:  cfg.Address,
		lock:  lock,
		abort: sig,
		buf:   ring.New(cfg.BufferSize),
		log:   cfg.Logger,
	}
	d.battery.Store(-1)
	return d
}

// query selects reg and reads its two-byte reply. The write and the read
// are separate transactions, as the controller expects a stop between them.
// Waiting for the bus ends when ctx is done.
func (d *Decoder) query(ctx context.Context, reg byte) ([2]byte, error) {
	if err := d.lock.AcquireContext(ctx); err != nil {
		return [2]byte{}, fmt.Errorf("keyboard: wait for bus: %w", err)
	}
	defer d.lock.Release()

	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:], nil); err != nil {
		return [2]byte{}, fmt.Errorf("keyboard: select register 0x%02X: %w", reg, err)
	}
	if err := d.i2c.Tx(d.addr, nil, d.r[:]); err != nil {
		return [2]byte{}, fmt.Errorf("keyboard: read register 0x%02X: %w", reg, err)
	}
	return d.r, nil
}

// Poll runs one tick: it reads events until the controller FIFO is empty.
// An I2C error ends the tick early; the events already read are kept.
func (d *Decoder) Poll() error { return d.poll(context.Background()) }

func (d *Decoder) poll(ctx context.Context) error {
	for i := 0; i < maxEventsPerTick; i++ {
		ev, err := d.query(ctx, RegFIFO)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		if err != nil {
			d.fault(err)
			return err
		}
		d.healthy()
		if ev[0] == StateIdle {
			return nil
		}
		d.handle(ev[0], ev[1])
	}
	return nil
}

func (d *Decoder) fault(err error) {
	d.faults.Add(1)
	if !d.failing {
		d.failing = true
		d.log.Warn("keyboard: controller not responding", "err", err)
	}
}

func (d *Decoder) healthy() {
	if d.failing {
		d.failing = false
		d.log.Info("keyboard: controller responding again")
	}
}

// handle applies one controller event.
func (d *Decoder) handle(state, code byte) {
	switch state {
	case StatePressed:
		switch code {
		case KeyCtrl:
			d.ctrl = true
		case KeyShiftL, KeyShiftR:
			d.shift = true
		case KeyAlt:
			d.alt = true
		case KeyBreak:
			d.abort.Raise()
		}
	case StateReleased:
		switch code {
		case KeyCtrl:
			d.ctrl = false
		case KeyShiftL, KeyShiftR:
			d.shift = false
		case KeyAlt:
			d.alt = false
		case KeyBreak:
		default:
			d.buf.Put(d.translate(code))
		}
	}
}

// translate maps a released key to the character it produces. Ctrl turns a
// letter into its control code and shift into upper case; Enter is CR.
func (d *Decoder) translate(c byte) byte {
	if c >= 'a' && c <= 'z' {
		if d.ctrl {
			c &^= 0x60
		}
		if d.shift {
			c &^= 0x20
		}
	}
	if c == '\n' {
		c = '\r'
	}
	return c
}

// Run polls every period until ctx is done. Poll errors are logged and the
// next tick tries again.
func (d *Decoder) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	t := time.NewTicker(period)
	defer t.Stop()
	d.log.Debug("keyboard: polling", "period", period, "addr", d.addr)
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("keyboard: poll stopped")
			return ctx.Err()
		case <-t.C:
			_ = d.poll(ctx)
		}
	}
}

// KeyAvailable reports whether a decoded character is waiting.
func (d *Decoder) KeyAvailable() bool { return d.buf.Available() }

// TryGetKey returns the next character without blocking.
func (d *Decoder) TryGetKey() (byte, bool) { return d.buf.TryGet() }

// GetKey blocks until a character is decoded or ctx is done.
func (d *Decoder) GetKey(ctx context.Context) (byte, error) { return d.buf.Get(ctx) }

// Readable returns a coalesced notification that fires after a character
// is buffered.
func (d *Decoder) Readable() <-chan struct{} { return d.buf.Readable() }

// Modifiers returns the modifier keys currently held. Only meaningful from
// the poll task or after it has stopped.
func (d *Decoder) Modifiers() (ctrl, shift, alt bool) { return d.ctrl, d.shift, d.alt }

// Faults returns the number of failed controller transactions.
func (d *Decoder) Faults() int { return int(d.faults.Load()) }

// ReadBattery reads the battery register and returns the level byte.
func (d *Decoder) ReadBattery() (int, error) {
	r, err := d.query(context.Background(), RegBattery)
	if err != nil {
		return -1, err
	}
	d.battery.Store(int32(r[1]))
	return int(r[1]), nil
}

// Battery returns the last level read by ReadBattery, or -1 if none.
func (d *Decoder) Battery() int { return int(d.battery.Load()) }
