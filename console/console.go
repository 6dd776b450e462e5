// Package console is the byte-in/byte-out terminal seen by the interpreter.
//
// A Console wraps one Backend (the serial link, or the PicoCalc display and
// keyboard) and adds the user-interrupt discipline: every availability check
// first consumes a pending abort, rings the bell, types the user-interrupt
// message and returns UserInterrupt so the caller unwinds to its top level.
// Blocking waits wake on new input, on an abort, or on a short poll timer,
// and always re-run that check.
package console

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/abort"
)

// Backend is one terminal implementation.
type Backend interface {
	// Init brings up the hardware. Background tasks it starts stop when ctx
	// is done or Close is called.
	Init(ctx context.Context) error
	KeyAvailable() bool
	// GetKey returns the next input byte without blocking.
	GetKey() (byte, bool)
	EmitAvailable() bool
	// Emit writes one byte. Callers check EmitAvailable first.
	Emit(b byte) error
	// Readable fires, coalesced, when input arrives.
	Readable() <-chan struct{}
	Close() error
}

// Beeper is implemented by backends that can sound the bell themselves.
type Beeper interface {
	Beep()
}

const (
	bel = 0x07
	bs  = 0x08
	cr  = 0x0D
	del = 0x7F
)

// DefaultPollInterval bounds how long a blocking wait sleeps before it
// re-checks the backend.
const DefaultPollInterval = 10 * time.Millisecond

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Console) { c.log = l } }

// WithPollInterval sets the fallback wake-up of blocking waits.
func WithPollInterval(d time.Duration) Option {
	return func(c *Console) {
		if d > 0 {
			c.poll = d
		}
	}
}

// Console is the interpreter's terminal. It is used from the main context
// only.
type Console struct {
	be    Backend
	abort *abort.Signal
	log   *slog.Logger
	poll  time.Duration
}

// New returns a Console over be. sig is the process-wide abort signal
// raised by the backend's producers.
func New(be Backend, sig *abort.Signal, opts ...Option) *Console {
	c := &Console{
		be:    be,
		abort: sig,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		poll:  DefaultPollInterval,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Backend returns the wrapped backend.
func (c *Console) Backend() Backend { return c.be }

// Init brings up the backend.
func (c *Console) Init(ctx context.Context) error {
	c.log.Debug("console: init", "backend", backendName(c.be))
	return c.be.Init(ctx)
}

// Close stops the backend's background tasks.
func (c *Console) Close() error { return c.be.Close() }

// checkAbort consumes a pending abort. When there was one it rings the bell,
// types the user-interrupt message and returns UserInterrupt.
func (c *Console) checkAbort() error {
	if !c.abort.Take() {
		return nil
	}
	c.log.Debug("console: user interrupt")
	c.raw(bel)
	for _, b := range []byte(UserInterrupt.Message()) {
		c.raw(b)
	}
	return UserInterrupt
}

// raw emits b without abort checks.
func (c *Console) raw(b byte) {
	for !c.be.EmitAvailable() {
		runtime.Gosched()
	}
	c.beep(b)
	if err := c.be.Emit(b); err != nil {
		c.log.Warn("console: emit failed", "err", err)
	}
}

func (c *Console) beep(b byte) {
	if b != bel {
		return
	}
	if bp, ok := c.be.(Beeper); ok {
		bp.Beep()
	}
}

// wait blocks until ready fires, an abort is raised, the poll interval
// passes, or ctx is done.
func (c *Console) wait(ctx context.Context, ready <-chan struct{}) error {
	t := time.NewTimer(c.poll)
	defer t.Stop()
	select {
	case <-ready:
	case <-c.abort.Wake():
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// KeyAvailable reports whether Key would return without waiting.
func (c *Console) KeyAvailable() (bool, error) {
	if err := c.checkAbort(); err != nil {
		return false, err
	}
	return c.be.KeyAvailable(), nil
}

// Key blocks for the next input byte.
func (c *Console) Key(ctx context.Context) (byte, error) {
	for {
		ok, err := c.KeyAvailable()
		if err != nil {
			return 0, err
		}
		if ok {
			if b, ok := c.be.GetKey(); ok {
				return b, nil
			}
		}
		if err := c.wait(ctx, c.be.Readable()); err != nil {
			return 0, err
		}
	}
}

// EmitAvailable reports whether Emit would return without waiting.
func (c *Console) EmitAvailable() (bool, error) {
	if err := c.checkAbort(); err != nil {
		return false, err
	}
	return c.be.EmitAvailable(), nil
}

// Emit blocks until the backend can take b, then writes it.
func (c *Console) Emit(ctx context.Context, b byte) error {
	for {
		ok, err := c.EmitAvailable()
		if err != nil {
			return err
		}
		if ok {
			c.beep(b)
			return c.be.Emit(b)
		}
		if err := c.wait(ctx, nil); err != nil {
			return err
		}
	}
}

// Type emits every byte of p.
func (c *Console) Type(ctx context.Context, p []byte) error {
	for _, b := range p {
		if err := c.Emit(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// TypeString emits every byte of s.
func (c *Console) TypeString(ctx context.Context, s string) error {
	for i := 0; i < len(s); i++ {
		if err := c.Emit(ctx, s[i]); err != nil {
			return err
		}
	}
	return nil
}

// TypeCString emits p up to its first NUL byte.
func (c *Console) TypeCString(ctx context.Context, p []byte) error {
	for _, b := range p {
		if b == 0 {
			break
		}
		if err := c.Emit(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Write implements io.Writer with a background context.
func (c *Console) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := c.Emit(context.Background(), b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// TypeError types the message for code.
func (c *Console) TypeError(ctx context.Context, code Code) error {
	return c.TypeString(ctx, code.Message())
}

// Banner is the text of the welcome screen.
type Banner struct {
	Product   string
	Copyright string
	Version   string
}

// Welcome resets the terminal and types the banner.
func (c *Console) Welcome(ctx context.Context, b Banner) error {
	s := "\033c" + b.Product + "\r\n"
	if b.Copyright != "" {
		s += b.Copyright + "\r\n"
	}
	s += "Version " + b.Version + "\r\n"
	return c.TypeString(ctx, s)
}

// Accept reads one line into buf and returns its length.
//
// BS erases the previous character, or rings the bell at the start of the
// line. DEL discards the whole line. Bytes outside printable ASCII are
// ignored and a full buffer rings the bell. CR ends the line: it is echoed
// as a space and, when there is room, stored as a space after the text.
func (c *Console) Accept(ctx context.Context, buf []byte) (int, error) {
	pos := 0
	for {
		ch, err := c.Key(ctx)
		if err != nil {
			return pos, err
		}

		switch {
		case ch == bs:
			if pos == 0 {
				err = c.Emit(ctx, bel)
				break
			}
			pos--
			err = c.Type(ctx, []byte{bs, ' ', bs})
		case ch == del:
			pos = 0
			err = c.TypeString(ctx, "\033[2K\r")
		case ch == cr:
			if pos < len(buf) {
				buf[pos] = ' '
			}
			if err := c.Emit(ctx, ' '); err != nil {
				return pos, err
			}
			return pos, nil
		case ch < 0x20 || ch > 0x7E:
		case pos >= len(buf):
			err = c.Emit(ctx, bel)
		default:
			buf[pos] = ch
			pos++
			err = c.Emit(ctx, ch)
		}
		if err != nil {
			return pos, err
		}
	}
}

func backendName(be Backend) string {
	switch be.(type) {
	case *Serial:
		return "serial"
	case *PicoCalc:
		return "picocalc"
	}
	return "custom"
}
