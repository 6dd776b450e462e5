package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/keyboard"
	"github.com/jangala-dev/tinygo-picoterm/lcd"
	"github.com/jangala-dev/tinygo-picoterm/vt"
)

// ErrNotInitialised is returned by Emit before Init has built the terminal.
var ErrNotInitialised = errors.New("console: picocalc not initialised")

// PicoCalcConfig tunes the PicoCalc backend. Zero fields take the defaults.
type PicoCalcConfig struct {
	PollPeriod  time.Duration // keyboard poll
	BlinkPeriod time.Duration // cursor half-period
	Palette     *vt.Palette
	Bell        func()
	Logger      *slog.Logger
}

// PicoCalc is the backend built from the LCD, the terminal emulator and the
// keyboard decoder. Output is always available: the emulator draws
// synchronously.
type PicoCalc struct {
	display *lcd.Device
	keys    *keyboard.Decoder
	term    *vt.Terminal
	blink   *lcd.Blinker
	cfg     PicoCalcConfig
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPicoCalc returns a backend on an unconfigured display and a keyboard
// decoder.
func NewPicoCalc(d *lcd.Device, k *keyboard.Decoder, cfg PicoCalcConfig) *PicoCalc {
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = keyboard.DefaultPollPeriod
	}
	if cfg.BlinkPeriod <= 0 {
		cfg.BlinkPeriod = lcd.DefaultBlinkPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PicoCalc{
		display: d,
		keys:    k,
		blink:   lcd.NewBlinker(d, cfg.BlinkPeriod),
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// Terminal returns the emulator; nil before Init.
func (p *PicoCalc) Terminal() *vt.Terminal { return p.term }

// Keyboard returns the keyboard decoder.
func (p *PicoCalc) Keyboard() *keyboard.Decoder { return p.keys }

// Init configures the display, then starts the cursor blink and keyboard
// poll tasks.
func (p *PicoCalc) Init(ctx context.Context) error {
	if err := p.display.Configure(); err != nil {
		return fmt.Errorf("console: picocalc init: %w", err)
	}
	p.term = vt.New(p.display, p.display.Columns(), p.display.Rows())
	if p.cfg.Palette != nil {
		p.term.SetPalette(*p.cfg.Palette)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.blink.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.keys.Run(ctx, p.cfg.PollPeriod)
	}()
	p.log.Debug("console: picocalc ready",
		"cols", p.display.Columns(), "rows", p.display.Rows(),
		"poll", p.cfg.PollPeriod, "blink", p.cfg.BlinkPeriod)
	return nil
}

func (p *PicoCalc) KeyAvailable() bool { return p.keys.KeyAvailable() }

func (p *PicoCalc) GetKey() (byte, bool) { return p.keys.TryGetKey() }

func (p *PicoCalc) EmitAvailable() bool { return true }

func (p *PicoCalc) Emit(b byte) error {
	if p.term == nil {
		return ErrNotInitialised
	}
	p.term.Consume(b)
	return nil
}

func (p *PicoCalc) Readable() <-chan struct{} { return p.keys.Readable() }

// Beep runs the configured bell hook.
func (p *PicoCalc) Beep() {
	if p.cfg.Bell != nil {
		p.cfg.Bell()
	}
}

// Close stops the background tasks and waits for them.
func (p *PicoCalc) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}
