// Package lcd drives an ST7365P panel over SPI as a grid of character cells.
//
// There is no frame buffer: glyphs are expanded into a small pixel buffer and
// written straight into controller RAM. The controller RAM is taller than the
// visible frame and is used as a circular buffer, so scrolling one line is a
// single VSCSAD register write plus a fill of the newly exposed row.
//
// Every public drawing operation holds the bus lock for its whole duration;
// Begin and End widen that to a run of operations. The cursor blinker shares
// the lock and skips its tick when the bus is busy.
package lcd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/font"
)

// Bus is the SPI link to the panel. Besides the byte transfers of
// drivers.SPI it must be able to switch between 8 and 16 bit frames and
// stream 16-bit words.
type Bus interface {
	drivers.SPI
	SetWordSize(bits uint8) error
	Tx16(w []uint16) error
}

// Pin is a push-pull output.
type Pin interface {
	High()
	Low()
}

// Config describes the panel. Zero fields take the PicoCalc defaults.
type Config struct {
	Width        int
	Height       int
	MemoryHeight int

	// Sleep is used for reset and init delays; time.Sleep when nil.
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

var (
	ErrGeometry = errors.New("lcd: invalid geometry")
)

// Device is a character-cell view of the panel.
type Device struct {
	bus   Bus
	dc    Pin
	cs    Pin
	rst   Pin
	lock  *bus.Lock
	sleep func(time.Duration)
	log   *slog.Logger

	width     int
	height    int
	memHeight int

	// guarded by lock
	offset int
	glyph  [font.Width * font.Height]uint16
	line   []uint16
	cmd    [1]byte
	data   [6]byte
	err    error

	batch  atomic.Bool   // between Begin and End, set by the caller of Begin
	colors atomic.Uint32 // fg<<16 | bg, RGB565
	cursor atomic.Uint32 // col<<16 | row
}

// New returns a Device on the given bus and control pins. rst may be nil when
// the reset line is not wired. lock guards every bus transaction; it is
// shared with the cursor blinker.
func New(b Bus, dc, cs, rst Pin, lock *bus.Lock, cfg Config) (*Device, error) {
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.MemoryHeight == 0 {
		cfg.MemoryHeight = DefaultMemoryHeight
	}
	if cfg.Width%font.Width != 0 || cfg.Height%font.Height != 0 ||
		cfg.MemoryHeight < cfg.Height || cfg.MemoryHeight%font.Height != 0 {
		return nil, fmt.Errorf("%w: %dx%d in %d rows", ErrGeometry, cfg.Width, cfg.Height, cfg.MemoryHeight)
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if lock == nil {
		lock = bus.New()
	}
	d := &Device{
		bus:       b,
		dc:        dc,
		cs:        cs,
		rst:       rst,
		lock:      lock,
		sleep:     cfg.Sleep,
		log:       cfg.Logger,
		width:     cfg.Width,
		height:    cfg.Height,
		memHeight: cfg.MemoryHeight,
		line:      make([]uint16, cfg.Width),
	}
	d.colors.Store(0xFFFF << 16)
	return d, nil
}

// Columns returns the number of character cells per row.
func (d *Device) Columns() int { return d.width / font.Width }

// Rows returns the number of visible character rows.
func (d *Device) Rows() int { return d.height / font.Height }

// Lock returns the bus lock shared by all users of the panel.
func (d *Device) Lock() *bus.Lock { return d.lock }

// Configure resets the controller, runs the init sequence, clears all of
// controller RAM and turns the display on.
func (d *Device) Configure() error {
	d.lock.Acquire()
	defer d.lock.Release()

	d.err = nil
	d.cs.High()
	if d.rst != nil {
		d.rst.High()
		d.hardReset()
	}

	d.log.Debug("lcd: init sequence")
	d.writeCmd(cmdSWRESET)
	d.sleep(10 * time.Millisecond)

	d.writeCmd(cmdCOLMOD)
	d.writeByte(colmodRGB565)
	d.writeCmd(cmdMADCTL)
	d.writeByte(madctlBGR)
	d.writeCmd(cmdINVON)
	d.writeCmd(cmdEMS)
	d.writeByte(emsNormal)
	d.defineScrolling(0, 0)

	d.writeCmd(cmdSLPOUT)
	d.sleep(10 * time.Millisecond)

	d.offset = 0
	_, bg := d.Colors()
	d.solidFill(bg, 0, 0, d.width, d.memHeight)

	d.writeCmd(cmdDISPON)
	if d.err != nil {
		return fmt.Errorf("lcd: configure: %w", d.err)
	}
	return nil
}

// hardReset pulses the reset line: 20µs low, then 120ms before sleep out
// may be sent.
func (d *Device) hardReset() {
	d.log.Debug("lcd: hardware reset")
	d.rst.Low()
	d.sleep(20 * time.Microsecond)
	d.rst.High()
	d.sleep(120 * time.Millisecond)
}

// Err returns the first bus error since Configure, if any.
func (d *Device) Err() error {
	d.lock.Acquire()
	defer d.lock.Release()
	return d.err
}

func (d *Device) fail(op string, err error) {
	if err == nil {
		return
	}
	if d.err == nil {
		d.err = fmt.Errorf("%s: %w", op, err)
		d.log.Warn("lcd: bus write failed", "op", op, "err", err)
	}
}

// Low-level protocol. CS goes low around exactly one burst, and for 16-bit
// bursts the word size switch and DC are set before CS falls so the
// controller sees the minimum CS high pulse width between transactions.

func (d *Device) writeCmd(cmd byte) {
	d.cmd[0] = cmd
	d.dc.Low()
	d.cs.Low()
	d.fail("cmd", d.bus.Tx(d.cmd[:], nil))
	d.cs.High()
}

func (d *Device) writeData(data []byte) {
	d.dc.High()
	d.cs.Low()
	d.fail("data", d.bus.Tx(data, nil))
	d.cs.High()
}

func (d *Device) writeByte(v byte) {
	d.data[0] = v
	d.writeData(d.data[:1])
}

func (d *Device) writeData16(data []uint16) {
	d.fail("word size", d.bus.SetWordSize(16))
	d.dc.High()
	d.cs.Low()
	d.fail("data16", d.bus.Tx16(data))
	d.cs.High()
	d.fail("word size", d.bus.SetWordSize(8))
}

func (d *Device) setWindow(x0, y0, x1, y1 int) {
	d.writeCmd(cmdCASET)
	d.data = [6]byte{byte(x0 >> 8), byte(x0), byte(x1 >> 8), byte(x1)}
	d.writeData(d.data[:4])

	d.writeCmd(cmdRASET)
	d.data = [6]byte{byte(y0 >> 8), byte(y0), byte(y1 >> 8), byte(y1)}
	d.writeData(d.data[:4])

	d.writeCmd(cmdRAMWR)
}

// windowBlit writes a w×h block of pixels at visible position (x, y). The
// row is translated by the scroll offset; a block that runs past the end of
// controller RAM is split and continued at RAM row 0.
func (d *Device) windowBlit(pixels []uint16, x, y, w, h int) {
	yv := (y + d.offset) % d.memHeight
	if n := d.memHeight - yv; n < h {
		d.setWindow(x, yv, x+w-1, d.memHeight-1)
		d.writeData16(pixels[:w*n])
		pixels, h, yv = pixels[w*n:], h-n, 0
	}
	d.setWindow(x, yv, x+w-1, yv+h-1)
	d.writeData16(pixels[:w*h])
}

func (d *Device) solidFill(color uint16, x, y, w, h int) {
	line := d.line[:w]
	for i := range line {
		line[i] = color
	}
	for row := 0; row < h; row++ {
		d.windowBlit(line, x, y+row, w, 1)
	}
}

func (d *Device) defineScrolling(top, bottom int) {
	area := d.height - (top + bottom)
	d.writeCmd(cmdVSCRDEF)
	d.data = [6]byte{
		byte(top >> 8), byte(top),
		byte(area >> 8), byte(area),
		byte(bottom >> 8), byte(bottom),
	}
	d.writeData(d.data[:6])
}

func (d *Device) setScrollStart() {
	d.writeCmd(cmdVSCSAD)
	d.data[0], d.data[1] = byte(d.offset>>8), byte(d.offset)
	d.writeData(d.data[:2])
}
