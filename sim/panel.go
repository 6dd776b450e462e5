// Package sim emulates the PicoCalc peripherals on the host: the ST7365P
// panel behind its SPI link and the I2C keyboard controller. The emulators
// check the bus protocol as they go and record what they see, so drivers can
// be tested without hardware and the simulator can show the result.
package sim

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/fogleman/gg"
)

// Panel command codes understood by the emulator.
const (
	cmdSWRESET = 0x01
	cmdSLPIN   = 0x10
	cmdSLPOUT  = 0x11
	cmdINVOFF  = 0x20
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdVSCRDEF = 0x33
	cmdMADCTL  = 0x36
	cmdVSCSAD  = 0x37
	cmdCOLMOD  = 0x3A
	cmdEMS     = 0xB7
)

// EventKind identifies a recorded bus event.
type EventKind uint8

const (
	CSLow EventKind = iota
	CSHigh
	DCLow
	DCHigh
	ResetLow
	ResetHigh
	WordSize
	Command
	Data
	Data16
)

func (k EventKind) String() string {
	switch k {
	case CSLow:
		return "cs-low"
	case CSHigh:
		return "cs-high"
	case DCLow:
		return "dc-low"
	case DCHigh:
		return "dc-high"
	case ResetLow:
		return "rst-low"
	case ResetHigh:
		return "rst-high"
	case WordSize:
		return "word-size"
	case Command:
		return "cmd"
	case Data:
		return "data"
	case Data16:
		return "data16"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is one step on the panel's wires. Value holds the command, the word
// size, or the first data item; N is the number of data items in a burst.
type Event struct {
	Kind  EventKind
	Value uint16
	N     int
}

// Panel emulates the controller RAM and the command decoder of the panel.
// It satisfies the display driver's Bus interface, and DC, CS and RST return
// its control pins.
type Panel struct {
	mu sync.Mutex

	width     int
	height    int
	memHeight int
	ram       []uint16

	dc, cs, rst bool // pin levels, true is high
	wordSize    uint8

	cmd     byte
	params  []byte
	pending int // high byte of an 8-bit pixel write, or -1

	x0, x1, y0, y1 int
	px, py         int

	scrollStart int
	scrollDef   [3]int
	on          bool
	sleeping    bool
	inverted    bool
	madctl      byte
	colmod      byte

	commands   map[byte]int
	violations []string
	tracing    bool
	trace      []Event

	inflight atomic.Int32
	frames   atomic.Uint64 // bumped on every RAM or scroll change
}

// NewPanel returns a powered-off panel of the given geometry with its RAM
// filled with noise, as after power-up.
func NewPanel(width, height, memHeight int) *Panel {
	p := &Panel{
		width:     width,
		height:    height,
		memHeight: memHeight,
		ram:       make([]uint16, width*memHeight),
		dc:        true,
		cs:        true,
		rst:       true,
		wordSize:  8,
		pending:   -1,
		sleeping:  true,
		scrollDef: [3]int{0, memHeight, 0},
		commands:  make(map[byte]int),
	}
	seed := uint32(0x2545F491)
	for i := range p.ram {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		p.ram[i] = uint16(seed)
	}
	return p
}

// Pin is one of the panel's control inputs.
type Pin struct {
	p    *Panel
	kind EventKind // low event of the pin
}

func (pin Pin) High() { pin.p.setPin(pin.kind, true) }
func (pin Pin) Low()  { pin.p.setPin(pin.kind, false) }

// DC returns the data/command select pin.
func (p *Panel) DC() Pin { return Pin{p, DCLow} }

// CS returns the chip select pin.
func (p *Panel) CS() Pin { return Pin{p, CSLow} }

// RST returns the reset pin.
func (p *Panel) RST() Pin { return Pin{p, ResetLow} }

func (p *Panel) setPin(low EventKind, high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := low
	if high {
		ev++
	}
	p.record(Event{Kind: ev})
	switch low {
	case DCLow:
		p.dc = high
	case CSLow:
		if !high && !p.cs {
			p.violate("CS asserted while already low")
		}
		p.cs = high
	case ResetLow:
		if p.rst && !high {
			p.reset()
		}
		p.rst = high
	}
}

func (p *Panel) record(ev Event) {
	if p.tracing {
		p.trace = append(p.trace, ev)
	}
}

func (p *Panel) violate(format string, args ...any) {
	p.violations = append(p.violations, fmt.Sprintf(format, args...))
}

func (p *Panel) reset() {
	p.scrollStart = 0
	p.scrollDef = [3]int{0, p.memHeight, 0}
	p.on = false
	p.sleeping = true
	p.inverted = false
	p.cmd = 0
	p.params = p.params[:0]
	p.pending = -1
	p.frames.Add(1)
}

func (p *Panel) enter() {
	if p.inflight.Add(1) != 1 {
		p.mu.Lock()
		p.violate("concurrent transfers on the panel bus")
		p.mu.Unlock()
	}
}

func (p *Panel) leave() { p.inflight.Add(-1) }

// Tx clocks out w as 8-bit frames. The panel never drives MISO, so r is
// zeroed.
func (p *Panel) Tx(w, r []byte) error {
	p.enter()
	defer p.leave()

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range r {
		r[i] = 0
	}
	if len(w) == 0 {
		return nil
	}
	if p.cs {
		p.violate("8-bit transfer with CS high")
		return nil
	}
	if p.wordSize != 8 {
		p.violate("8-bit transfer in %d-bit mode", p.wordSize)
	}
	if !p.dc {
		for _, c := range w {
			p.record(Event{Kind: Command, Value: uint16(c), N: 1})
			p.command(c)
		}
		return nil
	}
	p.record(Event{Kind: Data, Value: uint16(w[0]), N: len(w)})
	for _, b := range w {
		p.data(b)
	}
	return nil
}

// Transfer clocks a single byte.
func (p *Panel) Transfer(b byte) (byte, error) {
	err := p.Tx([]byte{b}, nil)
	return 0, err
}

// SetWordSize switches between 8 and 16 bit frames.
func (p *Panel) SetWordSize(bits uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bits != 8 && bits != 16 {
		return fmt.Errorf("sim: unsupported word size %d", bits)
	}
	p.record(Event{Kind: WordSize, Value: uint16(bits)})
	p.wordSize = bits
	return nil
}

// Tx16 clocks out w as 16-bit frames.
func (p *Panel) Tx16(w []uint16) error {
	p.enter()
	defer p.leave()

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(w) == 0 {
		return nil
	}
	if p.cs {
		p.violate("16-bit transfer with CS high")
		return nil
	}
	if p.wordSize != 16 {
		p.violate("16-bit transfer in %d-bit mode", p.wordSize)
	}
	if !p.dc {
		p.violate("16-bit transfer in command mode")
		return nil
	}
	p.record(Event{Kind: Data16, Value: w[0], N: len(w)})
	if p.cmd != cmdRAMWR {
		p.violate("16-bit data after command 0x%02X", p.cmd)
		return nil
	}
	for _, v := range w {
		p.pixel(v)
	}
	p.frames.Add(1)
	return nil
}

func (p *Panel) command(c byte) {
	p.commands[c]++
	p.cmd = c
	p.params = p.params[:0]
	p.pending = -1
	switch c {
	case cmdSWRESET:
		p.reset()
	case cmdSLPIN:
		p.sleeping = true
	case cmdSLPOUT:
		p.sleeping = false
	case cmdINVON:
		p.inverted = true
	case cmdINVOFF:
		p.inverted = false
	case cmdDISPON:
		p.on = true
		p.frames.Add(1)
	case cmdDISPOFF:
		p.on = false
		p.frames.Add(1)
	case cmdRAMWR:
		p.px, p.py = p.x0, p.y0
	}
}

func (p *Panel) data(b byte) {
	if p.cmd == cmdRAMWR {
		if p.pending < 0 {
			p.pending = int(b)
			return
		}
		p.pixel(uint16(p.pending)<<8 | uint16(b))
		p.pending = -1
		p.frames.Add(1)
		return
	}
	p.params = append(p.params, b)
	word := func(i int) int { return int(p.params[i])<<8 | int(p.params[i+1]) }
	switch {
	case p.cmd == cmdCASET && len(p.params) == 4:
		p.x0, p.x1 = word(0), word(2)
	case p.cmd == cmdRASET && len(p.params) == 4:
		p.y0, p.y1 = word(0), word(2)
	case p.cmd == cmdVSCSAD && len(p.params) == 2:
		p.scrollStart = word(0) % p.memHeight
		p.frames.Add(1)
	case p.cmd == cmdVSCRDEF && len(p.params) == 6:
		p.scrollDef = [3]int{word(0), word(2), word(4)}
	case p.cmd == cmdMADCTL && len(p.params) == 1:
		p.madctl = b
	case p.cmd == cmdCOLMOD && len(p.params) == 1:
		p.colmod = b
	}
}

func (p *Panel) pixel(v uint16) {
	if p.px < p.width && p.py < p.memHeight {
		p.ram[p.py*p.width+p.px] = v
	} else {
		p.violate("pixel write outside RAM at (%d,%d)", p.px, p.py)
	}
	p.px++
	if p.px > p.x1 {
		p.px = p.x0
		p.py++
	}
}

// Pixel returns the RGB565 value shown at visible position (x, y).
func (p *Panel) Pixel(x, y int) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ram[((p.scrollStart+y)%p.memHeight)*p.width+x]
}

// RAM returns the RGB565 value stored at controller RAM row y, column x.
func (p *Panel) RAM(x, y int) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ram[y*p.width+x]
}

// ScrollStart returns the last VSCSAD value.
func (p *Panel) ScrollStart() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollStart
}

// ScrollArea returns the last VSCRDEF fixed-top, scroll and fixed-bottom
// heights.
func (p *Panel) ScrollArea() (top, area, bottom int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollDef[0], p.scrollDef[1], p.scrollDef[2]
}

// On reports whether the display is on and out of sleep.
func (p *Panel) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on && !p.sleeping
}

// Mode returns the last MADCTL and COLMOD parameters.
func (p *Panel) Mode() (madctl, colmod byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.madctl, p.colmod
}

// Commands returns how many times command c was received.
func (p *Panel) Commands(c byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commands[c]
}

// Violations returns the protocol errors seen so far.
func (p *Panel) Violations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.violations...)
}

// StartTrace clears and enables event recording.
func (p *Panel) StartTrace() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracing = true
	p.trace = p.trace[:0]
}

// StopTrace disables recording and returns the events seen since StartTrace.
func (p *Panel) StopTrace() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracing = false
	tr := p.trace
	p.trace = nil
	return tr
}

// Generation changes whenever what the panel shows may have changed.
func (p *Panel) Generation() uint64 { return p.frames.Load() }

// Size returns the visible width and height in pixels.
func (p *Panel) Size() (width, height int) { return p.width, p.height }

// RGB565 expands a 16-bit panel colour.
func RGB565(v uint16) color.RGBA {
	r := uint8(v>>11) & 0x1F
	g := uint8(v>>5) & 0x3F
	b := uint8(v) & 0x1F
	return color.RGBA{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xFF}
}

// Visible renders the visible frame. A panel that is off shows black.
func (p *Panel) Visible() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	if !p.on || p.sleeping {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xFF
		}
		return img
	}
	for y := 0; y < p.height; y++ {
		row := ((p.scrollStart + y) % p.memHeight) * p.width
		for x := 0; x < p.width; x++ {
			img.SetRGBA(x, y, RGB565(p.ram[row+x]))
		}
	}
	return img
}

// SavePNG writes the visible frame to path, scaled by an integer factor.
func (p *Panel) SavePNG(path string, scale int) error {
	if scale < 1 {
		scale = 1
	}
	img := p.Visible()
	dc := gg.NewContext(p.width*scale, p.height*scale)
	dc.Scale(float64(scale), float64(scale))
	dc.DrawImage(img, 0, 0)
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("sim: save %s: %w", path, err)
	}
	return nil
}
