// Package vt implements the subset of VT100/ANSI terminal control the
// console understands, on top of a character-cell display.
//
// Supported: BS, HT, LF, VT, FF, CR; ESC 7 8 c D E M; CSI A B C D H f J m.
// CAN and SUB inside a sequence cancel it and print the error glyph.
// Anything else is ignored and the parser returns to the ground state.
package vt

import "github.com/jangala-dev/tinygo-picoterm/font"

// Display is the character-cell surface the terminal draws on.
type Display interface {
	SetColors(fg, bg uint16)
	DrawGlyph(col, row int, c byte, underline, reverse bool)
	ScrollUp()
	ScrollDown()
	ClearScreen()
	SetCursor(col, row int)
	DrawCursor()
	EraseCursor()
}

// Batcher is implemented by displays that can group the drawing for one
// byte into a single bus operation. Begin is called before the cursor is
// erased and End after it is redrawn.
type Batcher interface {
	Begin()
	End()
}

// State is the escape-sequence parser state.
type State uint8

const (
	Normal State = iota
	Escape
	ControlSequence
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Escape:
		return "escape"
	case ControlSequence:
		return "control-sequence"
	}
	return "unknown"
}

// MaxParams is the number of CSI parameters kept; extra ';' reuse the last.
const MaxParams = 16

const (
	bs  = 0x08
	bel = 0x07
	ht  = 0x09
	lf  = 0x0A
	vtb = 0x0B
	ff  = 0x0C
	cr  = 0x0D
	can = 0x18
	sub = 0x1A
	esc = 0x1B
)

// Attributes are the current SGR settings.
type Attributes struct {
	Foreground uint8 // palette index
	Background uint8 // palette index
	Bold       bool
	Underline  bool
	Reverse    bool
}

// Colors returns the palette indices drawn with a. Bold selects the bright
// variant of the eight base colours.
func (a Attributes) Colors() (fg, bg uint8) {
	fg = a.Foreground
	if a.Bold && fg < 8 {
		fg += 8
	}
	return fg, a.Background
}

// Terminal is the escape-sequence state machine. It is driven only from the
// main context.
type Terminal struct {
	d       Display
	palette Palette
	cols    int
	rows    int

	state  State
	params [MaxParams]uint16
	nparam int

	x, y           int
	savedX, savedY int

	attr Attributes
}

// New returns a Terminal drawing on d, a grid of cols by rows cells. The
// display colours are set to the defaults; the screen is not cleared.
func New(d Display, cols, rows int) *Terminal {
	t := &Terminal{d: d, palette: DefaultPalette, cols: cols, rows: rows}
	t.resetAttributes()
	t.d.SetCursor(0, 0)
	return t
}

// SetPalette replaces the colour table.
func (t *Terminal) SetPalette(p Palette) {
	t.palette = p
	t.applyColors()
}

// Cursor returns the cursor cell.
func (t *Terminal) Cursor() (x, y int) { return t.x, t.y }

// State returns the parser state.
func (t *Terminal) State() State { return t.state }

// Attributes returns the current text attributes.
func (t *Terminal) Attributes() Attributes { return t.attr }

// Write consumes every byte of p. It never fails.
func (t *Terminal) Write(p []byte) (int, error) {
	for _, b := range p {
		t.Consume(b)
	}
	return len(p), nil
}

// Consume processes one output byte: the cursor bar is erased, the byte is
// interpreted, the cursor is wrapped and the screen scrolled as needed, and
// the cursor bar is redrawn at the new position. A Batcher display is held
// from the erase to the redraw.
func (t *Terminal) Consume(b byte) {
	if bt, ok := t.d.(Batcher); ok {
		bt.Begin()
		defer bt.End()
	}
	t.d.EraseCursor()

	switch t.state {
	case Escape:
		t.handleEscape(b)
	case ControlSequence:
		t.handleCSI(b)
	default:
		t.handleGround(b)
	}

	if t.x > t.maxCol() {
		t.x = 0
		t.y++
	}
	for t.y < 0 {
		t.d.ScrollDown()
		t.y++
	}
	for t.y > t.maxRow() {
		t.d.ScrollUp()
		t.y--
	}

	t.d.SetCursor(t.x, t.y)
	t.d.DrawCursor()
}

func (t *Terminal) maxCol() int { return t.cols - 1 }
func (t *Terminal) maxRow() int { return t.rows - 1 }

func (t *Terminal) handleGround(b byte) {
	switch b {
	case bs:
		t.x = max(0, t.x-1)
	case bel:
		// rung by the console, not drawn
	case ht:
		t.x = min((t.x+4)&^3, t.maxCol())
	case lf, vtb, ff:
		t.y++
	case cr:
		t.x = 0
	case esc:
		t.state = Escape
	default:
		if b >= 0x20 && b < 0x7F {
			t.put(b)
		}
	}
}

func (t *Terminal) handleEscape(b byte) {
	t.state = Normal
	switch b {
	case can, sub:
		t.put(font.Error)
	case esc:
		t.state = Escape
	case '7': // DECSC
		t.savedX, t.savedY = t.x, t.y
	case '8': // DECRC
		t.x, t.y = t.savedX, t.savedY
	case 'D': // IND
		t.y++
	case 'E': // NEL
		t.x = 0
		t.y++
	case 'M': // RI
		t.y--
	case 'c': // RIS
		t.Reset()
	case '[':
		t.params = [MaxParams]uint16{}
		t.nparam = 0
		t.state = ControlSequence
	}
}

func (t *Terminal) handleCSI(b byte) {
	switch {
	case b == esc:
		t.state = Escape
	case b >= '0' && b <= '9':
		t.params[t.nparam] = t.params[t.nparam]*10 + uint16(b-'0')
	case b == ';':
		if t.nparam < MaxParams-1 {
			t.nparam++
		}
	default:
		t.state = Normal
		t.executeCSI(b)
	}
}

func (t *Terminal) executeCSI(final byte) {
	p0, p1 := int(t.params[0]), int(t.params[1])
	switch final {
	case 'A': // CUU
		t.y = max(0, t.y-p0)
	case 'B': // CUD
		t.y = min(t.y+p0, t.maxRow())
	case 'C': // CUF
		t.x = min(t.x+p0, t.maxCol())
	case 'D': // CUB
		t.x = max(0, t.x-p0)
	case 'J': // ED, entire screen only
		t.d.ClearScreen()
	case 'H', 'f': // CUP, HVP
		t.x = min(p0, t.maxCol())
		t.y = min(p1, t.maxRow())
	case 'm':
		t.executeSGR()
	case can, sub:
		t.put(font.Error)
	}
}

func (t *Terminal) executeSGR() {
	for _, p := range t.params[:t.nparam+1] {
		switch {
		case p == 0:
			t.attr = Attributes{Foreground: DefaultForeground, Background: DefaultBackground}
		case p == 1:
			t.attr.Bold = true
		case p == 4:
			t.attr.Underline = true
		case p == 7:
			t.attr.Reverse = true
		case p >= 30 && p <= 37:
			t.attr.Foreground = uint8(p - 30)
		case p == 39:
			t.attr.Foreground = DefaultForeground
		case p >= 40 && p <= 47:
			t.attr.Background = uint8(p - 40)
		case p == 49:
			t.attr.Background = DefaultBackground
		}
	}
	t.applyColors()
}

// Reset returns to the initial state: cursor home, default attributes,
// screen cleared.
func (t *Terminal) Reset() {
	t.x, t.y = 0, 0
	t.state = Normal
	t.resetAttributes()
	t.d.ClearScreen()
}

func (t *Terminal) resetAttributes() {
	t.attr = Attributes{Foreground: DefaultForeground, Background: DefaultBackground}
	t.applyColors()
}

func (t *Terminal) applyColors() {
	fg, bg := t.attr.Colors()
	t.d.SetColors(t.palette[fg&0xF], t.palette[bg&0xF])
}

func (t *Terminal) put(c byte) {
	t.d.DrawGlyph(t.x, t.y, c, t.attr.Underline, t.attr.Reverse)
	t.x++
}
