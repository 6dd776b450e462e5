package sim

import (
	"strings"
	"sync"

	"github.com/jangala-dev/tinygo-picoterm/font"
)

// Cell is the decoded content of one character cell on the panel.
type Cell struct {
	Char      byte // 0 when the pixels match no glyph
	Fg, Bg    uint16
	Underline bool
}

var (
	glyphsOnce sync.Once
	glyphs     map[[font.Height - 1]byte]byte
)

func glyphIndex() map[[font.Height - 1]byte]byte {
	glyphsOnce.Do(func() {
		glyphs = make(map[[font.Height - 1]byte]byte)
		add := func(c byte) {
			var key [font.Height - 1]byte
			copy(key[:], font.Glyph(c))
			if _, dup := glyphs[key]; !dup {
				glyphs[key] = c
			}
		}
		for c := 0x20; c < 0x7F; c++ {
			add(byte(c))
		}
		add(font.Error)
	})
	return glyphs
}

// Cell reads back the glyph shown at text position (col, row). The top-left
// pixel of the cell is taken as the background; every other colour is ink.
func (p *Panel) Cell(col, row int) Cell {
	p.mu.Lock()
	defer p.mu.Unlock()

	x0, y0 := col*font.Width, row*font.Height
	at := func(x, y int) uint16 {
		return p.ram[((p.scrollStart+y0+y)%p.memHeight)*p.width+x0+x]
	}

	c := Cell{Bg: at(0, 0)}
	c.Fg = c.Bg
	var key [font.Height - 1]byte
	for y := range key {
		for x := 0; x < font.Width; x++ {
			if v := at(x, y); v != c.Bg {
				key[y] |= 0x80 >> uint(x)
				c.Fg = v
			}
		}
	}
	c.Char = glyphIndex()[key]

	c.Underline = true
	for x := 0; x < font.Width; x++ {
		if at(x, font.Height-1) == c.Bg {
			c.Underline = false
			break
		}
	}
	return c
}

// Text returns the characters of text row row with trailing blanks removed.
// Cells that match no glyph read as '?'.
func (p *Panel) Text(row int) string {
	cols := p.width / font.Width
	var sb strings.Builder
	for col := 0; col < cols; col++ {
		c := p.Cell(col, row)
		switch {
		case c.Char == 0:
			sb.WriteByte('?')
		case c.Char < 0x20:
			sb.WriteByte('#')
		default:
			sb.WriteByte(c.Char)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}
