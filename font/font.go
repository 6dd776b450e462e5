// Package font holds the fixed-width glyph table used by the display.
//
// Each glyph is Width pixels wide and Height rows tall, one byte per row,
// most significant bit leftmost. The printable ASCII range is rasterised
// from the x/image 7x13 bitmap face at package init; the bottom row of every
// cell is left blank for the cursor and underline.
package font

import (
	"image"
	"image/color"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 8
	Height = 16

	// Error is the code of the glyph drawn for cancelled escape sequences.
	Error = 0x02
)

// baseline is the pixel row the face's dot sits on inside a cell.
const baseline = 13

var table [256 * Height]byte

func init() {
	face := basicfont.Face7x13
	for c := 0x20; c < 0x7F; c++ {
		dr, mask, mp, _, ok := face.Glyph(fixed.P(0, baseline), rune(c))
		if !ok {
			continue
		}
		rasterise(table[c*Height:(c+1)*Height], dr, mask, mp)
	}
	copy(table[Error*Height:], errorGlyph[:])
}

func rasterise(dst []byte, dr image.Rectangle, mask image.Image, mp image.Point) {
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		if y < 0 || y >= Height-1 {
			continue
		}
		var row byte
		for x := dr.Min.X; x < dr.Max.X; x++ {
			if x < 0 || x >= Width {
				continue
			}
			a := color.AlphaModel.Convert(mask.At(mp.X+x-dr.Min.X, mp.Y+y-dr.Min.Y)).(color.Alpha).A
			if a >= 0x80 {
				row |= 0x80 >> uint(x)
			}
		}
		dst[y] = row
	}
}

// Hollow box with a diagonal.
var errorGlyph = [Height]byte{
	0x00, 0x00, 0xFE, 0x82,
	0xC2, 0xA2, 0xA2, 0x92,
	0x92, 0x8A, 0x8A, 0x86,
	0x82, 0xFE, 0x00, 0x00,
}

// Glyph returns the Height row bytes of code c. The slice aliases the table
// and must not be modified.
func Glyph(c byte) []byte {
	i := int(c) * Height
	return table[i : i+Height : i+Height]
}

// Blank reports whether glyph c has no set pixels.
func Blank(c byte) bool {
	for _, r := range Glyph(c) {
		if r != 0 {
			return false
		}
	}
	return true
}
