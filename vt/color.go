package vt

// RGB packs 8-bit channels into RGB565.
func RGB(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Palette maps the 16 ANSI colour indices to RGB565.
type Palette [16]uint16

// Standard 16 ANSI colors (VGA)
var DefaultPalette = Palette{
	RGB(0x00, 0x00, 0x00), // black
	RGB(0xAA, 0x00, 0x00), // red
	RGB(0x00, 0xAA, 0x00), // green
	RGB(0xAA, 0x55, 0x00), // yellow (brown)
	RGB(0x00, 0x00, 0xAA), // blue
	RGB(0xAA, 0x00, 0xAA), // magenta
	RGB(0x00, 0xAA, 0xAA), // cyan
	RGB(0xAA, 0xAA, 0xAA), // white
	RGB(0x55, 0x55, 0x55), // bright black
	RGB(0xFF, 0x55, 0x55), // bright red
	RGB(0x55, 0xFF, 0x55), // bright green
	RGB(0xFF, 0xFF, 0x55), // bright yellow
	RGB(0x55, 0x55, 0xFF), // bright blue
	RGB(0xFF, 0x55, 0xFF), // bright magenta
	RGB(0x55, 0xFF, 0xFF), // bright cyan
	RGB(0xFF, 0xFF, 0xFF), // bright white
}

// Default attribute colours.
const (
	DefaultForeground = 7
	DefaultBackground = 0
)
