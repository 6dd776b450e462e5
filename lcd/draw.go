package lcd

import "github.com/jangala-dev/tinygo-picoterm/font"

// Begin takes the bus until End, so that a run of primitives reaches the
// panel as one operation. Until End only the caller may draw; the cursor
// blinker skips its ticks.
func (d *Device) Begin() {
	d.lock.Acquire()
	d.batch.Store(true)
}

// End releases the bus taken by Begin.
func (d *Device) End() {
	if !d.batch.Load() {
		panic("lcd: End without Begin")
	}
	d.batch.Store(false)
	d.lock.Release()
}

// acquire takes the bus for one primitive unless a batch already holds it.
func (d *Device) acquire() {
	if !d.batch.Load() {
		d.lock.Acquire()
	}
}

func (d *Device) release() {
	if !d.batch.Load() {
		d.lock.Release()
	}
}

// SetColors sets the RGB565 foreground and background used by later drawing.
func (d *Device) SetColors(fg, bg uint16) {
	d.colors.Store(uint32(fg)<<16 | uint32(bg))
}

// Colors returns the current RGB565 foreground and background.
func (d *Device) Colors() (fg, bg uint16) {
	v := d.colors.Load()
	return uint16(v >> 16), uint16(v)
}

// SetCursor moves the cell the cursor is drawn in. It does not draw.
func (d *Device) SetCursor(col, row int) {
	d.cursor.Store(uint32(col)<<16 | uint32(row)&0xFFFF)
}

// Cursor returns the cell the cursor is drawn in.
func (d *Device) Cursor() (col, row int) {
	v := d.cursor.Load()
	return int(v >> 16), int(v & 0xFFFF)
}

// DrawGlyph draws character c in cell (col, row). Reverse swaps the colours
// for this cell; underline paints the bottom pixel row in the foreground.
func (d *Device) DrawGlyph(col, row int, c byte, underline, reverse bool) {
	fg, bg := d.Colors()
	if reverse {
		fg, bg = bg, fg
	}

	d.acquire()
	defer d.release()

	buf := d.glyph[:]
	for i, bits := range font.Glyph(c) {
		if underline && i == font.Height-1 {
			bits = 0xFF
		}
		px := buf[i*font.Width : (i+1)*font.Width]
		for b := 0; b < font.Width; b++ {
			if bits&(0x80>>uint(b)) != 0 {
				px[b] = fg
			} else {
				px[b] = bg
			}
		}
	}
	d.windowBlit(buf, col*font.Width, row*font.Height, font.Width, font.Height)
}

// FillRect fills a rectangle of visible pixels with color.
func (d *Device) FillRect(color uint16, x, y, w, h int) {
	if w <= 0 || h <= 0 || x < 0 || x+w > d.width {
		return
	}
	d.acquire()
	defer d.release()
	d.solidFill(color, x, y, w, h)
}

// ClearScreen fills the visible frame with the background colour.
func (d *Device) ClearScreen() {
	_, bg := d.Colors()
	d.acquire()
	defer d.release()
	d.solidFill(bg, 0, 0, d.width, d.height)
}

// ScrollUp rotates the frame up one text line and clears the new bottom line.
func (d *Device) ScrollUp() {
	_, bg := d.Colors()
	d.acquire()
	defer d.release()

	d.offset = (d.offset + font.Height) % d.memHeight
	d.setScrollStart()
	d.solidFill(bg, 0, d.height-font.Height, d.width, font.Height)
}

// ScrollDown rotates the frame down one text line and clears the new top line.
func (d *Device) ScrollDown() {
	_, bg := d.Colors()
	d.acquire()
	defer d.release()

	d.offset = (d.offset - font.Height + d.memHeight) % d.memHeight
	d.setScrollStart()
	d.solidFill(bg, 0, 0, d.width, font.Height)
}

// ScrollOffset returns the RAM row currently shown at the top of the frame.
func (d *Device) ScrollOffset() int {
	d.acquire()
	defer d.release()
	return d.offset
}

// DefineScrolling sets the fixed areas above and below the scroll area.
func (d *Device) DefineScrolling(top, bottom int) {
	d.acquire()
	defer d.release()
	d.defineScrolling(top, bottom)
}

// DrawCursor paints the cursor bar in the foreground colour.
func (d *Device) DrawCursor() {
	d.acquire()
	defer d.release()
	d.drawCursor()
}

// EraseCursor paints the cursor bar in the background colour.
func (d *Device) EraseCursor() {
	d.acquire()
	defer d.release()
	d.eraseCursor()
}

func (d *Device) drawCursor() {
	fg, _ := d.Colors()
	d.cursorBar(fg)
}

func (d *Device) eraseCursor() {
	_, bg := d.Colors()
	d.cursorBar(bg)
}

func (d *Device) cursorBar(color uint16) {
	col, row := d.Cursor()
	d.solidFill(color, col*font.Width, (row+1)*font.Height-1, font.Width, 1)
}

// DisplayOn leaves the blank state and shows controller RAM.
func (d *Device) DisplayOn() {
	d.acquire()
	defer d.release()
	d.writeCmd(cmdDISPON)
}

// DisplayOff blanks the panel. RAM contents are kept.
func (d *Device) DisplayOff() {
	d.acquire()
	defer d.release()
	d.writeCmd(cmdDISPOFF)
}
