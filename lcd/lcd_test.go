package lcd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/font"
	"github.com/jangala-dev/tinygo-picoterm/sim"
)

const (
	white = 0xFFFF
	black = 0x0000
	red   = 0xF800
)

type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(d time.Duration) {
	s.mu.Lock()
	s.d = append(s.d, d)
	s.mu.Unlock()
}

// newTestDevice returns a configured Device on an emulated panel.
func newTestDevice(t *testing.T) (*Device, *sim.Panel, *sleeps) {
	t.Helper()
	p := sim.NewPanel(DefaultWidth, DefaultHeight, DefaultMemoryHeight)
	s := &sleeps{}
	d, err := New(p, p.DC(), p.CS(), p.RST(), bus.New(), Config{Sleep: s.sleep})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return d, p, s
}

func checkClean(t *testing.T, p *sim.Panel) {
	t.Helper()
	if v := p.Violations(); len(v) != 0 {
		t.Fatalf("protocol violations: %v", v)
	}
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	p := sim.NewPanel(DefaultWidth, DefaultHeight, DefaultMemoryHeight)
	cases := []Config{
		{Width: 321},
		{Height: 300},
		{MemoryHeight: 200},
		{MemoryHeight: 470},
	}
	for _, cfg := range cases {
		if _, err := New(p, p.DC(), p.CS(), nil, nil, cfg); !errors.Is(err, ErrGeometry) {
			t.Fatalf("New(%+v) err=%v; want ErrGeometry", cfg, err)
		}
	}
}

func TestConfigure_BringUp(t *testing.T) {
	d, p, s := newTestDevice(t)
	checkClean(t, p)

	if !p.On() {
		t.Fatal("panel should be on and out of sleep")
	}
	if madctl, colmod := p.Mode(); madctl != 0x48 || colmod != 0x55 {
		t.Fatalf("MADCTL=0x%02X COLMOD=0x%02X; want 0x48 0x55", madctl, colmod)
	}
	if top, area, bottom := p.ScrollArea(); top != 0 || area != DefaultHeight || bottom != 0 {
		t.Fatalf("scroll area=%d,%d,%d; want 0,%d,0", top, area, bottom, DefaultHeight)
	}
	for _, y := range []int{0, DefaultHeight - 1, DefaultMemoryHeight - 1} {
		for _, x := range []int{0, DefaultWidth - 1} {
			if v := p.RAM(x, y); v != black {
				t.Fatalf("RAM(%d,%d)=0x%04X; want cleared", x, y, v)
			}
		}
	}
	if d.Columns() != 40 || d.Rows() != 20 {
		t.Fatalf("grid=%dx%d; want 40x20", d.Columns(), d.Rows())
	}

	want := []time.Duration{20 * time.Microsecond, 120 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}
	if len(s.d) != len(want) {
		t.Fatalf("sleeps=%v; want %v", s.d, want)
	}
	for i := range want {
		if s.d[i] != want[i] {
			t.Fatalf("sleeps=%v; want %v", s.d, want)
		}
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err=%v", err)
	}
}

func TestWrite16_ChipSelectBracketing(t *testing.T) {
	d, p, _ := newTestDevice(t)

	p.StartTrace()
	d.DrawGlyph(0, 0, 'A', false, false)
	tr := p.StopTrace()

	i := -1
	for j, ev := range tr {
		if ev.Kind == sim.Data16 {
			i = j
			break
		}
	}
	if i < 3 || i+2 >= len(tr) {
		t.Fatalf("no bracketed 16-bit burst in trace %v", tr)
	}
	before := []sim.Event{
		{Kind: sim.WordSize, Value: 16},
		{Kind: sim.DCHigh},
		{Kind: sim.CSLow},
	}
	for k, want := range before {
		if got := tr[i-3+k]; got != want {
			t.Fatalf("event %d before burst = %v; want %v", 3-k, got, want)
		}
	}
	if tr[i].N != font.Width*font.Height {
		t.Fatalf("burst of %d words; want %d", tr[i].N, font.Width*font.Height)
	}
	if tr[i+1] != (sim.Event{Kind: sim.CSHigh}) || tr[i+2] != (sim.Event{Kind: sim.WordSize, Value: 8}) {
		t.Fatalf("after burst: %v %v; want cs-high, word-size 8", tr[i+1], tr[i+2])
	}

	// Every command is its own CS low period.
	for j, ev := range tr {
		if ev.Kind != sim.Command {
			continue
		}
		if tr[j-1].Kind != sim.CSLow || tr[j-2].Kind != sim.DCLow || tr[j+1].Kind != sim.CSHigh {
			t.Fatalf("command 0x%02X not bracketed: %v", ev.Value, tr[j-2:j+2])
		}
	}
	checkClean(t, p)
}

func cellMatches(p *sim.Panel, col, row int, c byte, fg, bg uint16, underline bool) bool {
	g := font.Glyph(c)
	for y := 0; y < font.Height; y++ {
		bits := g[y]
		if underline && y == font.Height-1 {
			bits = 0xFF
		}
		for x := 0; x < font.Width; x++ {
			want := bg
			if bits&(0x80>>uint(x)) != 0 {
				want = fg
			}
			if p.Pixel(col*font.Width+x, row*font.Height+y) != want {
				return false
			}
		}
	}
	return true
}

func TestDrawGlyph_Attributes(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.SetColors(red, black)

	d.DrawGlyph(0, 0, 'A', false, false)
	d.DrawGlyph(1, 0, 'B', false, true)
	d.DrawGlyph(39, 19, 'C', true, false)

	if !cellMatches(p, 0, 0, 'A', red, black, false) {
		t.Fatal("plain glyph mismatch")
	}
	if !cellMatches(p, 1, 0, 'B', black, red, false) {
		t.Fatal("reverse glyph mismatch")
	}
	if !cellMatches(p, 39, 19, 'C', red, black, true) {
		t.Fatal("underlined glyph mismatch")
	}
	checkClean(t, p)
}

func TestScrollUp_MovesOffsetAndClearsBottom(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.SetColors(white, black)

	d.DrawGlyph(0, 1, 'X', false, false)
	d.DrawGlyph(0, 19, 'Y', false, false)
	d.ScrollUp()

	if got := d.ScrollOffset(); got != font.Height {
		t.Fatalf("offset=%d; want %d", got, font.Height)
	}
	if got := p.ScrollStart(); got != font.Height {
		t.Fatalf("VSCSAD=%d; want %d", got, font.Height)
	}
	if !cellMatches(p, 0, 0, 'X', white, black, false) {
		t.Fatal("row 1 did not move to row 0")
	}
	if !cellMatches(p, 0, 18, 'Y', white, black, false) {
		t.Fatal("row 19 did not move to row 18")
	}
	if !cellMatches(p, 0, 19, ' ', white, black, false) {
		t.Fatal("exposed bottom row not cleared")
	}

	// Drawing after a scroll lands at the translated RAM row.
	d.DrawGlyph(0, 0, 'Z', false, false)
	for y, bits := range font.Glyph('Z') {
		for x := 0; x < font.Width; x++ {
			want := uint16(black)
			if bits&(0x80>>uint(x)) != 0 {
				want = white
			}
			if v := p.RAM(x, font.Height+y); v != want {
				t.Fatalf("RAM(%d,%d)=0x%04X; want 0x%04X", x, font.Height+y, v, want)
			}
		}
	}
	checkClean(t, p)
}

func TestScroll_OffsetWraps(t *testing.T) {
	d, p, _ := newTestDevice(t)

	d.ScrollDown()
	if got := d.ScrollOffset(); got != DefaultMemoryHeight-font.Height {
		t.Fatalf("offset after ScrollDown=%d; want %d", got, DefaultMemoryHeight-font.Height)
	}
	d.ScrollUp()
	if got := d.ScrollOffset(); got != 0 {
		t.Fatalf("offset=%d; want 0", got)
	}
	for i := 0; i < DefaultMemoryHeight/font.Height; i++ {
		d.ScrollUp()
	}
	if got := d.ScrollOffset(); got != 0 {
		t.Fatalf("offset after a full lap=%d; want 0", got)
	}
	checkClean(t, p)
}

func TestFillRect_SplitsAtEndOfRAM(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.ScrollDown() // visible row 0 is RAM row 464

	d.FillRect(red, 0, 0, 8, 2*font.Height)

	if v := p.RAM(0, DefaultMemoryHeight-1); v != red {
		t.Fatalf("RAM row 479=0x%04X; want red", v)
	}
	if v := p.RAM(7, font.Height-1); v != red {
		t.Fatalf("RAM row 15=0x%04X; want red", v)
	}
	if v := p.RAM(0, font.Height); v == red {
		t.Fatal("fill ran past its height")
	}
	checkClean(t, p)
}

func TestCursor_DrawAndErase(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.SetColors(white, black)

	d.SetCursor(3, 2)
	if c, r := d.Cursor(); c != 3 || r != 2 {
		t.Fatalf("Cursor=%d,%d; want 3,2", c, r)
	}
	d.DrawCursor()
	y := 3*font.Height - 1
	for x := 24; x < 32; x++ {
		if p.Pixel(x, y) != white {
			t.Fatalf("cursor pixel (%d,%d) not drawn", x, y)
		}
	}
	if p.Pixel(23, y) != black || p.Pixel(32, y) != black || p.Pixel(24, y-1) != black {
		t.Fatal("cursor bar bleeds outside its cell")
	}
	d.EraseCursor()
	if p.Pixel(24, y) != black {
		t.Fatal("cursor not erased")
	}
}

func TestDisplayOnOff(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.DisplayOff()
	if p.On() {
		t.Fatal("display should be off")
	}
	d.DisplayOn()
	if !p.On() {
		t.Fatal("display should be on")
	}
}

func TestDefineScrolling(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.DefineScrolling(16, 32)
	if top, area, bottom := p.ScrollArea(); top != 16 || area != DefaultHeight-48 || bottom != 32 {
		t.Fatalf("scroll area=%d,%d,%d", top, area, bottom)
	}
}

func TestBlinker_TogglesAndSkipsWhenBusy(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.SetColors(white, black)
	d.SetCursor(0, 0)
	b := NewBlinker(d, time.Millisecond)
	y := font.Height - 1

	if !b.Tick() || p.Pixel(0, y) != white {
		t.Fatal("first tick should draw the cursor")
	}
	if !b.Tick() || p.Pixel(0, y) != black {
		t.Fatal("second tick should erase the cursor")
	}

	d.Lock().Acquire()
	if b.Tick() {
		t.Fatal("tick with the bus held should be skipped")
	}
	d.Lock().Release()
	if b.Skipped() != 1 {
		t.Fatalf("Skipped=%d; want 1", b.Skipped())
	}
	if p.Pixel(0, y) != black {
		t.Fatal("skipped tick must not draw")
	}
}

func TestBegin_HoldsBusAcrossPrimitives(t *testing.T) {
	d, p, _ := newTestDevice(t)
	d.SetColors(white, black)
	b := NewBlinker(d, time.Millisecond)
	y := font.Height - 1

	d.Begin()
	d.SetCursor(2, 0)
	d.EraseCursor()
	if b.Tick() {
		t.Fatal("tick inside Begin/End should be skipped")
	}
	d.DrawGlyph(2, 0, 'A', false, false)
	d.ScrollUp()
	d.SetCursor(0, 0)
	d.DrawCursor()
	if d.Lock().Holders() != 1 {
		t.Fatalf("Holders=%d inside Begin/End; want 1", d.Lock().Holders())
	}
	d.End()

	if d.Lock().Busy() {
		t.Fatal("bus still held after End")
	}
	if p.Pixel(2*font.Width, y) != black || p.Pixel(0, y) != white {
		t.Fatal("cursor bar not where the batch left it")
	}
	if !b.Tick() {
		t.Fatal("tick after End should run")
	}
	checkClean(t, p)
}

func TestEnd_WithoutBeginPanics(t *testing.T) {
	d, _, _ := newTestDevice(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	d.End()
}

func TestBlinker_NeverOverlapsDrawing(t *testing.T) {
	d, p, _ := newTestDevice(t)
	b := NewBlinker(d, 50*time.Microsecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	for i := 0; i < 200; i++ {
		d.DrawGlyph(i%40, (i/40)%20, byte('a'+i%26), false, false)
		if i%50 == 49 {
			d.ScrollUp()
		}
		if h := d.Lock().Holders(); h > 1 {
			t.Fatalf("bus holders=%d", h)
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blinker did not stop")
	}
	checkClean(t, p)
}
