package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/jangala-dev/tinygo-picoterm/font"
)

// DefaultRefresh is how often a View checks the panel for changes.
const DefaultRefresh = 33 * time.Millisecond

// ErrQuit is returned by Run when the user asks to leave the simulator.
var ErrQuit = errors.New("sim: quit")

// View shows a Panel in a terminal, one terminal cell per character cell,
// and feeds terminal key presses to a Keyboard.
//
// Ctrl-C is sent as the Break key. Ctrl-Q quits.
type View struct {
	screen tcell.Screen
	panel  *Panel
	keys   *Keyboard
	log    *slog.Logger
	gen    uint64
	drawn  bool
}

// NewView returns a view over an initialised screen.
func NewView(s tcell.Screen, p *Panel, k *Keyboard, log *slog.Logger) *View {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &View{screen: s, panel: p, keys: k, log: log}
}

// Draw copies the panel to the screen.
func (v *View) Draw() {
	v.gen = v.panel.Generation()
	v.drawn = true

	w, h := v.panel.Size()
	cols, rows := w/font.Width, h/font.Height
	v.screen.Clear()
	if v.panel.On() {
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				c := v.panel.Cell(col, row)
				v.screen.SetContent(col, row, cellRune(c), nil, cellStyle(c))
			}
		}
	}
	v.screen.Show()
}

func cellRune(c Cell) rune {
	switch {
	case c.Char == 0:
		return '?'
	case c.Char == font.Error:
		return '▒'
	case c.Char < 0x20:
		return ' '
	}
	return rune(c.Char)
}

func cellStyle(c Cell) tcell.Style {
	rgb := func(v uint16) tcell.Color {
		col := RGB565(v)
		return tcell.NewRGBColor(int32(col.R), int32(col.G), int32(col.B))
	}
	st := tcell.StyleDefault.Foreground(rgb(c.Fg)).Background(rgb(c.Bg))
	if c.Underline {
		st = st.Underline(true)
	}
	return st
}

// Beep rings the terminal bell.
func (v *View) Beep() {
	if err := v.screen.Beep(); err != nil {
		v.log.Debug("beep", "err", err)
	}
}

// HandleEvent applies one terminal event. It reports true when the user
// asked to quit.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventResize:
		v.screen.Sync()
		v.drawn = false
	}
	return false
}

func (v *View) handleKey(ev *tcell.EventKey) bool {
	k := ev.Key()
	switch k {
	case tcell.KeyRune:
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			return v.ctrlLetter(ev.Rune())
		}
		v.typeRune(ev.Rune())
	case tcell.KeyEnter:
		v.keys.Tap('\n')
	case tcell.KeyTab:
		v.keys.Tap('\t')
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		v.keys.Tap(0x08)
	case tcell.KeyEscape:
		v.keys.Tap(KeyEsc)
	case tcell.KeyDelete:
		v.keys.Tap(KeyDelete)
	case tcell.KeyUp:
		v.keys.Tap(KeyUp)
	case tcell.KeyDown:
		v.keys.Tap(KeyDown)
	case tcell.KeyLeft:
		v.keys.Tap(KeyLeft)
	case tcell.KeyRight:
		v.keys.Tap(KeyRight)
	default:
		if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
			return v.ctrlLetter(rune('a' + (k - tcell.KeyCtrlA)))
		}
		v.log.Debug("unmapped key", "key", ev.Name())
	}
	return false
}

// ctrlLetter handles Ctrl with a letter. Ctrl-Q quits and Ctrl-C is Break;
// the rest are sent as Ctrl chords.
func (v *View) ctrlLetter(r rune) bool {
	r |= 0x20
	switch {
	case r == 'q':
		return true
	case r == 'c':
		v.keys.Tap(KeyBreak)
	case r >= 'a' && r <= 'z':
		v.chord(KeyCtrl, byte(r))
	}
	return false
}

func (v *View) typeRune(r rune) {
	switch {
	case r >= 'A' && r <= 'Z':
		v.chord(KeyShiftL, byte(r)|0x20)
	case r < 0x80:
		v.keys.Tap(byte(r))
	}
}

// chord holds modifier mod while code is tapped.
func (v *View) chord(mod, code byte) {
	v.keys.Press(mod)
	v.keys.Tap(code)
	v.keys.Release(mod)
}

// Run redraws the screen whenever the panel changes and applies terminal
// events until ctx is done or the user quits, in which case it returns
// ErrQuit. The screen must be finalised by the caller.
func (v *View) Run(ctx context.Context, refresh time.Duration) error {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(refresh)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrQuit
			}
			if v.HandleEvent(ev) {
				v.log.Info("quit requested")
				return ErrQuit
			}
		case <-tick.C:
			if !v.drawn || v.panel.Generation() != v.gen {
				v.Draw()
			}
		}
	}
}
