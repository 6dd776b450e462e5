package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func newTestView(t *testing.T) (*View, tcell.SimulationScreen, *Panel, *Keyboard) {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(s.Fini)
	s.SetSize(40, 20)
	p := NewPanel(320, 320, 480)
	k := NewKeyboard()
	return NewView(s, p, k, nil), s, p, k
}

// drain pops every queued controller event.
func drain(k *Keyboard) [][2]byte {
	var evs [][2]byte
	buf := make([]byte, 2)
	for {
		_ = k.ReadRegister(KeyboardAddress, regFIFO, buf)
		if buf[0] == 0 {
			return evs
		}
		evs = append(evs, [2]byte{buf[0], buf[1]})
	}
}

func TestView_KeyMapping(t *testing.T) {
	v, _, _, k := newTestView(t)

	cases := []struct {
		ev   *tcell.EventKey
		want [][2]byte
	}{
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), [][2]byte{{1, 'x'}, {3, 'x'}}},
		{tcell.NewEventKey(tcell.KeyRune, 'Q', tcell.ModNone), [][2]byte{{1, KeyShiftL}, {1, 'q'}, {3, 'q'}, {3, KeyShiftL}}},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), [][2]byte{{1, '\n'}, {3, '\n'}}},
		{tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), [][2]byte{{1, 0x08}, {3, 0x08}}},
		{tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl), [][2]byte{{1, KeyCtrl}, {1, 'a'}, {3, 'a'}, {3, KeyCtrl}}},
		{tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), [][2]byte{{1, KeyBreak}, {3, KeyBreak}}},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModCtrl), [][2]byte{{1, KeyCtrl}, {1, 'x'}, {3, 'x'}, {3, KeyCtrl}}},
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), [][2]byte{{1, KeyUp}, {3, KeyUp}}},
		{tcell.NewEventKey(tcell.KeyRune, 'é', tcell.ModNone), nil},
	}
	for _, tc := range cases {
		if v.HandleEvent(tc.ev) {
			t.Fatalf("%s: unexpected quit", tc.ev.Name())
		}
		got := drain(k)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: events=%v; want %v", tc.ev.Name(), got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: events=%v; want %v", tc.ev.Name(), got, tc.want)
			}
		}
	}

	if !v.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)) {
		t.Fatal("Ctrl-Q should quit")
	}
}

func TestView_DrawShowsPanelText(t *testing.T) {
	v, s, p, _ := newTestView(t)
	h := host{p}
	h.on()
	h.fill(0x0000, 0, 0, 320, 320)
	h.glyph(0, 1, 'h', 0xFFFF, 0x0000)
	h.glyph(1, 1, 'i', 0xFFFF, 0x0000)

	v.Draw()

	for col, want := range "hi " {
		r, _, _, _ := s.GetContent(col, 1)
		if r != want {
			t.Fatalf("screen (%d,1)=%q; want %q", col, r, want)
		}
	}
}

func TestView_RunQuits(t *testing.T) {
	v, s, _, _ := newTestView(t)

	done := make(chan error, 1)
	go func() { done <- v.Run(context.Background(), time.Millisecond) }()

	s.InjectKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)

	select {
	case err := <-done:
		if !errors.Is(err, ErrQuit) {
			t.Fatalf("Run err=%v; want ErrQuit", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Ctrl-Q")
	}
}

func TestView_RunStopsOnContext(t *testing.T) {
	v, _, _, _ := newTestView(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := v.Run(ctx, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err=%v; want DeadlineExceeded", err)
	}
}
