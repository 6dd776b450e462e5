package keyboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/sim"
)

// lockedI2C checks that every transaction happens with the bus held.
type lockedI2C struct {
	*sim.Keyboard
	lock     *bus.Lock
	unlocked int
	txs      int
}

func (l *lockedI2C) Tx(addr uint16, w, r []byte) error {
	l.txs++
	if l.lock.Holders() != 1 {
		l.unlocked++
	}
	return l.Keyboard.Tx(addr, w, r)
}

func newTestDecoder() (*Decoder, *sim.Keyboard, *abort.Signal, *lockedI2C) {
	kb := sim.NewKeyboard()
	lock := bus.New()
	sig := abort.New()
	li := &lockedI2C{Keyboard: kb, lock: lock}
	return New(li, sig, lock, Config{}), kb, sig, li
}

func drain(d *Decoder) []byte {
	var out []byte
	for {
		b, ok := d.TryGetKey()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestDecode_Translation(t *testing.T) {
	cases := []struct {
		name string
		feed func(kb *sim.Keyboard)
		want []byte
	}{
		{"plain", func(kb *sim.Keyboard) { kb.Tap('a') }, []byte{'a'}},
		{"ctrl a", func(kb *sim.Keyboard) {
			kb.Press(KeyCtrl)
			kb.Tap('a')
			kb.Release(KeyCtrl)
		}, []byte{0x01}},
		{"ctrl z", func(kb *sim.Keyboard) {
			kb.Press(KeyCtrl)
			kb.Tap('z')
		}, []byte{0x1A}},
		{"shift a", func(kb *sim.Keyboard) {
			kb.Press(KeyShiftL)
			kb.Tap('a')
			kb.Release(KeyShiftL)
			kb.Tap('b')
		}, []byte{'A', 'b'}},
		{"right shift", func(kb *sim.Keyboard) {
			kb.Press(KeyShiftR)
			kb.Tap('q')
		}, []byte{'Q'}},
		{"shift leaves non-letters", func(kb *sim.Keyboard) {
			kb.Press(KeyShiftL)
			kb.Tap('1')
			kb.Tap('[')
		}, []byte{'1', '['}},
		{"enter", func(kb *sim.Keyboard) { kb.Tap('\n') }, []byte{'\r'}},
		{"alt has no effect", func(kb *sim.Keyboard) {
			kb.Press(KeyAlt)
			kb.Tap('x')
		}, []byte{'x'}},
		{"release only", func(kb *sim.Keyboard) { kb.Release(KeyUp) }, []byte{KeyUp}},
		{"press only", func(kb *sim.Keyboard) { kb.Press('k') }, nil},
		{"modifier alone", func(kb *sim.Keyboard) { kb.Tap(KeyCtrl) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, kb, _, _ := newTestDecoder()
			tc.feed(kb)
			if err := d.Poll(); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if got := drain(d); string(got) != string(tc.want) {
				t.Fatalf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestPoll_DrainsFIFOInOneTick(t *testing.T) {
	d, kb, _, li := newTestDecoder()
	kb.Type("hello\n")

	if err := d.Poll(); err != nil {
		t.Fatal(err)
	}
	if kb.Pending() != 0 {
		t.Fatalf("%d events left in controller FIFO", kb.Pending())
	}
	if got := string(drain(d)); got != "hello\r" {
		t.Fatalf("got %q", got)
	}
	if li.unlocked != 0 {
		t.Fatalf("%d of %d transactions without the bus lock", li.unlocked, li.txs)
	}
}

func TestPoll_EmptyFIFOQueriesOnce(t *testing.T) {
	d, kb, _, _ := newTestDecoder()
	if err := d.Poll(); err != nil {
		t.Fatal(err)
	}
	if q := kb.Queries(); q != 1 {
		t.Fatalf("queries=%d; want 1", q)
	}
	if d.KeyAvailable() {
		t.Fatal("no key expected")
	}
}

func TestBreak_RaisesAbort(t *testing.T) {
	d, kb, sig, _ := newTestDecoder()
	kb.Tap(KeyBreak)
	kb.Tap('x')

	if err := d.Poll(); err != nil {
		t.Fatal(err)
	}
	if !sig.Take() {
		t.Fatal("break should raise abort")
	}
	if got := string(drain(d)); got != "x" {
		t.Fatalf("got %q; break must not be buffered", got)
	}
}

func TestPoll_I2CErrorEndsTick(t *testing.T) {
	d, kb, _, _ := newTestDecoder()
	kb.Type("ab")
	kb.FailNext(1)

	if err := d.Poll(); !errors.Is(err, sim.ErrNACK) {
		t.Fatalf("err=%v; want ErrNACK", err)
	}
	if d.KeyAvailable() {
		t.Fatal("nothing should be decoded on a failed tick")
	}
	if d.Faults() != 1 {
		t.Fatalf("Faults=%d; want 1", d.Faults())
	}

	if err := d.Poll(); err != nil {
		t.Fatal(err)
	}
	if got := string(drain(d)); got != "ab" {
		t.Fatalf("got %q after recovery", got)
	}
}

func TestBuffer_OverwritesOldest(t *testing.T) {
	d, kb, _, _ := newTestDecoder()
	for i := 0; i < DefaultBufferSize+3; i++ {
		kb.Tap(byte('A' + i%26))
	}
	for kb.Pending() > 0 {
		if err := d.Poll(); err != nil {
			t.Fatal(err)
		}
	}
	got := drain(d)
	if len(got) != DefaultBufferSize {
		t.Fatalf("len=%d; want %d", len(got), DefaultBufferSize)
	}
	if got[0] != 'D' {
		t.Fatalf("oldest kept=%q; want 'D'", got[0])
	}
}

func TestBattery(t *testing.T) {
	d, kb, _, _ := newTestDecoder()
	if d.Battery() != -1 {
		t.Fatalf("Battery before read=%d; want -1", d.Battery())
	}
	kb.SetBattery(87)
	lvl, err := d.ReadBattery()
	if err != nil || lvl != 87 {
		t.Fatalf("ReadBattery=%d,%v; want 87", lvl, err)
	}
	if d.Battery() != 87 {
		t.Fatalf("Battery=%d; want 87", d.Battery())
	}

	kb.FailNext(1)
	if _, err := d.ReadBattery(); err == nil {
		t.Fatal("expected error")
	}
	if d.Battery() != 87 {
		t.Fatal("failed read must keep the last level")
	}
}

func TestRun_PollsAndGetKeyUnblocks(t *testing.T) {
	d, kb, _, _ := newTestDecoder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Millisecond) }()

	kb.Tap('z')

	gctx, gcancel := context.WithTimeout(ctx, time.Second)
	defer gcancel()
	b, err := d.GetKey(gctx)
	if err != nil || b != 'z' {
		t.Fatalf("GetKey=%q,%v; want 'z'", b, err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_StopsWhileBusHeld(t *testing.T) {
	d, kb, _, li := newTestDecoder()
	kb.Tap('q')
	li.lock.Acquire()
	defer li.lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run stayed blocked on the bus after cancel")
	}
	if li.txs != 0 {
		t.Fatalf("%d transactions without the bus", li.txs)
	}
	if d.Faults() != 0 {
		t.Fatalf("Faults=%d; waiting for the bus is not a controller fault", d.Faults())
	}
	if kb.Pending() != 2 {
		t.Fatalf("Pending=%d; the FIFO must be left alone", kb.Pending())
	}
}

func TestPoll_CancelledWaitForBus(t *testing.T) {
	d, _, _, li := newTestDecoder()
	li.lock.Acquire()
	defer li.lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.poll(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("poll err=%v; want DeadlineExceeded", err)
	}
	if d.Faults() != 0 {
		t.Fatalf("Faults=%d; want 0", d.Faults())
	}
}

func TestWrongAddress(t *testing.T) {
	kb := sim.NewKeyboard()
	d := New(kb, nil, nil, Config{Address: 0x20})
	if err := d.Poll(); !errors.Is(err, sim.ErrNoDevice) {
		t.Fatalf("err=%v; want ErrNoDevice", err)
	}
}
