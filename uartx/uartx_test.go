//go:build !rp2040 && !rp2350

package uartx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/abort"
)

// newTestUART returns a fresh host UART (no hardware).
func newTestUART() *UART {
	u := New()
	u.SetAbort(abort.New())
	return u
}

func TestReadByte_NonBlockingSemantics(t *testing.T) {
	u := newTestUART()

	if _, err := u.ReadByte(); !errors.Is(err, ErrBufferEmpty) {
		t.Fatalf("ReadByte on empty: err=%v; want ErrBufferEmpty", err)
	}

	u.Receive('A')
	u.Receive('B')
	u.Receive('C')

	buf := make([]byte, 8)
	n := u.TryRead(buf)
	if n != 3 || string(buf[:n]) != "ABC" {
		t.Fatalf("got n=%d data=%q; want 3, \"ABC\"", n, string(buf[:n]))
	}

	if n := u.TryRead(buf); n != 0 {
		t.Fatalf("expected empty after drain, got n=%d", n)
	}
}

func TestReceive_InterruptCodeRaisesAbort(t *testing.T) {
	u := newTestUART()

	u.Receive('a')
	u.Receive(InterruptCode)
	u.Receive('b')

	if !u.abort.Pending() {
		t.Fatal("expected abort pending after 0x03")
	}
	if got := u.Buffered(); got != 2 {
		t.Fatalf("Buffered=%d; want 2 (0x03 must not be queued)", got)
	}
	buf := make([]byte, 4)
	if n := u.TryRead(buf); string(buf[:n]) != "ab" {
		t.Fatalf("got %q; want \"ab\"", string(buf[:n]))
	}
}

func TestReceive_WithoutAbortSignal(t *testing.T) {
	u := New()
	u.Receive(InterruptCode)
	if u.Buffered() != 0 {
		t.Fatal("interrupt code must be dropped even with no signal installed")
	}
}

func TestReceive_OverflowKeepsNewest(t *testing.T) {
	u := newTestUART()
	u.SetBufferSize(8)

	for i := 1; i <= 9; i++ {
		u.Receive(byte(i))
	}
	buf := make([]byte, 16)
	n := u.TryRead(buf)
	if n != 8 {
		t.Fatalf("n=%d; want 8", n)
	}
	for i := 0; i < n; i++ {
		if buf[i] != byte(i+2) {
			t.Fatalf("buf[%d]=%d; want %d", i, buf[i], i+2)
		}
	}
}

func TestReadByteBlocking_UnblocksOnReceive(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var got byte
	var err error

	go func() {
		defer close(done)
		got, err = u.ReadByteBlocking(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	u.Receive('Z')

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for ReadByteBlocking")
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 'Z' {
		t.Fatalf("got %q want %q", got, 'Z')
	}
}

func TestReadByteBlocking_RespectsContext(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := u.ReadByteBlocking(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v; want DeadlineExceeded", err)
	}
}

func TestPump_FeedsReceive(t *testing.T) {
	u := newTestUART()
	if err := u.Configure(UARTConfig{RX: strings.NewReader("hi\x03!")}); err != nil {
		t.Fatal(err)
	}

	if err := u.Pump(context.Background()); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	buf := make([]byte, 8)
	if n := u.TryRead(buf); string(buf[:n]) != "hi!" {
		t.Fatalf("got %q; want \"hi!\"", string(buf[:n]))
	}
	if !u.abort.Take() {
		t.Fatal("expected abort from pumped 0x03")
	}
}

func TestPump_NoStreamWaitsForContext(t *testing.T) {
	u := newTestUART()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := u.Pump(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want Canceled", err)
	}
}

func TestWrite_OneWritePerByte(t *testing.T) {
	u := newTestUART()
	var out bytes.Buffer
	if err := u.Configure(UARTConfig{TX: &out}); err != nil {
		t.Fatal(err)
	}

	if !u.Writable() {
		t.Fatal("host UART should always be writable")
	}
	if err := u.WriteByte('>'); err != nil {
		t.Fatal(err)
	}
	if n, err := u.Write([]byte(" ok\r\n")); err != nil || n != 5 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if out.String() != "> ok\r\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestClose_Idempotent(t *testing.T) {
	u := newTestUART()
	if err := u.Close(); err != nil {
		t.Fatal(err)
	}
	if err := u.Close(); err != nil {
		t.Fatal(err)
	}
}
