//go:build (rp2040 || rp2350) && uartxdebug

package main

import (
	"context"
	"crypto/sha1"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/uartx"
)

// Loopback probe for the console UART. Wire GP4 (TX) to GP5 (RX) and build
// with -tags uartxdebug.

const baud = 115200

func printStats(u *uartx.UART, label string) {
	s := u.DebugStats()
	println("==", label)
	println("ISR:    count=", s.ISRCount, " bytes=", s.ISRBytes, " maxdrain=", s.ISRMaxDrain)
	println("Ring:   puts=", s.RingPuts, " overwrites=", s.RingOverwrites, " maxUsed=", s.RingMaxUsed)
	println("Abort:  count=", s.Aborts)
	println("Waits:  waits=", s.ReadWaits, " timeouts=", s.Timeouts)
}

func drain(u *uartx.UART) {
	for u.Buffered() > 0 {
		_, _ = u.ReadByte()
	}
}

func recvExact(ctx context.Context, u *uartx.UART, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		c, err := u.ReadByteBlocking(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func main() {
	delay := 10
	for i := 0; i < delay; i++ {
		println("test starting in ", delay-i, " seconds")
		time.Sleep(time.Second)
	}
	println("uartx probe (diagnostic)")

	sig := abort.New()
	u := uartx.UART1
	u.SetAbort(sig)
	u.SetBufferSize(2048)
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART1_TX_PIN,
		RX:       machine.UART1_RX_PIN,
	}); err != nil {
		println("fatal:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}
	u.DebugReset()
	drain(u)

	// Phase 1: 1 KiB integrity. Bytes equal to the interrupt code are
	// replaced so every byte reaches the ring.
	println("\n[phase] integrity-1k")
	src := make([]byte, 1024)
	var x uint32 = 0x12345678
	for i := range src {
		x = 1664525*x + 1013904223
		src[i] = byte(x >> 24)
		if src[i] == uartx.InterruptCode {
			src[i] = 0
		}
	}
	want := sha1.Sum(src)
	go func() { _, _ = u.Write(src) }()
	ctx1, cancel1 := context.WithTimeout(context.Background(), 2*time.Second)
	got, err := recvExact(ctx1, u, len(src))
	cancel1()
	switch {
	case err != nil:
		println(" result: TIMEOUT (received", len(got), "bytes)")
	case sha1.Sum(got) != want:
		println(" result: HASH MISMATCH")
	default:
		println(" result: OK (1 KiB)")
	}
	printStats(u, "after integrity-1k")

	// Phase 2: overflow. Nothing reads while more than a ring's worth
	// arrives; the newest bytes must survive.
	println("\n[phase] overflow-keeps-newest")
	u.DebugReset()
	drain(u)
	burst := make([]byte, 3000)
	for i := range burst {
		burst[i] = byte(0x20 + i%64)
	}
	_, _ = u.Write(burst)
	time.Sleep(50 * time.Millisecond)
	tail := make([]byte, u.Buffer.Size())
	n := u.TryRead(tail)
	ok := n == len(tail)
	for i := 0; ok && i < n; i++ {
		ok = tail[i] == burst[len(burst)-n+i]
	}
	if ok {
		println(" result: OK (kept last", n, "bytes)")
	} else {
		println(" result: FAIL (read", n, "bytes)")
	}
	printStats(u, "after overflow")

	// Phase 3: interrupt code raises the abort and is not buffered.
	println("\n[phase] interrupt-code")
	u.DebugReset()
	drain(u)
	_, _ = u.Write([]byte{'A', uartx.InterruptCode, 'B'})
	time.Sleep(20 * time.Millisecond)
	if sig.Take() && u.Buffered() == 2 {
		println(" result: OK")
	} else {
		println(" result: FAIL (buffered", u.Buffered(), ")")
	}
	printStats(u, "after interrupt-code")

	println("\ndone")
}
