// uartx/uartx.go

// Package uartx provides the interrupt-driven serial link of the console.
// Received bytes are moved by the interrupt handler into a software ring;
// the interrupt control code (Ctrl-C, 0x03) never reaches the ring and raises
// the abort signal instead. Transmit is one blocking hardware write per byte.
package uartx

import (
	"context"
	"errors"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/ring"
)

// InterruptCode is the received byte that requests a user interrupt.
const InterruptCode = 0x03

// DefaultBufferSize is the RX ring capacity used unless SetBufferSize is called.
const DefaultBufferSize = 256

// ErrBufferEmpty is returned by ReadByte when no byte is buffered.
var ErrBufferEmpty = errors.New("UART buffer empty")

// UARTParity defines the parity setting used for UART communication.
type UARTParity uint8

const (
	// ParityNone disables parity generation and checking (the most common setting).
	ParityNone UARTParity = iota
	// ParityEven sets even parity (total number of 1 bits is even).
	ParityEven
	// ParityOdd sets odd parity (total number of 1 bits is odd).
	ParityOdd
)

// SetAbort installs the signal raised when InterruptCode is received.
// It must be called before the receive interrupt is enabled.
func (uart *UART) SetAbort(s *abort.Signal) { uart.abort = s }

// SetBufferSize replaces the RX ring with one of the given power-of-two
// capacity. It must be called before Configure.
func (uart *UART) SetBufferSize(size int) { uart.Buffer = ring.New(size) }

// Receive handles one byte read from the hardware. It is called from the
// interrupt handler (or the host pump) and never blocks.
func (uart *UART) Receive(data byte) {
	if data == InterruptCode {
		if uart.abort != nil {
			uart.abort.Raise()
		}
		uart.dbgAbort()
		return
	}
	uart.dbgOnByte(uart.Buffer.Used() == uart.Buffer.Size())
	uart.Buffer.Put(data)
}

// Readable returns a coalesced notification for RX readiness.
// The channel is level-coalesced; callers must re-check state after waking.
func (uart *UART) Readable() <-chan struct{} { return uart.Buffer.Readable() }

// Buffered returns the number of bytes currently stored in the software RX buffer.
func (uart *UART) Buffered() int { return uart.Buffer.Used() }

// ReadByte reads a single byte from the software RX buffer.
// If there is no data available, it returns ErrBufferEmpty.
func (uart *UART) ReadByte() (byte, error) {
	b, ok := uart.Buffer.TryGet()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return b, nil
}

// TryRead returns immediately with up to len(p) bytes copied from the RX buffer.
// It never blocks and never returns an error. A return value of 0 means “no data now”.
func (uart *UART) TryRead(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := uart.Buffer.TryGet()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// ReadByteBlocking blocks for a single byte or until ctx is done.
func (uart *UART) ReadByteBlocking(ctx context.Context) (byte, error) {
	for {
		if b, err := uart.ReadByte(); err == nil {
			return b, nil
		}
		uart.dbgReadWait()
		select {
		case <-uart.Readable():
		case <-ctx.Done():
			uart.dbgTimeout()
			return 0, ctx.Err()
		}
	}
}

// Writable reports whether the transmitter can accept a byte now.
func (uart *UART) Writable() bool { return uart.txReady() }

// WriteByte blocks until the transmitter is ready, then performs exactly one
// hardware write.
func (uart *UART) WriteByte(c byte) error {
	for !uart.txReady() {
		yield()
	}
	return uart.txWrite(c)
}

// Write implements io.Writer as repeated WriteByte.
func (uart *UART) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := uart.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}
