//go:build !rp2040 && !rp2350

package uartx

import (
	"context"
	"io"
	"runtime"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/ring"
)

// Host shim: the "hardware" is a pair of streams. Pump plays the role of the
// receive interrupt.

// UARTConfig selects the streams standing in for the RX and TX pins.
type UARTConfig struct {
	BaudRate uint32 // informational on the host
	RX       io.Reader
	TX       io.Writer
}

type UART struct {
	Buffer *ring.Buffer // software RX ring

	abort  *abort.Signal
	rx     io.Reader
	tx     io.Writer
	baud   uint32
	closed chan struct{}

	stats Stats
}

// Public instances to mirror real build.
var (
	UART0 = &_UART0
	UART1 = &_UART1

	_UART0 = UART{Buffer: ring.New(DefaultBufferSize), closed: make(chan struct{})}
	_UART1 = UART{Buffer: ring.New(DefaultBufferSize), closed: make(chan struct{})}
)

// New returns an unconfigured host UART, for tests and the simulator.
func New() *UART {
	return &UART{Buffer: ring.New(DefaultBufferSize), closed: make(chan struct{})}
}

func (uart *UART) Configure(cfg UARTConfig) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	uart.baud = cfg.BaudRate
	uart.rx = cfg.RX
	uart.tx = cfg.TX
	return nil
}

// Pump copies bytes from the RX stream through Receive until the stream ends,
// ctx is done, or Close is called.
func (uart *UART) Pump(ctx context.Context) error {
	if uart.rx == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	buf := make([]byte, 64)
	for {
		n, err := uart.rx.Read(buf)
		uart.dbgISR(n)
		for _, b := range buf[:n] {
			uart.Receive(b)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-uart.closed:
			return nil
		default:
		}
	}
}

// Close stops Pump at its next read.
func (uart *UART) Close() error {
	select {
	case <-uart.closed:
	default:
		close(uart.closed)
	}
	return nil
}

func (uart *UART) txReady() bool { return true }

func (uart *UART) txWrite(c byte) error {
	if uart.tx == nil {
		return nil
	}
	_, err := uart.tx.Write([]byte{c})
	return err
}

func yield() { runtime.Gosched() }
