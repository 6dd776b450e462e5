package console

import (
	"context"
	"fmt"

	"github.com/jangala-dev/tinygo-picoterm/uartx"
)

// Serial is the backend of a plain serial link.
type Serial struct {
	uart      *uartx.UART
	configure func() error
}

// NewSerial returns a backend on u. configure brings the port up and may be
// nil when u is already configured.
func NewSerial(u *uartx.UART, configure func() error) *Serial {
	return &Serial{uart: u, configure: configure}
}

// UART returns the underlying port.
func (s *Serial) UART() *uartx.UART { return s.uart }

func (s *Serial) Init(ctx context.Context) error {
	if s.configure == nil {
		return nil
	}
	if err := s.configure(); err != nil {
		return fmt.Errorf("console: serial init: %w", err)
	}
	return nil
}

func (s *Serial) KeyAvailable() bool { return s.uart.Buffered() > 0 }

func (s *Serial) GetKey() (byte, bool) {
	b, err := s.uart.ReadByte()
	return b, err == nil
}

func (s *Serial) EmitAvailable() bool { return s.uart.Writable() }

func (s *Serial) Emit(b byte) error { return s.uart.WriteByte(b) }

func (s *Serial) Readable() <-chan struct{} { return s.uart.Readable() }

func (s *Serial) Close() error { return s.uart.Close() }
