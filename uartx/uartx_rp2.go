//go:build rp2040 || rp2350

package uartx

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/ring"
)

// UART represents a single PL011 instance on RP2040/RP2350.
// Invariants:
//   - The ISR is the only producer of Buffer; the foreground is the only consumer.
//   - Only the foreground writes UARTDR; TX interrupts stay masked.
type UART struct {
	Buffer    *ring.Buffer   // software RX ring
	Bus       *rp.UART0_Type // PL011 register block
	Interrupt interrupt.Interrupt

	abort *abort.Signal
	baud  uint32 // last configured baud (for diagnostics, not used by HW)

	stats Stats
}

// UART on the RP2040/RP2350
var (
	UART0  = &_UART0
	_UART0 = UART{Bus: rp.UART0, Buffer: ring.New(DefaultBufferSize)}

	UART1  = &_UART1
	_UART1 = UART{Bus: rp.UART1, Buffer: ring.New(DefaultBufferSize)}
)

func init() {
	UART0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, _UART0.handleInterrupt)
	UART1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, _UART1.handleInterrupt)
}

// Configure sets up the PL011, its pins and the receive interrupt.
func (uart *UART) Configure(cfg machine.UARTConfig) error {
	initUART(uart)

	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	uart.baud = cfg.BaudRate

	if cfg.TX == machine.NoPin && cfg.RX == machine.NoPin {
		cfg.TX = machine.UART_TX_PIN
		cfg.RX = machine.UART_RX_PIN
	}

	// 1) Disable UART while configuring (PL011 CR).
	uart.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	// 2) Mux pins before touching baud/format. No hardware flow control.
	if cfg.TX != machine.NoPin {
		cfg.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if cfg.RX != machine.NoPin {
		cfg.RX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}

	// 3) Baud and format.
	uart.SetBaudRate(cfg.BaudRate)
	_ = uart.SetFormat(8, 1, ParityNone)

	// 4) Clear any pending IRQs and purge RX FIFO (read until RXFE).
	uart.Bus.UARTICR.Set(0x7FF)
	for !uart.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = uart.Bus.UARTDR.Get()
	}
	uart.Bus.UARTRSR.Set(0)

	// 5) Enable UART.
	uart.Bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	// 6) RX level and RX timeout interrupts only.
	uart.Interrupt.SetPriority(0x80)
	uart.Interrupt.Enable()
	uart.Bus.UARTIFLS.Set(0)
	uart.Bus.UARTIMSC.Set(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)

	return nil
}

// SetBaudRate programs the PL011 integer and fractional divisors and performs
// the “dummy” LCR_H write required to latch them.
func (uart *UART) SetBaudRate(br uint32) {
	uart.baud = br
	div := 8 * machine.CPUFrequency() / br

	ibrd := div >> 7
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd = 1
		fbrd = 0
	case ibrd >= 65535:
		ibrd = 65535
		fbrd = 0
	default:
		fbrd = ((div & 0x7f) + 1) / 2
	}

	uart.Bus.UARTIBRD.Set(ibrd)
	uart.Bus.UARTFBRD.Set(fbrd)

	// PL011 requires an LCR_H write after changing divisors.
	uart.Bus.UARTLCR_H.Set(uart.Bus.UARTLCR_H.Get())
}

// SetFormat sets data bits, stop bits and parity, and enables the FIFOs.
// It writes the full LCR_H value (not OR-ing).
func (uart *UART) SetFormat(databits, stopbits uint8, parity UARTParity) error {
	if databits < 5 || databits > 8 {
		return errors.New("invalid databits")
	}
	if stopbits != 1 && stopbits != 2 {
		return errors.New("invalid stopbits")
	}

	var pen, pev uint32
	if parity != ParityNone {
		pen = rp.UART0_UARTLCR_H_PEN
		if parity == ParityEven {
			pev = rp.UART0_UARTLCR_H_EPS
		}
	}
	const fen = rp.UART0_UARTLCR_H_FEN

	val := uint32((databits-5)<<rp.UART0_UARTLCR_H_WLEN_Pos|
		(stopbits-1)<<rp.UART0_UARTLCR_H_STP2_Pos) |
		pen | pev | fen

	uart.Bus.UARTLCR_H.Set(val)
	return nil
}

// Close masks the receive interrupt.
func (uart *UART) Close() error {
	uart.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)
	return nil
}

// initUART asserts and releases the peripheral reset for the selected PL011.
func initUART(uart *UART) {
	var resetVal uint32
	switch {
	case uart.Bus == rp.UART0:
		resetVal = rp.RESETS_RESET_UART0
	case uart.Bus == rp.UART1:
		resetVal = rp.RESETS_RESET_UART1
	}

	rp.RESETS.RESET.SetBits(resetVal)
	rp.RESETS.RESET.ClearBits(resetVal)
	for !rp.RESETS.RESET_DONE.HasBits(resetVal) {
	}
}

func (uart *UART) txReady() bool {
	return !uart.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF)
}

func (uart *UART) txWrite(c byte) error {
	uart.Bus.UARTDR.Set(uint32(c))
	return nil
}

func yield() { time.Sleep(0) }

// handleInterrupt drains the RX FIFO until RXFE, dropping errored bytes
// (reading DR clears the per-byte flags), then clears RXIC/RTIC and the
// sticky errors.
func (uart *UART) handleInterrupt(interrupt.Interrupt) {
	n := 0
	for !uart.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		r := uart.Bus.UARTDR.Get()
		if (r & (rp.UART0_UARTDR_OE | rp.UART0_UARTDR_BE |
			rp.UART0_UARTDR_PE | rp.UART0_UARTDR_FE)) != 0 {
			continue
		}
		uart.Receive(byte(r & 0xFF))
		n++
	}
	uart.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
	uart.Bus.UARTRSR.Set(0)
	uart.dbgISR(n)
}
