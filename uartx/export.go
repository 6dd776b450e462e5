//go:build rp2040 || rp2350

// uartx/export.go

package uartx

import "machine"

// Target aliases so callers configure the console UART without importing
// machine themselves.
type UARTConfig = machine.UARTConfig
type Pin = machine.Pin

const (
	NoPin       = machine.NoPin
	UART_TX_PIN = machine.UART_TX_PIN
	UART_RX_PIN = machine.UART_RX_PIN
)
