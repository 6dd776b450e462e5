//go:build rp2040 || rp2350

// Command picoterm is the terminal firmware. It binds the console to the
// backend chosen at build time (serial on UART0, or the PicoCalc LCD and
// keyboard with -tags picocalc), types the welcome banner and runs a small
// line monitor.
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/config"
	"github.com/jangala-dev/tinygo-picoterm/console"
	"github.com/jangala-dev/tinygo-picoterm/keyboard"
	"github.com/jangala-dev/tinygo-picoterm/lcd"
	"github.com/jangala-dev/tinygo-picoterm/uartx"
)

// PicoCalc wiring.
const (
	lcdSCK = machine.GPIO10
	lcdSDO = machine.GPIO11
	lcdSDI = machine.GPIO12
	lcdCS  = machine.GPIO13
	lcdDC  = machine.GPIO14
	lcdRST = machine.GPIO15

	kbdSDA = machine.GPIO6
	kbdSCL = machine.GPIO7
)

var version = "dev"

func main() {
	cfg := config.Default()
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: level}))

	sig := abort.New()
	be, err := newBackend(cfg, sig, log)
	if err != nil {
		fatal(log, "backend", err)
	}

	ctx := context.Background()
	con := console.New(be, sig, console.WithLogger(log))
	if err := con.Init(ctx); err != nil {
		fatal(log, "console init", err)
	}
	log.Info("console up", "backend", cfg.Backend, "version", version)

	_ = con.Welcome(ctx, console.Banner{Product: "PicoTerm", Version: version})

	m := &monitor{con: con}
	if pc, ok := be.(*console.PicoCalc); ok {
		m.battery = pc.Keyboard().ReadBattery
	}
	m.run(ctx)
}

func newBackend(cfg config.Config, sig *abort.Signal, log *slog.Logger) (console.Backend, error) {
	if cfg.Backend == config.BackendPicoCalc {
		return newPicoCalc(cfg, sig, log)
	}
	return newSerial(cfg, sig), nil
}

func newSerial(cfg config.Config, sig *abort.Signal) *console.Serial {
	u := uartx.UART0
	u.SetAbort(sig)
	u.SetBufferSize(cfg.Serial.RXBuffer)
	return console.NewSerial(u, func() error {
		return u.Configure(uartx.UARTConfig{
			BaudRate: cfg.Serial.Baud,
			TX:       uartx.UART_TX_PIN,
			RX:       uartx.UART_RX_PIN,
		})
	})
}

func newPicoCalc(cfg config.Config, sig *abort.Signal, log *slog.Logger) (*console.PicoCalc, error) {
	spi := machine.SPI1
	if err := spi.Configure(machine.SPIConfig{
		Frequency: cfg.Display.SPIHz,
		SCK:       lcdSCK,
		SDO:       lcdSDO,
		SDI:       lcdSDI,
	}); err != nil {
		return nil, err
	}
	for _, p := range []machine.Pin{lcdCS, lcdDC, lcdRST} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}

	d, err := lcd.New(lcd.NewSPI(spi), lcdDC, lcdCS, lcdRST, bus.New(), lcd.Config{
		Width:        cfg.Display.Width,
		Height:       cfg.Display.Height,
		MemoryHeight: cfg.Display.MemoryHeight,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	i2c := machine.I2C1
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: cfg.Keyboard.I2CHz,
		SDA:       kbdSDA,
		SCL:       kbdSCL,
	}); err != nil {
		return nil, err
	}
	k := keyboard.New(i2c, sig, bus.New(), keyboard.Config{
		Address:    cfg.Keyboard.Address,
		BufferSize: cfg.Keyboard.Buffer,
		Logger:     log,
	})

	return console.NewPicoCalc(d, k, console.PicoCalcConfig{
		PollPeriod:  cfg.PollPeriod(),
		BlinkPeriod: cfg.BlinkPeriod(),
		Logger:      log,
	}), nil
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error(what, "err", err)
	for {
		time.Sleep(time.Hour)
	}
}
