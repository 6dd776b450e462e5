//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/tarm/serial"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/config"
	"github.com/jangala-dev/tinygo-picoterm/console"
	"github.com/jangala-dev/tinygo-picoterm/uartx"
)

var errInputClosed = errors.New("input closed")

// serialHost feeds a host UART from stdin or a serial device.
type serialHost struct {
	uart *uartx.UART
	be   *console.Serial
	log  *slog.Logger

	cr      cancelreader.CancelReader // stdin only
	port    *serial.Port              // device only
	restore func()
}

func newSerialHost(cfg config.Config, sig *abort.Signal, log *slog.Logger) (*serialHost, error) {
	u := uartx.New()
	u.SetAbort(sig)
	u.SetBufferSize(cfg.Serial.RXBuffer)
	h := &serialHost{uart: u, log: log}

	var rx io.Reader
	var tx io.Writer
	if cfg.Serial.Device != "" {
		port, err := serial.OpenPort(&serial.Config{Name: cfg.Serial.Device, Baud: int(cfg.Serial.Baud)})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Serial.Device, err)
		}
		h.port = port
		rx, tx = port, port
	} else {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			old, err := term.MakeRaw(fd)
			if err != nil {
				return nil, fmt.Errorf("raw mode: %w", err)
			}
			h.restore = func() { _ = term.Restore(fd, old) }
		}
		cr, err := cancelreader.NewReader(os.Stdin)
		if err != nil {
			h.close()
			return nil, fmt.Errorf("stdin: %w", err)
		}
		h.cr = cr
		rx, tx = cr, os.Stdout
	}

	h.be = console.NewSerial(u, func() error {
		return u.Configure(uartx.UARTConfig{BaudRate: cfg.Serial.Baud, RX: rx, TX: tx})
	})
	return h, nil
}

func (h *serialHost) backend() console.Backend { return h.be }

func (h *serialHost) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		err := h.uart.Pump(ctx)
		switch {
		case errors.Is(err, cancelreader.ErrCanceled), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		// Let the console consume what is left before stopping.
		for h.uart.Buffered() > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(10 * time.Millisecond):
			}
		}
		h.log.Info("serial input closed")
		return errInputClosed
	})
	g.Go(func() error {
		<-ctx.Done()
		if h.cr != nil {
			h.cr.Cancel()
		}
		if h.port != nil {
			_ = h.port.Close()
		}
		return h.uart.Close()
	})
}

func (h *serialHost) register(*repl) {}

func (h *serialHost) snapshot(string) error {
	return errors.New("the serial backend has no display")
}

func (h *serialHost) close() {
	if h.cr != nil {
		_ = h.cr.Close()
	}
	if h.restore != nil {
		h.restore()
	}
}
