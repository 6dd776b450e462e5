//go:build !rp2040 && !rp2350

// Command picoterm-sim runs the terminal on the host. The serial backend
// talks to stdin and stdout (or a serial device); the picocalc backend drives
// emulated PicoCalc hardware shown in the terminal. Either way the console
// hosts a small Lua prompt.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/config"
	"github.com/jangala-dev/tinygo-picoterm/console"
	"github.com/jangala-dev/tinygo-picoterm/sim"
)

var version = "dev"

type cli struct {
	Config   string `short:"c" type:"existingfile" help:"Configuration file (.toml, .yaml or .yml)."`
	Backend  string `short:"b" help:"Override the configured backend (serial or picocalc)."`
	Device   string `short:"d" help:"Serial device for the serial backend. Stdin and stdout when empty."`
	LogFile  string `name:"log-file" type:"path" default:"picoterm-sim.log" help:"Log destination."`
	Snapshot string `type:"path" help:"Save the final PicoCalc frame to this PNG file."`
	Script   string `type:"existingfile" help:"Lua file to run before the first prompt."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("picoterm-sim"),
		kong.Description("Host simulator for the PicoCalc terminal."),
	)
	kctx.FatalIfErrorf(c.run())
}

// host is the simulated hardware behind one backend.
type host interface {
	backend() console.Backend
	start(ctx context.Context, g *errgroup.Group)
	register(r *repl)
	snapshot(path string) error
	close()
}

func (c *cli) load() (config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return cfg, err
		}
	}
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.Device != "" {
		cfg.Serial.Device = c.Device
	}
	return cfg, cfg.Validate()
}

func (c *cli) run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	log.Info("starting", "backend", cfg.Backend, "version", version)

	sig := abort.New()
	var h host
	switch cfg.Backend {
	case config.BackendPicoCalc:
		h, err = newPicoCalcHost(cfg, sig, log)
	default:
		h, err = newSerialHost(cfg, sig, log)
	}
	if err != nil {
		return err
	}
	defer h.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	con := console.New(h.backend(), sig, console.WithLogger(log))
	if err := con.Init(ctx); err != nil {
		return err
	}
	defer con.Close()
	h.start(ctx, g)

	g.Go(func() error {
		r := newREPL(con, sig, log)
		defer r.close()
		h.register(r)

		if err := con.Welcome(ctx, console.Banner{Product: "PicoTerm simulator", Version: version}); err != nil {
			return err
		}
		if c.Script != "" {
			if err := r.runFile(ctx, c.Script); err != nil {
				return err
			}
		}
		return r.run(ctx)
	})

	err = g.Wait()
	if c.Snapshot != "" {
		if serr := h.snapshot(c.Snapshot); serr != nil {
			log.Warn("snapshot", "err", serr)
		}
	}
	switch {
	case err == nil, errors.Is(err, errExit), errors.Is(err, errInputClosed),
		errors.Is(err, sim.ErrQuit), errors.Is(err, context.Canceled):
		log.Info("stopped")
		return nil
	}
	log.Error("stopped", "err", err)
	return err
}
