//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/bus"
	"github.com/jangala-dev/tinygo-picoterm/config"
	"github.com/jangala-dev/tinygo-picoterm/console"
	"github.com/jangala-dev/tinygo-picoterm/keyboard"
	"github.com/jangala-dev/tinygo-picoterm/lcd"
	"github.com/jangala-dev/tinygo-picoterm/sim"
)

// picoCalcHost runs the PicoCalc backend on emulated hardware shown through
// tcell.
type picoCalcHost struct {
	screen tcell.Screen
	panel  *sim.Panel
	kbd    *sim.Keyboard
	view   *sim.View
	keys   *keyboard.Decoder
	be     *console.PicoCalc
	log    *slog.Logger
}

func newPicoCalcHost(cfg config.Config, sig *abort.Signal, log *slog.Logger) (*picoCalcHost, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}

	p := sim.NewPanel(cfg.Display.Width, cfg.Display.Height, cfg.Display.MemoryHeight)
	kbd := sim.NewKeyboard()
	h := &picoCalcHost{
		screen: s,
		panel:  p,
		kbd:    kbd,
		view:   sim.NewView(s, p, kbd, log),
		log:    log,
	}

	d, err := lcd.New(p, p.DC(), p.CS(), p.RST(), bus.New(), lcd.Config{
		Width:        cfg.Display.Width,
		Height:       cfg.Display.Height,
		MemoryHeight: cfg.Display.MemoryHeight,
		Logger:       log,
	})
	if err != nil {
		s.Fini()
		return nil, err
	}
	h.keys = keyboard.New(kbd, sig, bus.New(), keyboard.Config{
		Address:    cfg.Keyboard.Address,
		BufferSize: cfg.Keyboard.Buffer,
		Logger:     log,
	})
	h.be = console.NewPicoCalc(d, h.keys, console.PicoCalcConfig{
		PollPeriod:  cfg.PollPeriod(),
		BlinkPeriod: cfg.BlinkPeriod(),
		Bell:        h.view.Beep,
		Logger:      log,
	})
	return h, nil
}

func (h *picoCalcHost) backend() console.Backend { return h.be }

func (h *picoCalcHost) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return h.view.Run(ctx, sim.DefaultRefresh) })
}

// register adds the hardware calls to the prompt.
func (h *picoCalcHost) register(r *repl) {
	r.register("battery", func(L *lua.LState) int {
		lvl, err := h.keys.ReadBattery()
		if err != nil {
			L.RaiseError("battery: %v", err)
		}
		L.Push(lua.LNumber(lvl))
		return 1
	})
	r.register("setbattery", func(L *lua.LState) int {
		h.kbd.SetBattery(byte(L.CheckInt(1)))
		return 0
	})
	r.register("faults", func(L *lua.LState) int {
		L.Push(lua.LNumber(h.keys.Faults()))
		return 1
	})
}

func (h *picoCalcHost) snapshot(path string) error { return h.panel.SavePNG(path, 2) }

func (h *picoCalcHost) close() {
	h.screen.Fini()
	if v := h.panel.Violations(); len(v) > 0 {
		h.log.Warn("panel protocol violations", "count", len(v), "first", v[0])
	}
}
