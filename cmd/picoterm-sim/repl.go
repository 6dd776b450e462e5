//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/jangala-dev/tinygo-picoterm/abort"
	"github.com/jangala-dev/tinygo-picoterm/console"
)

const lineMax = 128

var errExit = errors.New("exit")

// repl is a line-at-a-time Lua prompt on the console. A raised abort stops
// the running chunk and is reported as a user interrupt.
type repl struct {
	con *console.Console
	sig *abort.Signal
	L   *lua.LState
	log *slog.Logger

	ctx         context.Context // of the chunk being run
	exiting     bool
	interrupted bool
}

func newREPL(con *console.Console, sig *abort.Signal, log *slog.Logger) *repl {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &repl{con: con, sig: sig, L: lua.NewState(), log: log, ctx: context.Background()}
	r.register("print", r.print)
	r.register("exit", r.exit)
	r.register("beep", func(L *lua.LState) int {
		r.emit(L, "\a")
		return 0
	})
	r.register("clear", func(L *lua.LState) int {
		r.emit(L, "\033[2J\033[H")
		return 0
	})
	return r
}

func (r *repl) register(name string, fn lua.LGFunction) {
	r.L.SetGlobal(name, r.L.NewFunction(fn))
}

func (r *repl) close() { r.L.Close() }

// emit types s, turning console errors into Lua errors.
func (r *repl) emit(L *lua.LState, s string) {
	if err := r.con.TypeString(r.ctx, s); err != nil {
		if errors.Is(err, console.UserInterrupt) {
			r.interrupted = true
		}
		L.RaiseError("%v", err)
	}
}

func (r *repl) print(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.emit(L, "\r\n"+strings.Join(parts, "\t"))
	return 0
}

func (r *repl) exit(L *lua.LState) int {
	r.exiting = true
	L.RaiseError("exit")
	return 0
}

// run reads and evaluates lines until exit() or ctx is done.
func (r *repl) run(ctx context.Context) error {
	line := make([]byte, lineMax)
	for {
		if err := r.con.TypeString(ctx, "\r\n"); err != nil && !errors.Is(err, console.UserInterrupt) {
			return err
		}
		n, err := r.con.Accept(ctx, line)
		if errors.Is(err, console.UserInterrupt) {
			continue
		}
		if err != nil {
			return err
		}
		src := strings.TrimSpace(string(line[:n]))
		if src == "" {
			continue
		}
		switch err := r.eval(ctx, src); {
		case err == nil, errors.Is(err, console.UserInterrupt):
		default:
			return err
		}
	}
}

// runFile evaluates a Lua file as one chunk.
func (r *repl) runFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.log.Info("running script", "path", path)
	r.exiting, r.interrupted = false, false
	fn, err := r.L.Load(strings.NewReader(string(src)), path)
	if err != nil {
		return r.report(ctx, err)
	}
	err = r.call(ctx, fn)
	if errors.Is(err, console.UserInterrupt) {
		return nil
	}
	return err
}

// eval runs one line. An expression has its values typed; a statement is
// run for its effect.
func (r *repl) eval(ctx context.Context, src string) error {
	r.exiting, r.interrupted = false, false
	fn, err := r.L.LoadString("return " + src)
	if err != nil {
		if fn, err = r.L.LoadString(src); err != nil {
			return r.report(ctx, err)
		}
	}
	return r.call(ctx, fn)
}

func (r *repl) call(ctx context.Context, fn *lua.LFunction) error {
	run, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.sig.Wake():
			cancel()
		case <-run.Done():
		}
	}()

	r.ctx = ctx
	r.L.SetContext(run)
	defer r.L.RemoveContext()

	base := r.L.GetTop()
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		r.L.SetTop(base)
		return r.report(ctx, err)
	}

	results := make([]string, 0, r.L.GetTop()-base)
	for i := base + 1; i <= r.L.GetTop(); i++ {
		results = append(results, r.L.ToStringMeta(r.L.Get(i)).String())
	}
	r.L.SetTop(base)

	out := " ok"
	if len(results) > 0 {
		out = "\r\n" + strings.Join(results, "\t") + out
	}
	return r.con.TypeString(ctx, out)
}

// report types a failed chunk's error and maps it to the REPL's outcome.
func (r *repl) report(ctx context.Context, err error) error {
	switch {
	case r.exiting:
		return errExit
	case r.interrupted:
		return console.UserInterrupt
	case r.sig.Pending():
		// Consume the abort through the console so the message is typed.
		_, err := r.con.KeyAvailable()
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}

	msg := err.Error()
	var api *lua.ApiError
	if errors.As(err, &api) && api.Object != nil {
		msg = api.Object.String()
	}
	r.log.Debug("lua error", "err", msg)
	return r.con.TypeString(ctx, "\r\n"+strings.ReplaceAll(msg, "\n", "\r\n"))
}
