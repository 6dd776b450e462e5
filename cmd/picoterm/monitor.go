//go:build rp2040 || rp2350

package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jangala-dev/tinygo-picoterm/console"
)

const lineMax = 80

// monitor is a line-at-a-time command loop over the console.
type monitor struct {
	con     *console.Console
	battery func() (int, error) // nil without a keyboard controller
}

func (m *monitor) run(ctx context.Context) {
	line := make([]byte, lineMax)
	for {
		if err := m.con.TypeString(ctx, "\r\n> "); err != nil && !errors.Is(err, console.UserInterrupt) {
			return
		}
		n, err := m.con.Accept(ctx, line)
		switch {
		case errors.Is(err, console.UserInterrupt):
			continue
		case err != nil:
			return
		}
		if err := m.exec(ctx, strings.Fields(string(line[:n]))); err != nil && !errors.Is(err, console.UserInterrupt) {
			return
		}
	}
}

func (m *monitor) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return m.con.TypeString(ctx, "ok")
	}
	c := m.con
	switch args[0] {
	case "help":
		return c.TypeString(ctx, "\r\nhelp clear colors battery echo <text> error <n>")
	case "clear":
		return c.TypeString(ctx, "\033[2J\033[H")
	case "colors":
		if err := c.TypeString(ctx, "\r\n"); err != nil {
			return err
		}
		for i := 0; i < 8; i++ {
			n := strconv.Itoa(i)
			if err := c.TypeString(ctx, "\033[3"+n+"m"+n+"\033[7m"+n+"\033[0m "); err != nil {
				return err
			}
		}
		return nil
	case "battery":
		if m.battery == nil {
			return c.TypeError(ctx, console.Unsupported)
		}
		lvl, err := m.battery()
		if err != nil {
			return c.TypeError(ctx, console.IOException)
		}
		return c.TypeString(ctx, "\r\nbattery "+strconv.Itoa(lvl)+"%")
	case "echo":
		return c.TypeString(ctx, "\r\n"+strings.Join(args[1:], " "))
	case "error":
		if len(args) < 2 {
			return c.TypeError(ctx, console.StackUnderflow)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return c.TypeError(ctx, console.InvalidNumeric)
		}
		if err := c.TypeString(ctx, "\r\n"); err != nil {
			return err
		}
		return c.TypeError(ctx, console.Code(n))
	}
	if err := c.TypeString(ctx, "\r\n"+args[0]+" "); err != nil {
		return err
	}
	return c.TypeError(ctx, console.UndefinedWord)
}
