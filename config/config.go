// Package config holds the startup configuration of the terminal: which
// backend to bind and how to tune it. The firmware uses Default; the host
// simulator can also load TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Backends.
const (
	BackendSerial   = "serial"
	BackendPicoCalc = "picocalc"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete startup configuration.
type Config struct {
	Backend  string   `toml:"backend" yaml:"backend"`
	LogLevel string   `toml:"log_level" yaml:"log_level"`
	Serial   Serial   `toml:"serial" yaml:"serial"`
	Display  Display  `toml:"display" yaml:"display"`
	Keyboard Keyboard `toml:"keyboard" yaml:"keyboard"`
}

// Serial configures the serial backend.
type Serial struct {
	Baud     uint32 `toml:"baud" yaml:"baud"`
	RXBuffer int    `toml:"rx_buffer" yaml:"rx_buffer"`
	Device   string `toml:"device" yaml:"device"` // host only; empty means stdin/stdout
}

// Display configures the LCD.
type Display struct {
	Width        int    `toml:"width" yaml:"width"`
	Height       int    `toml:"height" yaml:"height"`
	MemoryHeight int    `toml:"memory_height" yaml:"memory_height"`
	BlinkMS      int    `toml:"blink_ms" yaml:"blink_ms"`
	SPIHz        uint32 `toml:"spi_hz" yaml:"spi_hz"`
}

// Keyboard configures the keyboard controller poll.
type Keyboard struct {
	PollMS  int    `toml:"poll_ms" yaml:"poll_ms"`
	Buffer  int    `toml:"buffer" yaml:"buffer"`
	I2CHz   uint32 `toml:"i2c_hz" yaml:"i2c_hz"`
	Address uint16 `toml:"address" yaml:"address"`
}

const glyphHeight = 16

// Default returns the configuration of the stock hardware. The backend is
// serial unless the build has the picocalc tag.
func Default() Config {
	return Config{
		Backend:  defaultBackend,
		LogLevel: "info",
		Serial: Serial{
			Baud:     115200,
			RXBuffer: 256,
		},
		Display: Display{
			Width:        320,
			Height:       320,
			MemoryHeight: 480,
			BlinkMS:      500,
			SPIHz:        75_000_000,
		},
		Keyboard: Keyboard{
			PollMS:  100,
			Buffer:  32,
			I2CHz:   10_000,
			Address: 0x1F,
		},
	}
}

// Validate checks the configuration for values the drivers cannot use.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSerial, BackendPicoCalc:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.Serial.Baud == 0 {
		return fmt.Errorf("%w: serial.baud must be positive", ErrInvalid)
	}
	if !powerOfTwo(c.Serial.RXBuffer) {
		return fmt.Errorf("%w: serial.rx_buffer %d is not a power of two", ErrInvalid, c.Serial.RXBuffer)
	}
	if !powerOfTwo(c.Keyboard.Buffer) {
		return fmt.Errorf("%w: keyboard.buffer %d is not a power of two", ErrInvalid, c.Keyboard.Buffer)
	}
	if c.Keyboard.PollMS <= 0 {
		return fmt.Errorf("%w: keyboard.poll_ms must be positive", ErrInvalid)
	}
	if c.Display.BlinkMS <= 0 {
		return fmt.Errorf("%w: display.blink_ms must be positive", ErrInvalid)
	}
	d := c.Display
	if d.Width <= 0 || d.Width%8 != 0 {
		return fmt.Errorf("%w: display.width %d is not a positive multiple of 8", ErrInvalid, d.Width)
	}
	if d.Height <= 0 || d.Height%glyphHeight != 0 {
		return fmt.Errorf("%w: display.height %d is not a positive multiple of %d", ErrInvalid, d.Height, glyphHeight)
	}
	if d.MemoryHeight < d.Height || d.MemoryHeight%glyphHeight != 0 {
		return fmt.Errorf("%w: display.memory_height %d must be a multiple of %d not below the height",
			ErrInvalid, d.MemoryHeight, glyphHeight)
	}
	return nil
}

func powerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// Level parses LogLevel. An empty level is info.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(c.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// BlinkPeriod returns the cursor half-period.
func (c Config) BlinkPeriod() time.Duration {
	return time.Duration(c.Display.BlinkMS) * time.Millisecond
}

// PollPeriod returns the keyboard poll period.
func (c Config) PollPeriod() time.Duration {
	return time.Duration(c.Keyboard.PollMS) * time.Millisecond
}
