package sim

import (
	"errors"
	"sync"
)

// Keyboard controller registers and event states.
const (
	KeyboardAddress = 0x1F

	regVersion = 0x01
	regFIFO    = 0x09
	regBattery = 0x0B

	statePressed  = 1
	stateReleased = 3
)

// Key codes the controller reports for keys that are not ASCII.
const (
	KeyAlt    = 0xA1
	KeyShiftL = 0xA2
	KeyShiftR = 0xA3
	KeySym    = 0xA4
	KeyCtrl   = 0xA5
	KeyEsc    = 0xB1
	KeyLeft   = 0xB4
	KeyUp     = 0xB5
	KeyDown   = 0xB6
	KeyRight  = 0xB7
	KeyBreak  = 0xD0
	KeyDelete = 0xD4
)

var (
	ErrNoDevice = errors.New("sim: no device at address")
	ErrNACK     = errors.New("sim: i2c transaction not acknowledged")
)

// Keyboard emulates the STM32 keyboard controller on the PicoCalc I2C bus.
// Reads of the FIFO register pop one [state, code] event, or [0, 0] when
// the FIFO is empty.
type Keyboard struct {
	mu       sync.Mutex
	reg      byte
	fifo     [][2]byte
	battery  byte
	failures int
	queries  int
}

// NewKeyboard returns a controller with an empty FIFO and a full battery.
func NewKeyboard() *Keyboard {
	return &Keyboard{battery: 100}
}

// Press queues a key-down event.
func (k *Keyboard) Press(code byte) { k.push(statePressed, code) }

// Release queues a key-up event.
func (k *Keyboard) Release(code byte) { k.push(stateReleased, code) }

// Tap queues a press and release of code.
func (k *Keyboard) Tap(code byte) {
	k.Press(code)
	k.Release(code)
}

// Type taps every byte of s. Newlines are sent as the Enter key (0x0A).
func (k *Keyboard) Type(s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\r' {
			c = '\n'
		}
		k.Tap(c)
	}
}

func (k *Keyboard) push(state, code byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.fifo = append(k.fifo, [2]byte{state, code})
}

// SetBattery sets the level reported by the battery register.
func (k *Keyboard) SetBattery(level byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.battery = level
}

// FailNext makes the next n transactions fail.
func (k *Keyboard) FailNext(n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failures = n
}

// Pending returns the number of queued events.
func (k *Keyboard) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.fifo)
}

// Queries returns how many register reads have been served.
func (k *Keyboard) Queries() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.queries
}

// Tx performs an I2C write of w followed by a read into r. The first
// written byte selects the register that later reads return.
func (k *Keyboard) Tx(addr uint16, w, r []byte) error {
	if addr != KeyboardAddress {
		return ErrNoDevice
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failures > 0 {
		k.failures--
		return ErrNACK
	}
	if len(w) > 0 {
		k.reg = w[0]
	}
	if len(r) == 0 {
		return nil
	}
	k.queries++
	for i := range r {
		r[i] = 0
	}
	reply := k.read()
	copy(r, reply[:])
	return nil
}

func (k *Keyboard) read() [2]byte {
	switch k.reg {
	case regFIFO:
		if len(k.fifo) == 0 {
			return [2]byte{}
		}
		ev := k.fifo[0]
		k.fifo = k.fifo[1:]
		return ev
	case regBattery:
		return [2]byte{regBattery, k.battery}
	case regVersion:
		return [2]byte{regVersion, 0x10}
	}
	return [2]byte{}
}

// ReadRegister reads register reg.
func (k *Keyboard) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return k.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes buf to register reg. The controller ignores the data.
func (k *Keyboard) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return k.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}
