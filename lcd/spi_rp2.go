//go:build rp2040 || rp2350

package lcd

import (
	"device/rp"
	"errors"
	"machine"
)

// SPI adapts a PL022 SPI block to Bus. The frame size is changed by
// rewriting the DSS field of SSPCR0 directly, which leaves the clock and
// mode untouched.
type SPI struct {
	*machine.SPI
}

// NewSPI wraps a configured machine SPI.
func NewSPI(spi *machine.SPI) *SPI { return &SPI{SPI: spi} }

// SetWordSize selects 4 to 16 bit frames.
func (s *SPI) SetWordSize(bits uint8) error {
	if bits < 4 || bits > 16 {
		return errors.New("lcd: unsupported SPI word size")
	}
	s.waitIdle()
	s.Bus.SSPCR0.ReplaceBits(uint32(bits-1), 0xF, rp.SPI0_SSPCR0_DSS_Pos)
	return nil
}

// Tx16 writes 16-bit words MSB first and discards what is clocked in.
func (s *SPI) Tx16(w []uint16) error {
	for _, v := range w {
		for !s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_TNF) {
		}
		s.Bus.SSPDR.Set(uint32(v))
		for s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_RNE) {
			_ = s.Bus.SSPDR.Get()
		}
	}
	s.waitIdle()
	return nil
}

// waitIdle lets the last frame leave the shifter and empties the RX FIFO.
func (s *SPI) waitIdle() {
	for s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_BSY) {
	}
	for s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_RNE) {
		_ = s.Bus.SSPDR.Get()
	}
}
