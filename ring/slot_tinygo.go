//go:build tinygo

package ring

import "runtime/volatile"

// slot is a byte cell shared with interrupt context.
type slot struct{ v volatile.Register8 }

func (s *slot) Get() byte  { return s.v.Get() }
func (s *slot) Set(b byte) { s.v.Set(b) }
