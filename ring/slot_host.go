//go:build !tinygo

package ring

import "sync/atomic"

// slot is a byte cell shared between producer and consumer. The host build
// uses an atomic so the race detector sees the publication order.
type slot struct{ v atomic.Uint32 }

func (s *slot) Get() byte  { return byte(s.v.Load()) }
func (s *slot) Set(b byte) { s.v.Store(uint32(b)) }
