// Package prng implements a PCG-family 32-bit generator: 64-bit internal
// state, 64-bit odd increment, the standard PCG multiplier, and an
// XSH-RR output permutation (spec.md §4.7). Identical seeds produce
// identical sequences across every operation — this is the property
// the deterministic simulator and scenario engine depend on.
package prng

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

const (
	pcgMultiplier = 6364136223846793005
	pcgIncrement  = 1442695040888963407
)

// PCG32 is a PCG-XSH-RR 32-bit generator.
type PCG32 struct {
	state     uint64
	increment uint64
}

// Init seeds a new generator from seed, following the standard PCG
// seeding sequence: the increment is derived from seed, state is bumped
// once through the LCG step before seed is added to it, then stepped
// again.
func Init(seed uint64) *PCG32 {
	g := &PCG32{increment: (seed << 1) | 1}
	g.state = 0
	g.step()
	g.state += seed
	g.step()
	return g
}

func (g *PCG32) step() {
	g.state = g.state*pcgMultiplier + g.increment
}

// NextU32 returns the next pseudo-random 32-bit value via the XSH-RR
// permutation.
func (g *PCG32) NextU32() uint32 {
	old := g.state
	g.step()
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return bits.RotateLeft32(xorshifted, -int(rot))
}

// NextU64 composes two NextU32 draws into a 64-bit value: (hi << 32) |
// lo, per spec.md §4.7.
func (g *PCG32) NextU64() uint64 {
	hi := uint64(g.NextU32())
	lo := uint64(g.NextU32())
	return (hi << 32) | lo
}

// NextRange returns a value in [min, max] inclusive via modulo
// reduction. min must be <= max.
func NextRange[T constraints.Integer](g *PCG32, min, max T) T {
	if min > max {
		min, max = max, min
	}
	span := uint64(max-min) + 1
	return min + T(g.NextU64()%span)
}

// NextBool returns true with probability p (clamped to [0, 1]), by
// thresholding NextU32 against floor(p * 2^32).
func (g *PCG32) NextBool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	threshold := uint32(p * 4294967296.0)
	return g.NextU32() < threshold
}

// FillBytes fills buf entirely with pseudo-random bytes.
func (g *PCG32) FillBytes(buf []byte) {
	for i := 0; i < len(buf); i += 4 {
		v := g.NextU32()
		for j := 0; j < 4 && i+j < len(buf); j++ {
			buf[i+j] = byte(v >> (8 * j))
		}
	}
}

// Shuffle permutes items in place using a Fisher-Yates shuffle driven by
// this generator.
func Shuffle[T any](g *PCG32, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := NextRange(g, 0, i)
		items[i], items[j] = items[j], items[i]
	}
}
