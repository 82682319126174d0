package engine

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// RandomSource supplies uniform integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// NewSeededSource returns a reproducible source, for simulations and tests.
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DefaultSource returns a PCG source seeded from crypto/rand.
func DefaultSource() RandomSource {
	var buf [16]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to the clock
		return NewSeededSource(uint64(time.Now().UnixNano()))
	}
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(buf[:8]), binary.BigEndian.Uint64(buf[8:])))
}

// DrawValue draws r uniformly from [1, total weight] and returns the first
// value whose cumulative weight reaches r.
func DrawValue(src RandomSource, weights []ValueWeight) int {
	total := 0
	for _, w := range weights {
		total += w.Weight
	}
	if total <= 0 {
		return 2
	}

	r := src.IntN(total) + 1
	cumulative := 0
	for _, w := range weights {
		cumulative += w.Weight
		if r <= cumulative {
			return w.Value
		}
	}
	return weights[len(weights)-1].Value
}
