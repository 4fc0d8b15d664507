// Package seeded provides a deterministic pseudo-random source derived
// from a string seed. The same seed always yields the same sequence,
// across runs and platforms, so scatter layouts and per-item jitter stay
// stable between re-renders of an identical catalog.
package seeded

// Source is a seeded generator. It is not safe for concurrent use; each
// layout pass owns its own Source.
type Source struct {
	state uint32
}

// New folds the seed string into the 32-bit starting state using an
// FNV-1a style multiplicative hash. An empty seed gets a fixed fallback
// so callers never accidentally share the zero state.
func New(seed string) *Source {
	if seed == "" {
		seed = "seed"
	}
	h := uint32(2166136261)
	for _, r := range seed {
		h ^= uint32(r)
		h *= 16777619
	}
	return &Source{state: h}
}

// Float64 advances the state one mulberry32 mixing step and returns the
// next value in [0, 1).
func (s *Source) Float64() float64 {
	s.state += 0x6d2b79f5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296
}
