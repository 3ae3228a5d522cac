// Package seeded provides the reproducible randomness behind window
// selections: a 32-bit string hash used as a seed, a small PRNG stream and a
// Fisher-Yates shuffle driven by both.
//
// Nothing here reads entropy or the clock. The same key always produces the
// same seed, the same stream and therefore the same permutation, on any
// host and in any process.
package seeded

import "unicode/utf16"

// Seed hashes key to a 32-bit seed (xmur3). The hash runs over UTF-16 code
// units so keys containing non-ASCII text seed the same way as in the
// JavaScript tooling that produced earlier selections.
func Seed(key string) uint32 {
	units := utf16.Encode([]rune(key))

	h := uint32(1779033703) ^ uint32(len(units))
	for _, u := range units {
		h = (h ^ uint32(u)) * 3432918353
		h = h<<13 | h>>19
	}

	h = (h ^ h>>16) * 2246822507
	h = (h ^ h>>13) * 3266489909
	h ^= h >> 16
	return h
}

// Stream is a mulberry32 generator. The zero value is a valid stream seeded
// with 0. A Stream is not safe for concurrent use.
type Stream struct {
	state uint32
}

func NewStream(seed uint32) *Stream {
	return &Stream{state: seed}
}

func (s *Stream) Uint32() uint32 {
	s.state += 0x6d2b79f5
	t := s.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns the next value in [0, 1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint32()) / (1 << 32)
}

// Intn returns the next value in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("seeded: invalid argument to Intn")
	}
	return int(s.Float64() * float64(n))
}

// Shuffle returns a permutation of in determined entirely by key. The input
// slice is not modified.
func Shuffle[T any](in []T, key string) []T {
	out := make([]T, len(in))
	copy(out, in)

	rnd := NewStream(Seed(key))
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
