// Package noise provides the seeded coherent-noise source used by terrain synthesis
// and plate layout. Values are simplex noise in [-1, 1].
package noise

import (
	"hash/fnv"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Source is a seeded 2D noise field. It holds no state beyond the seed.
type Source struct {
	seed  int64
	noise opensimplex.Noise
}

// New creates a noise source from an arbitrary seed string.
func New(seed string) *Source {
	return NewInt(SeedFromString(seed))
}

// NewInt creates a noise source from a numeric seed.
func NewInt(seed int64) *Source {
	return &Source{
		seed:  seed,
		noise: opensimplex.New(seed),
	}
}

// SeedFromString hashes a seed string (FNV-1a) into the numeric seed space.
func SeedFromString(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// Seed returns the numeric seed backing this source.
func (s *Source) Seed() int64 {
	return s.seed
}

// Eval2 samples the field at (x, y). The result is clamped to [-1, 1].
func (s *Source) Eval2(x, y float64) float64 {
	v := s.noise.Eval2(x, y)
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// FBM sums octaves of noise, doubling frequency and halving amplitude each
// octave, starting at frequency and amplitude 1. The sum is not normalized.
func (s *Source) FBM(x, y float64, octaves int) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0

	for i := 0; i < octaves; i++ {
		total += s.Eval2(x*frequency, y*frequency) * amplitude
		amplitude *= 0.5
		frequency *= 2
	}

	return total
}
