// Package entropy supplies the random sources that drive the process steppers.
// Runs with a fixed seed are reproducible; seed 0 draws one from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand/v2"
)

// streamKey decorrelates the second PCG word from the seed.
const streamKey = 0x9e3779b97f4a7c15

// NewRand returns a PCG-backed generator for seed. Equal seeds give equal streams.
func NewRand(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, seed^streamKey))
}

// Resolve returns seed unchanged unless it is 0, in which case a fresh seed is
// drawn from crypto/rand and logged so the run can be replayed.
func Resolve(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	seed = CryptoSeed()
	slog.Info("drew stepper seed from crypto/rand", "rng_seed", seed)
	return seed
}

// CryptoSeed returns a non-zero uint64 from crypto/rand.
func CryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	if n := binary.LittleEndian.Uint64(buf[:]); n != 0 {
		return n
	}
	return 1
}
