// Plate tectonics: collision uplift, rifting, and smoothing.
package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/talgya/planetsim/internal/noise"
	"github.com/talgya/planetsim/internal/world"
)

// TectonicsParams configures the tectonics stepper.
type TectonicsParams struct {
	NumPlates  int
	PlateSpeed float64
}

// DefaultTectonicsParams returns the standard plate count and speed.
func DefaultTectonicsParams() TectonicsParams {
	return TectonicsParams{NumPlates: 10, PlateSpeed: 0.001}
}

const (
	riftChance     = 0.1
	plateFrequency = 0.3
)

type plateMotion struct {
	dx, dy float64
}

// StepTectonics deforms height along plate boundaries. Plates get a fresh random
// direction every step. A cell whose motion points into a different plate is
// uplifted (and the neighbor half as much); otherwise it rifts with 10% chance.
// A 3×3 box blur over interior cells follows. Plate ids are assigned on first
// call if the grid has none and are never changed afterwards.
func StepTectonics(g *world.Grid, rng *rand.Rand, p TectonicsParams) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("tectonics: %w", err)
	}
	if p.NumPlates <= 0 {
		return fmt.Errorf("tectonics: %w: plate count %d", world.ErrInvalidConfig, p.NumPlates)
	}

	if !g.HasPlates() {
		initPlates(g, rng, p.NumPlates)
	}

	motions := plateMotions(rng, p)
	size := g.Size
	next := slices.Clone(g.Height)

	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			i := g.Index(x, y)
			plate := g.PlateID[i]
			if plate < 0 || plate >= len(motions) {
				continue
			}
			m := motions[plate]

			strength := rng.Float64() * p.PlateSpeed
			nx := x + sign(m.dx)
			ny := y + sign(m.dy)
			if !g.InBounds(nx, ny) {
				continue
			}
			j := g.Index(nx, ny)

			if g.PlateID[j] != plate {
				// Convergent boundary: mountains.
				next[i] += strength * 2
				next[j] += strength
			} else if rng.Float64() < riftChance {
				next[i] -= strength * 0.5
			}
		}
	}

	smoothInterior(g.Height, next, size)
	return nil
}

// initPlates lays out plates from a noise field seeded off rng.
func initPlates(g *world.Grid, rng *rand.Rand, numPlates int) {
	src := noise.NewInt(rng.Int64())
	g.PlateID = make([]int, g.Cells())
	n := float64(g.Size)

	for y := 0; y < g.Size; y++ {
		for x := 0; x < g.Size; x++ {
			nx := float64(x)/n - 0.5
			ny := float64(y)/n - 0.5
			v := src.Eval2(nx*plateFrequency, ny*plateFrequency)
			plate := int(math.Floor((v + 1) * 0.5 * float64(numPlates)))
			if plate >= numPlates {
				plate = numPlates - 1
			}
			g.PlateID[g.Index(x, y)] = plate
		}
	}
}

func plateMotions(rng *rand.Rand, p TectonicsParams) []plateMotion {
	motions := make([]plateMotion, p.NumPlates)
	for i := range motions {
		angle := rng.Float64() * math.Pi * 2
		motions[i] = plateMotion{
			dx: math.Cos(angle) * p.PlateSpeed,
			dy: math.Sin(angle) * p.PlateSpeed,
		}
	}
	return motions
}

// smoothInterior writes the 3×3 mean of src into dst for every interior cell.
// Border cells of dst are left as they were.
func smoothInterior(dst, src []float64, size int) {
	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			sum := 0.0
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * size
				for dx := -1; dx <= 1; dx++ {
					sum += src[row+x+dx]
				}
			}
			dst[y*size+x] = sum / 9
		}
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
