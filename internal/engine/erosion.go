// Erosion: steepest-descent sediment transport on land.
package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/talgya/planetsim/internal/world"
)

// ErosionParams configures the erosion stepper.
type ErosionParams struct {
	Rate           float64 // Fraction of slope removed from the source cell
	DepositionRate float64 // Fraction of removed material deposited downhill
}

// DefaultErosionParams returns the standard rates.
func DefaultErosionParams() ErosionParams {
	return ErosionParams{Rate: 0.0001, DepositionRate: 0.00005}
}

const minErosionSlope = 0.01

var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// StepErosion moves material from each interior land cell to its steepest
// strictly-lower neighbor when the slope exceeds 0.01. Most eroded material is
// lost; only DepositionRate of it lands downhill. The target's moisture rises
// by a tenth of the eroded amount.
func StepErosion(g *world.Grid, p ErosionParams) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("erosion: %w", err)
	}

	size := g.Size
	next := slices.Clone(g.Height)

	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			i := g.Index(x, y)
			h := g.Height[i]
			if h <= world.ReferenceOceanLevel {
				continue
			}

			maxSlope := 0.0
			target := i
			for _, off := range neighborOffsets {
				j := g.Index(x+off[0], y+off[1])
				slope := h - g.Height[j]
				if slope > maxSlope && g.Height[j] < h {
					maxSlope = slope
					target = j
				}
			}

			if maxSlope <= minErosionSlope {
				continue
			}

			amount := maxSlope * p.Rate * (g.Precipitation[i] + 0.1)
			next[i] -= amount
			next[target] += amount * p.DepositionRate

			// Wetter lowlands.
			g.Moisture[target] = math.Min(1, g.Moisture[target]+amount*0.1)
		}
	}

	g.Height = next
	return nil
}
