// World generation using layered simplex noise.
// Builds height, temperature, moisture, wind, clouds, precipitation, and plate
// layers, normalizes the scalar layers, then derives biomes.
package world

import (
	"fmt"
	"math"

	"github.com/talgya/planetsim/internal/noise"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Seed       string // Arbitrary seed string
	Detail     int    // Detail level; grid side is BaseSize + Detail*DetailStep
	Style      string // Planet style preset name
	BaseSize   int
	DetailStep int
	NumPlates  int

	// Styles is the preset table. Nil means DefaultStyles.
	Styles map[string]PlanetStyle
}

// DefaultGenConfig returns the standard configuration: a 256-cell earth.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:       "TRDvvDynamicMap",
		Detail:     0,
		Style:      "earth",
		BaseSize:   256,
		DetailStep: 32,
		NumPlates:  10,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Seed:       "small",
		Detail:     0,
		Style:      "earth",
		BaseSize:   32,
		DetailStep: 8,
		NumPlates:  4,
	}
}

// GridSize returns the side length implied by the base size and detail level.
func (cfg GenConfig) GridSize() int {
	return cfg.BaseSize + cfg.Detail*cfg.DetailStep
}

// Validate checks sizes and plate count. Style lookup happens in Generate.
func (cfg GenConfig) Validate() error {
	if cfg.BaseSize <= 0 {
		return fmt.Errorf("%w: base size %d", ErrInvalidSize, cfg.BaseSize)
	}
	if cfg.Detail < 0 || cfg.DetailStep < 0 {
		return fmt.Errorf("%w: detail %d step %d", ErrInvalidSize, cfg.Detail, cfg.DetailStep)
	}
	if cfg.NumPlates <= 0 {
		return fmt.Errorf("%w: plate count %d", ErrInvalidConfig, cfg.NumPlates)
	}
	return nil
}

const (
	heightOctaves   = 6
	heightFrequency = 5.0
)

// Generate creates a complete world grid. The result is a pure function of the
// config: identical configs produce identical grids.
func Generate(cfg GenConfig) (*Grid, error) {
	style, err := LookupStyle(cfg.Styles, cfg.Style)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	size := cfg.GridSize()
	g, err := NewGrid(size)
	if err != nil {
		return nil, err
	}
	g.PlateID = make([]int, g.Cells())

	src := noise.New(cfg.Seed)
	n := float64(size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := g.Index(x, y)
			nx := float64(x)/n - 0.5
			ny := float64(y)/n - 0.5

			height := terrainHeight(src, nx, ny) * style.HeightScale
			temp := surfaceTemperature(ny, height, src.Eval2(nx*3, ny*3))

			// Drier highlands.
			moisture := src.Eval2(nx*4+100, ny*4+100)*0.5 + 0.5
			if height > style.OceanLevel {
				moisture *= math.Max(0, 1-(height-style.OceanLevel)*2)
			}

			angle := src.Eval2(nx*2, ny*2) * math.Pi * 2
			strength := 0.3 + src.Eval2(nx*3+200, ny*3+200)*0.4

			clouds := cloudCover(moisture, src.Eval2(nx*5, ny*5), height, style.OceanLevel)

			// Rain follows the clamped cloud cover, not the raw sum.
			precip := clouds * moisture * 0.8
			if temp < 0.3 {
				precip *= 0.3
			}

			g.Height[i] = height
			g.Temperature[i] = temp
			g.Moisture[i] = moisture
			g.WindX[i] = math.Cos(angle) * strength
			g.WindY[i] = math.Sin(angle) * strength
			g.Clouds[i] = clouds
			g.Precipitation[i] = precip
			g.PlateID[i] = plateFromNoise(src.Eval2(nx*0.5, ny*0.5), cfg.NumPlates)
		}
	}

	for _, k := range ScalarFields {
		Normalize(g.Field(k))
	}

	// Classify after normalization so biomes agree with the stored fields.
	g.Reclassify(style.OceanLevel)

	return g, nil
}

// terrainHeight is fractal noise lowered by the continental falloff.
func terrainHeight(src *noise.Source, nx, ny float64) float64 {
	return src.FBM(nx*heightFrequency, ny*heightFrequency, heightOctaves) - continentalFalloff(nx, ny)
}

// continentalFalloff is zero within a quarter of the grid width of the centre
// and grows linearly toward the edges.
func continentalFalloff(nx, ny float64) float64 {
	continent := math.Sqrt(nx*nx+ny*ny) * 2
	return math.Max(0, continent-0.5) * 0.5
}

// surfaceTemperature is warm at the equator, cold at the poles and colder with
// altitude. n is a noise sample in [-1, 1].
func surfaceTemperature(ny, height, n float64) float64 {
	temp := (1-math.Abs(ny*2))*0.7 + 0.15
	temp -= math.Abs(height) * 0.3
	return temp + n*0.2
}

// cloudCover mixes moisture with noise, halves it over high ground and clamps
// it to [0, 1].
func cloudCover(moisture, n, height, oceanLevel float64) float64 {
	c := moisture*0.6 + n*0.4
	if height > oceanLevel+0.2 {
		c *= 0.5
	}
	return clamp01(c)
}

// plateFromNoise maps a noise sample in [-1, 1] to a plate id in [0, numPlates).
func plateFromNoise(v float64, numPlates int) int {
	p := int(math.Floor(v*float64(numPlates))) + numPlates
	return ((p % numPlates) + numPlates) % numPlates
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
