// Weather: seasonal temperature, wind turbulence, moisture advection, clouds, and rain.
package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/talgya/planetsim/internal/world"
)

// ClimateParams configures the weather stepper.
type ClimateParams struct {
	SeasonCycle          float64 // Years per full seasonal cycle
	TemperatureVariation float64 // Amplitude of per-cell random temperature noise
}

// DefaultClimateParams returns the standard season length and variation.
func DefaultClimateParams() ClimateParams {
	return ClimateParams{SeasonCycle: 10000, TemperatureVariation: 0.1}
}

// Season returns the seasonal forcing term for the given elapsed years.
func Season(years int64, cycle float64) float64 {
	return math.Sin(float64(years)/cycle*math.Pi*2) * 0.1
}

// StepWeather advances temperature, wind, moisture, clouds, and precipitation
// by one step, then reclassifies biomes against world.ReferenceOceanLevel.
//
// Every cell gets a new temperature. Only interior cells get new wind,
// moisture, clouds, and precipitation; border cells keep their previous values.
// Moisture is clamped to [0, 1] everywhere at the end of the step.
func StepWeather(g *world.Grid, years int64, rng *rand.Rand, p ClimateParams) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	if p.SeasonCycle <= 0 {
		return fmt.Errorf("weather: %w: season cycle %g", world.ErrInvalidConfig, p.SeasonCycle)
	}

	size := g.Size
	season := Season(years, p.SeasonCycle)

	newTemp := make([]float64, g.Cells())
	newMoisture := slices.Clone(g.Moisture)
	newClouds := slices.Clone(g.Clouds)
	newPrecip := slices.Clone(g.Precipitation)
	newWindX := slices.Clone(g.WindX)
	newWindY := slices.Clone(g.WindY)

	for y := 0; y < size; y++ {
		ny := float64(y)/float64(size) - 0.5
		lat := 1 - math.Abs(ny*2)

		for x := 0; x < size; x++ {
			i := g.Index(x, y)
			h := g.Height[i]

			temp := lat*0.7 + 0.15
			temp += season * lat
			temp -= math.Abs(h-0.5) * 0.3
			if h < world.ReferenceOceanLevel {
				temp += 0.1 // Oceans moderate temperature.
			}
			temp += (rng.Float64()*2 - 1) * p.TemperatureVariation

			temp = g.Temperature[i]*0.7 + temp*0.3
			newTemp[i] = clamp01(temp)
		}
	}

	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			i := g.Index(x, y)
			u := g.WindX[i]
			v := g.WindY[i]

			newWindX[i] = u*0.8 + (rng.Float64()*0.4 - 0.2)
			newWindY[i] = v*0.8 + (rng.Float64()*0.4 - 0.2)

			// Sample moisture upstream.
			srcX := clampInt(x-int(math.Round(u*2)), 0, size-1)
			srcY := clampInt(y-int(math.Round(v*2)), 0, size-1)
			m := g.Moisture[g.Index(srcX, srcY)]*0.8 + g.Moisture[i]*0.2

			if g.Height[i] < world.ReferenceOceanLevel {
				m += 0.05 // Evaporation.
			}

			condensation := m * (1 - newTemp[i]) * 0.5
			c := math.Min(1, g.Clouds[i]*0.8+condensation)

			precip := 0.0
			if rng.Float64() < c*m*0.3 {
				precip = c * 0.5
				c *= 0.5
				m += precip * 0.3
			}

			newMoisture[i] = m
			newClouds[i] = c
			newPrecip[i] = precip
		}
	}

	for i, m := range newMoisture {
		newMoisture[i] = clamp01(m)
	}

	g.Temperature = newTemp
	g.Moisture = newMoisture
	g.Clouds = newClouds
	g.Precipitation = newPrecip
	g.WindX = newWindX
	g.WindY = newWindY

	g.Reclassify(world.ReferenceOceanLevel)
	return nil
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

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
