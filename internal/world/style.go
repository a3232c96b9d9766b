package world

import (
	"fmt"
	"sort"
)

// RGB is an 8-bit display color.
type RGB [3]uint8

// StyleColors is the height-map display table of a planet style. Only the
// palette package reads it.
type StyleColors struct {
	DeepOcean    RGB `yaml:"deep_ocean" json:"deep_ocean"`
	ShallowOcean RGB `yaml:"shallow_ocean" json:"shallow_ocean"`
	Beach        RGB `yaml:"beach" json:"beach"`
	Grass        RGB `yaml:"grass" json:"grass"`
	Forest       RGB `yaml:"forest" json:"forest"`
	Mountain     RGB `yaml:"mountain" json:"mountain"`
	Snow         RGB `yaml:"snow" json:"snow"`
}

// PlanetStyle is a named generation preset. Synthesis consumes HeightScale and
// OceanLevel; the ranges and colors are for display.
type PlanetStyle struct {
	Name             string      `yaml:"-" json:"name"`
	HeightScale      float64     `yaml:"height_scale" json:"height_scale"`
	OceanLevel       float64     `yaml:"ocean_level" json:"ocean_level"`
	TemperatureRange [2]float64  `yaml:"temperature_range" json:"temperature_range"` // °C at normalized 0 and 1
	MoistureRange    [2]float64  `yaml:"moisture_range" json:"moisture_range"`       // % at normalized 0 and 1
	Colors           StyleColors `yaml:"colors" json:"colors"`
}

// DefaultStyles returns the built-in presets keyed by name.
func DefaultStyles() map[string]PlanetStyle {
	return map[string]PlanetStyle{
		"earth": {
			Name:             "earth",
			HeightScale:      1.0,
			OceanLevel:       0.45,
			TemperatureRange: [2]float64{-20, 40},
			MoistureRange:    [2]float64{0, 100},
			Colors: StyleColors{
				DeepOcean:    RGB{0, 0, 100},
				ShallowOcean: RGB{0, 100, 200},
				Beach:        RGB{238, 214, 175},
				Grass:        RGB{34, 139, 34},
				Forest:       RGB{0, 100, 0},
				Mountain:     RGB{139, 137, 137},
				Snow:         RGB{255, 255, 255},
			},
		},
		"rocky": {
			Name:             "rocky",
			HeightScale:      2.5,
			OceanLevel:       0.3,
			TemperatureRange: [2]float64{-30, 60},
			MoistureRange:    [2]float64{0, 20},
			Colors: StyleColors{
				DeepOcean:    RGB{50, 50, 80},
				ShallowOcean: RGB{70, 70, 100},
				Beach:        RGB{158, 134, 100},
				Grass:        RGB{120, 120, 80},
				Forest:       RGB{80, 80, 50},
				Mountain:     RGB{100, 90, 80},
				Snow:         RGB{230, 230, 230},
			},
		},
		"mars": {
			Name:             "mars",
			HeightScale:      3.0,
			OceanLevel:       0.2,
			TemperatureRange: [2]float64{-60, 20},
			MoistureRange:    [2]float64{0, 10},
			Colors: StyleColors{
				DeepOcean:    RGB{100, 0, 0},
				ShallowOcean: RGB{150, 50, 50},
				Beach:        RGB{193, 154, 107},
				Grass:        RGB{165, 42, 42},
				Forest:       RGB{139, 0, 0},
				Mountain:     RGB{178, 34, 34},
				Snow:         RGB{255, 200, 200},
			},
		},
		"gas": {
			Name:             "gas",
			HeightScale:      0.3,
			OceanLevel:       0.6,
			TemperatureRange: [2]float64{-100, -50},
			MoistureRange:    [2]float64{90, 100},
			Colors: StyleColors{
				DeepOcean:    RGB{75, 0, 130},
				ShallowOcean: RGB{138, 43, 226},
				Beach:        RGB{186, 85, 211},
				Grass:        RGB{147, 112, 219},
				Forest:       RGB{123, 104, 238},
				Mountain:     RGB{106, 90, 205},
				Snow:         RGB{255, 255, 255},
			},
		},
	}
}

// LookupStyle resolves a style name. A nil table means the built-in presets.
// Unknown names fail with ErrUnknownStyle rather than falling back to a default.
func LookupStyle(styles map[string]PlanetStyle, name string) (PlanetStyle, error) {
	if styles == nil {
		styles = DefaultStyles()
	}
	style, ok := styles[name]
	if !ok {
		return PlanetStyle{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownStyle, name, StyleNames(styles))
	}
	style.Name = name
	if style.HeightScale <= 0 {
		return PlanetStyle{}, fmt.Errorf("%w: style %q has height scale %g", ErrInvalidConfig, name, style.HeightScale)
	}
	return style, nil
}

// StyleNames returns the sorted preset names.
func StyleNames(styles map[string]PlanetStyle) []string {
	names := make([]string, 0, len(styles))
	for name := range styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
