// Package palette maps field values to display colors and renders whole
// fields as images.
package palette

import (
	"image"
	"image/color"
	"math"

	"github.com/talgya/planetsim/internal/phi"
	"github.com/talgya/planetsim/internal/world"
)

// Context carries what a color lookup needs beyond the value itself.
type Context struct {
	Style world.PlanetStyle
	Night bool
	// Wind components at the cell; only read for wind fields.
	WindX, WindY float64
}

var biomeColors = [world.BiomeCount]color.NRGBA{
	world.BiomeOcean:           {0, 0, 150, 255},
	world.BiomeTundra:          {200, 240, 255, 255},
	world.BiomeGlacier:         {255, 255, 255, 255},
	world.BiomeTaiga:           {34, 139, 34, 255},
	world.BiomeSteppe:          {189, 183, 107, 255},
	world.BiomeColdDesert:      {210, 180, 140, 255},
	world.BiomeDeciduousForest: {0, 100, 0, 255},
	world.BiomeSavanna:         {255, 255, 0, 255},
	world.BiomeDesert:          {210, 180, 140, 255},
	world.BiomeTropicalForest:  {0, 60, 0, 255},
	world.BiomeTropicalSavanna: {238, 232, 170, 255},
	world.BiomeHotDesert:       {255, 200, 150, 255},
}

// ColorFor returns the display color of value in field kind. Biome values are
// biome indices and plate values are plate ids.
func ColorFor(kind world.FieldKind, value float64, ctx Context) color.NRGBA {
	switch kind {
	case world.FieldHeight:
		return heightColor(value, ctx.Style, ctx.Night)
	case world.FieldTemperature:
		return temperatureColor(value, ctx.Night)
	case world.FieldMoisture:
		return moistureColor(value, ctx.Night)
	case world.FieldWindX, world.FieldWindY:
		return windColor(math.Hypot(ctx.WindX, ctx.WindY), ctx.Night)
	case world.FieldClouds:
		return cloudColor(value, ctx.Night)
	case world.FieldPrecipitation:
		return precipitationColor(value, ctx.Night)
	case world.FieldBiome:
		return biomeColor(int(value), ctx.Night)
	case world.FieldPlates:
		return plateColor(int(value), ctx.Night)
	}
	return heightColor(value, ctx.Style, ctx.Night)
}

func heightColor(v float64, style world.PlanetStyle, night bool) color.NRGBA {
	c := style.Colors
	ocean := style.OceanLevel
	var rgb world.RGB
	switch {
	case v < ocean-0.1:
		rgb = c.DeepOcean
	case v < ocean:
		rgb = c.ShallowOcean
	case v < ocean+0.05:
		rgb = c.Beach
	case v < ocean+0.2:
		rgb = c.Grass
	case v < ocean+0.4:
		rgb = c.Forest
	case v < ocean+0.7:
		rgb = c.Mountain
	default:
		rgb = c.Snow
	}
	out := color.NRGBA{rgb[0], rgb[1], rgb[2], 255}
	if night {
		return darken(out, 0.5)
	}
	return out
}

func temperatureColor(v float64, night bool) color.NRGBA {
	var out color.NRGBA
	switch {
	case v < 0.2:
		out = color.NRGBA{0, 100, 255, 255}
	case v < 0.4:
		out = color.NRGBA{0, 200, 255, 255}
	case v < 0.6:
		out = color.NRGBA{255, 255, 100, 255}
	case v < 0.8:
		out = color.NRGBA{255, 150, 0, 255}
	default:
		out = color.NRGBA{255, 0, 0, 255}
	}
	if night {
		return darken(out, 0.6)
	}
	return out
}

func moistureColor(v float64, night bool) color.NRGBA {
	var out color.NRGBA
	switch {
	case v < 0.3:
		i := intensity(v)
		out = color.NRGBA{channel(139 + i), channel(69 + i), channel(19 + i), 255}
	case v < 0.7:
		out = color.NRGBA{0, channel(int(100 + v*155)), 0, 255}
	default:
		out = color.NRGBA{0, 0, channel(int(100 + v*155)), 255}
	}
	if night {
		return darken(out, 0.6)
	}
	return out
}

func windColor(speed float64, night bool) color.NRGBA {
	i := intensity(speed)
	out := color.NRGBA{channel(i), channel(i), channel(100 + i), 255}
	if night {
		return darken(out, 0.6)
	}
	return out
}

func cloudColor(v float64, night bool) color.NRGBA {
	alpha := channel(int(math.Floor(v * 200)))
	if night {
		return color.NRGBA{150, 150, 200, alpha}
	}
	return color.NRGBA{255, 255, 255, alpha}
}

func precipitationColor(v float64, night bool) color.NRGBA {
	i := intensity(v)
	if night {
		return color.NRGBA{0, 0, channel(int(float64(i) * 0.7)), 255}
	}
	return color.NRGBA{0, 0, channel(i), 255}
}

func biomeColor(b int, night bool) color.NRGBA {
	if b < 0 {
		b = 0
	}
	if b >= len(biomeColors) {
		b = len(biomeColors) - 1
	}
	out := biomeColors[b]
	if night {
		return darken(out, 0.5)
	}
	return out
}

// plateColor spaces plate hues by the golden angle.
func plateColor(id int, night bool) color.NRGBA {
	hue := math.Mod(float64(id)*phi.GoldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	lightness := 0.6
	if night {
		lightness = 0.4
	}
	return hsl(hue, 0.8, lightness)
}

// hsl converts hue in degrees and saturation/lightness in [0,1] to RGB.
func hsl(h, s, l float64) color.NRGBA {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := l - c/2
	return color.NRGBA{
		channel(int(math.Round((r + m) * 255))),
		channel(int(math.Round((g + m) * 255))),
		channel(int(math.Round((b + m) * 255))),
		255,
	}
}

func darken(c color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{
		uint8(math.Floor(float64(c.R) * f)),
		uint8(math.Floor(float64(c.G) * f)),
		uint8(math.Floor(float64(c.B) * f)),
		c.A,
	}
}

func intensity(v float64) int {
	return int(math.Floor(v * 255))
}

func channel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Render draws field kind of g as an N×N image, one pixel per cell.
func Render(g *world.Grid, kind world.FieldKind, style world.PlanetStyle, night bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Size, g.Size))
	ctx := Context{Style: style, Night: night}
	wind := kind == world.FieldWindX || kind == world.FieldWindY

	for y := 0; y < g.Size; y++ {
		for x := 0; x < g.Size; x++ {
			i := g.Index(x, y)
			if wind {
				ctx.WindX, ctx.WindY = g.WindX[i], g.WindY[i]
			}
			img.SetNRGBA(x, y, ColorFor(kind, g.Value(kind, i), ctx))
		}
	}
	return img
}
