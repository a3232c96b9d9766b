package palette

import (
	"image/color"
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func earth(t *testing.T) world.PlanetStyle {
	t.Helper()
	s, err := world.LookupStyle(nil, "earth")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHeightBands(t *testing.T) {
	style := earth(t)
	c := style.Colors
	ocean := style.OceanLevel
	cases := []struct {
		v    float64
		want world.RGB
	}{
		{ocean - 0.2, c.DeepOcean},
		{ocean - 0.05, c.ShallowOcean},
		{ocean + 0.01, c.Beach},
		{ocean + 0.1, c.Grass},
		{ocean + 0.3, c.Forest},
		{ocean + 0.5, c.Mountain},
		{ocean + 0.8, c.Snow},
	}
	for _, tc := range cases {
		got := ColorFor(world.FieldHeight, tc.v, Context{Style: style})
		if got.R != tc.want[0] || got.G != tc.want[1] || got.B != tc.want[2] || got.A != 255 {
			t.Errorf("height %.2f = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestNightDarkens(t *testing.T) {
	day := ColorFor(world.FieldTemperature, 0.9, Context{})
	night := ColorFor(world.FieldTemperature, 0.9, Context{Night: true})
	if day != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("day = %v", day)
	}
	if night != (color.NRGBA{153, 0, 0, 255}) {
		t.Fatalf("night = %v", night)
	}

	b := ColorFor(world.FieldBiome, float64(world.BiomeGlacier), Context{Night: true})
	if b != (color.NRGBA{127, 127, 127, 255}) {
		t.Fatalf("night glacier = %v", b)
	}
}

func TestCloudAlpha(t *testing.T) {
	if c := ColorFor(world.FieldClouds, 1, Context{}); c != (color.NRGBA{255, 255, 255, 200}) {
		t.Fatalf("full cloud = %v", c)
	}
	if c := ColorFor(world.FieldClouds, 0, Context{Night: true}); c.A != 0 || c.B != 200 {
		t.Fatalf("clear night = %v", c)
	}
}

func TestWindUsesBothComponents(t *testing.T) {
	c := ColorFor(world.FieldWindX, 0, Context{WindX: 0.3, WindY: 0.4})
	// |wind| = 0.5, intensity 127.
	if c != (color.NRGBA{127, 127, 227, 255}) {
		t.Fatalf("wind = %v", c)
	}
	if c := ColorFor(world.FieldWindY, 0, Context{WindX: 5, WindY: 5}); c.B != 255 {
		t.Fatalf("strong wind not clamped: %v", c)
	}
}

func TestPlateColorsDistinct(t *testing.T) {
	seen := map[color.NRGBA]bool{}
	for id := 0; id < 10; id++ {
		c := ColorFor(world.FieldPlates, float64(id), Context{})
		if seen[c] {
			t.Fatalf("plate %d repeats color %v", id, c)
		}
		seen[c] = true
	}
	// Plate 0 has hue 0: saturated red at 60% lightness.
	if c := ColorFor(world.FieldPlates, 0, Context{}); c != (color.NRGBA{235, 71, 71, 255}) {
		t.Fatalf("plate 0 = %v", c)
	}
}

func TestRender(t *testing.T) {
	g, err := world.Generate(world.SmallTestConfig())
	if err != nil {
		t.Fatal(err)
	}
	style := earth(t)
	for _, kind := range []world.FieldKind{world.FieldHeight, world.FieldBiome, world.FieldPlates, world.FieldWindX} {
		img := Render(g, kind, style, false)
		if b := img.Bounds(); b.Dx() != g.Size || b.Dy() != g.Size {
			t.Fatalf("%s bounds = %v", kind, b)
		}
		i := g.Index(3, 5)
		ctx := Context{Style: style, WindX: g.WindX[i], WindY: g.WindY[i]}
		if got, want := img.NRGBAAt(3, 5), ColorFor(kind, g.Value(kind, i), ctx); got != want {
			t.Fatalf("%s pixel = %v, want %v", kind, got, want)
		}
	}
}
