package engine

import (
	"math"
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func TestErosionIsolatedPeak(t *testing.T) {
	g, _ := world.NewGrid(5)
	for i := range g.Height {
		g.Height[i] = 0.4
		g.Moisture[i] = 0.5
	}
	peak := g.Index(2, 2)
	low := g.Index(3, 2)
	g.Height[peak] = 0.9
	g.Height[low] = 0.3
	before := g.Clone()

	p := DefaultErosionParams()
	if err := StepErosion(g, p); err != nil {
		t.Fatal(err)
	}

	amount := 0.6 * p.Rate * 0.1
	if got, want := g.Height[peak], 0.9-amount; math.Abs(got-want) > 1e-15 {
		t.Errorf("peak height = %v, want %v", got, want)
	}
	if got, want := g.Height[low], 0.3+amount*p.DepositionRate; math.Abs(got-want) > 1e-15 {
		t.Errorf("target height = %v, want %v", got, want)
	}
	if got, want := g.Moisture[low], 0.5+amount*0.1; math.Abs(got-want) > 1e-15 {
		t.Errorf("target moisture = %v, want %v", got, want)
	}

	for i := 0; i < g.Cells(); i++ {
		if i == peak || i == low {
			continue
		}
		if g.Height[i] != before.Height[i] || g.Moisture[i] != before.Moisture[i] {
			t.Fatalf("cell %d changed", i)
		}
	}
}

func TestErosionIgnoresGentleSlopes(t *testing.T) {
	g, _ := world.NewGrid(5)
	for i := range g.Height {
		g.Height[i] = 0.6
	}
	g.Height[g.Index(2, 2)] = 0.605
	before := g.Clone()

	if err := StepErosion(g, DefaultErosionParams()); err != nil {
		t.Fatal(err)
	}
	for i := range g.Height {
		if g.Height[i] != before.Height[i] {
			t.Fatalf("cell %d eroded on a slope below threshold", i)
		}
	}
}

func TestErosionMoistureCapped(t *testing.T) {
	g, _ := world.NewGrid(5)
	for i := range g.Height {
		g.Height[i] = 0.3
		g.Moisture[i] = 1
		g.Precipitation[i] = 1
	}
	g.Height[g.Index(2, 2)] = 1
	if err := StepErosion(g, ErosionParams{Rate: 10, DepositionRate: 0}); err != nil {
		t.Fatal(err)
	}
	for i, m := range g.Moisture {
		if m > 1 {
			t.Fatalf("cell %d moisture %v above 1", i, m)
		}
	}
}
