package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/talgya/planetsim/internal/world"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func smallGrid(t *testing.T) *world.Grid {
	t.Helper()
	g, err := world.Generate(world.SmallTestConfig())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestTectonicsPlatesStable(t *testing.T) {
	g := smallGrid(t)
	plates := slices.Clone(g.PlateID)
	rng := testRand(1)

	for i := 0; i < 20; i++ {
		if err := StepTectonics(g, rng, DefaultTectonicsParams()); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(plates, g.PlateID) {
		t.Fatal("plate ids changed during tectonics")
	}
}

func TestTectonicsAssignsPlatesLazily(t *testing.T) {
	g, err := world.NewGrid(16)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Height {
		g.Height[i] = 0.5
	}
	if g.HasPlates() {
		t.Fatal("new grid should not have plates")
	}

	p := DefaultTectonicsParams()
	if err := StepTectonics(g, testRand(2), p); err != nil {
		t.Fatal(err)
	}
	if len(g.PlateID) != g.Cells() {
		t.Fatalf("plate count = %d, want %d", len(g.PlateID), g.Cells())
	}
	for i, id := range g.PlateID {
		if id < 0 || id >= p.NumPlates {
			t.Fatalf("cell %d plate %d out of range [0,%d)", i, id, p.NumPlates)
		}
	}
}

func TestTectonicsLeavesBorderUntouched(t *testing.T) {
	g := smallGrid(t)
	before := slices.Clone(g.Height)
	if err := StepTectonics(g, testRand(3), DefaultTectonicsParams()); err != nil {
		t.Fatal(err)
	}

	n := g.Size
	for x := 0; x < n; x++ {
		for _, y := range []int{0, n - 1} {
			i := g.Index(x, y)
			if g.Height[i] != before[i] {
				t.Fatalf("border cell (%d,%d) changed: %v -> %v", x, y, before[i], g.Height[i])
			}
		}
	}
	for _, h := range g.Height {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			t.Fatal("non-finite height after tectonics")
		}
	}
}

func TestTectonicsSmoothsFlatField(t *testing.T) {
	g, _ := world.NewGrid(8)
	for i := range g.Height {
		g.Height[i] = 0.6
	}
	g.PlateID = make([]int, g.Cells())

	// Single plate: no convergence, only rifts and smoothing.
	if err := StepTectonics(g, testRand(4), TectonicsParams{NumPlates: 1, PlateSpeed: 0.001}); err != nil {
		t.Fatal(err)
	}
	for i, h := range g.Height {
		if h > 0.6+1e-12 || h < 0.6-0.001 {
			t.Fatalf("cell %d height %v outside expected rift band", i, h)
		}
	}
}

func TestTectonicsShapeMismatch(t *testing.T) {
	g := smallGrid(t)
	g.Moisture = g.Moisture[:10]
	err := StepTectonics(g, testRand(5), DefaultTectonicsParams())
	if !errors.Is(err, world.ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestTectonicsConvergentUplift(t *testing.T) {
	const size = 8
	g, _ := world.NewGrid(size)
	for i := range g.Height {
		g.Height[i] = 0.5
	}
	// Alternating one-column plates: any eastward or westward motion converges.
	g.PlateID = make([]int, g.Cells())
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.PlateID[g.Index(x, y)] = x % 2
		}
	}
	p := TectonicsParams{NumPlates: 2, PlateSpeed: 0.01}

	// Replay the stepper's draws to build the expected pre-smoothing heights.
	replay := testRand(21)
	var dirs [2][2]int
	for k := range dirs {
		a := replay.Float64() * math.Pi * 2
		dirs[k] = [2]int{sign(math.Cos(a)), sign(math.Sin(a))}
		if dirs[k][0] == 0 {
			t.Fatalf("plate %d has no east-west motion; pick another seed", k)
		}
	}
	raw := slices.Clone(g.Height)
	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			i := g.Index(x, y)
			s := replay.Float64() * p.PlateSpeed
			d := dirs[g.PlateID[i]]
			j := g.Index(x+d[0], y+d[1])
			raw[i] += s * 2
			raw[j] += s
		}
	}

	if err := StepTectonics(g, testRand(21), p); err != nil {
		t.Fatal(err)
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := g.Index(x, y)
			want := 0.5
			if x > 0 && y > 0 && x < size-1 && y < size-1 {
				sum := 0.0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						sum += raw[g.Index(x+dx, y+dy)]
					}
				}
				want = sum / 9
			}
			if math.Abs(g.Height[i]-want) > 1e-12 {
				t.Fatalf("height at (%d,%d) = %v, want %v", x, y, g.Height[i], want)
			}
		}
	}

	// Both sides of every boundary are raised.
	for y := 2; y < size-2; y++ {
		for x := 2; x < size-2; x++ {
			if h := g.Height[g.Index(x, y)]; h <= 0.5 {
				t.Fatalf("cell (%d,%d) on plate %d not uplifted: %v", x, y, x%2, h)
			}
		}
	}
}
