package engine

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/talgya/planetsim/internal/world"
)

func newTestSim(t *testing.T, procs Processes, seed uint64) *Simulation {
	t.Helper()
	sim, err := NewSimulation(world.SmallTestConfig(), DefaultParams(), procs, testRand(seed))
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestSimulationAllProcessesOff(t *testing.T) {
	sim := newTestSim(t, Processes{}, 1)
	start := sim.Grid().Clone()

	for tick := uint64(1); tick <= 100; tick++ {
		if err := sim.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}

	g := sim.Grid()
	for _, k := range world.ScalarFields {
		if !slices.Equal(start.Field(k), g.Field(k)) {
			t.Fatalf("field %s changed with every process disabled", k)
		}
	}
	if !slices.Equal(start.Biome, g.Biome) || !slices.Equal(start.PlateID, g.PlateID) {
		t.Fatal("biome or plates changed with every process disabled")
	}
	if g.SimulatedYears != 100*1000 {
		t.Fatalf("years = %d, want 100000", g.SimulatedYears)
	}
	if sim.CurrentTick() != 100 {
		t.Fatalf("tick = %d, want 100", sim.CurrentTick())
	}
}

func TestSimulationDeterministic(t *testing.T) {
	a := newTestSim(t, AllProcesses(), 42)
	b := newTestSim(t, AllProcesses(), 42)

	for tick := uint64(1); tick <= 5; tick++ {
		if err := a.Tick(tick); err != nil {
			t.Fatal(err)
		}
		if err := b.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}

	ga, gb := a.Grid(), b.Grid()
	for _, k := range world.ScalarFields {
		if !slices.Equal(ga.Field(k), gb.Field(k)) {
			t.Fatalf("field %s differs between identically seeded runs", k)
		}
	}
}

func TestSimulationPublishedGridUnchanged(t *testing.T) {
	sim := newTestSim(t, AllProcesses(), 7)
	held := sim.Grid()
	snapshot := held.Clone()

	if err := sim.Tick(1); err != nil {
		t.Fatal(err)
	}
	if sim.Grid() == held {
		t.Fatal("tick did not publish a new grid")
	}
	for _, k := range world.ScalarFields {
		if !slices.Equal(snapshot.Field(k), held.Field(k)) {
			t.Fatalf("held grid field %s mutated by tick", k)
		}
	}
}

func TestSimulationPlatesStable(t *testing.T) {
	sim := newTestSim(t, AllProcesses(), 9)
	plates := slices.Clone(sim.Grid().PlateID)
	for tick := uint64(1); tick <= 10; tick++ {
		if err := sim.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(plates, sim.Grid().PlateID) {
		t.Fatal("plate ids changed across ticks")
	}
}

func TestSimulationRegenerate(t *testing.T) {
	sim := newTestSim(t, AllProcesses(), 3)
	firstRun := sim.RunID()
	for tick := uint64(1); tick <= 3; tick++ {
		if err := sim.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}

	gen := world.SmallTestConfig()
	gen.Style = "mars"
	if err := sim.Regenerate(gen); err != nil {
		t.Fatal(err)
	}
	if sim.Grid().SimulatedYears != 0 {
		t.Fatalf("years after regenerate = %d, want 0", sim.Grid().SimulatedYears)
	}
	if sim.RunID() == firstRun {
		t.Fatal("regenerate kept the old run id")
	}
	if sim.Style().Name != "mars" {
		t.Fatalf("style = %q, want mars", sim.Style().Name)
	}
}

func TestSimulationUnknownStyle(t *testing.T) {
	gen := world.SmallTestConfig()
	gen.Style = "venus"
	_, err := NewSimulation(gen, DefaultParams(), AllProcesses(), testRand(1))
	if !errors.Is(err, world.ErrUnknownStyle) {
		t.Fatalf("err = %v, want ErrUnknownStyle", err)
	}

	sim := newTestSim(t, AllProcesses(), 1)
	before := sim.RunID()
	if err := sim.Regenerate(gen); !errors.Is(err, world.ErrUnknownStyle) {
		t.Fatalf("regenerate err = %v, want ErrUnknownStyle", err)
	}
	if sim.RunID() != before {
		t.Fatal("failed regenerate replaced the world")
	}
}

func TestSimulationSubscribe(t *testing.T) {
	sim := newTestSim(t, Processes{Climate: true}, 5)
	id, frames := sim.Subscribe()
	defer sim.Unsubscribe(id)

	if err := sim.Tick(1); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-frames:
		if f.Tick != 1 || f.Years != 1000 {
			t.Fatalf("frame tick=%d years=%d, want 1 and 1000", f.Tick, f.Years)
		}
		if f.RunID != sim.RunID().String() {
			t.Fatalf("frame run id %q, want %q", f.RunID, sim.RunID())
		}
		if !f.Processes.Climate || f.Processes.Tectonics {
			t.Fatalf("frame processes = %+v", f.Processes)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func TestSimulationRestore(t *testing.T) {
	sim := newTestSim(t, AllProcesses(), 6)
	g := sim.Grid().Clone()
	g.SimulatedYears = 5000
	other := newTestSim(t, AllProcesses(), 6)

	if err := other.Restore(g, sim.GenConfig(), sim.RunID(), 5); err != nil {
		t.Fatal(err)
	}
	if other.RunID() != sim.RunID() || other.CurrentTick() != 5 {
		t.Fatal("restore did not install run id and tick")
	}
	if other.Grid().SimulatedYears != 5000 {
		t.Fatalf("years = %d, want 5000", other.Grid().SimulatedYears)
	}

	bad := g.Clone()
	bad.Height = bad.Height[:1]
	if err := other.Restore(bad, sim.GenConfig(), sim.RunID(), 6); !errors.Is(err, world.ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}
