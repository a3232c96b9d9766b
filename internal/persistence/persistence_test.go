package persistence

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSim(t *testing.T) *engine.Simulation {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	sim, err := engine.NewSimulation(world.SmallTestConfig(), engine.DefaultParams(), engine.AllProcesses(), rng)
	if err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		if err := sim.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}
	return sim
}

func assertSameGrid(t *testing.T, want, got *world.Grid) {
	t.Helper()
	if want.Size != got.Size || want.SimulatedYears != got.SimulatedYears {
		t.Fatalf("size/years = %d/%d, want %d/%d", got.Size, got.SimulatedYears, want.Size, want.SimulatedYears)
	}
	for _, k := range world.ScalarFields {
		if !slices.Equal(want.Field(k), got.Field(k)) {
			t.Fatalf("field %s differs after round trip", k)
		}
	}
	if !slices.Equal(want.Biome, got.Biome) || !slices.Equal(want.PlateID, got.PlateID) {
		t.Fatal("biome or plates differ after round trip")
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("seed", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("seed", "def"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("seed")
	if err != nil {
		t.Fatal(err)
	}
	if v != "def" {
		t.Fatalf("meta = %q, want def", v)
	}
	if _, err := db.GetMeta("missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestWorldStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if db.HasWorldState() {
		t.Fatal("fresh db reports saved state")
	}
	if _, err := db.LoadWorldState(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}

	sim := newTestSim(t)
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatal(err)
	}
	if !db.HasWorldState() {
		t.Fatal("no state after save")
	}

	snap, err := db.LoadWorldState()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Header.RunID != sim.RunID().String() || snap.Header.Tick != 3 {
		t.Fatalf("header = %+v", snap.Header)
	}
	if snap.Gen.Seed != world.SmallTestConfig().Seed {
		t.Fatalf("gen seed = %q", snap.Gen.Seed)
	}
	assertSameGrid(t, sim.Grid(), snap.Grid)

	meta := map[string]string{
		"last_tick":       "3",
		"run_id":          sim.RunID().String(),
		"seed":            world.SmallTestConfig().Seed,
		"style":           "earth",
		"detail":          "0",
		"simulated_years": "3000",
	}
	for k, want := range meta {
		if got, err := db.GetMeta(k); err != nil || got != want {
			t.Errorf("meta %s = %q, %v; want %q", k, got, err, want)
		}
	}
}

func TestPruneSnapshots(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)
	for i := 0; i < 5; i++ {
		if err := db.SaveWorldState(sim); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM snapshots"); err != nil {
		t.Fatal(err)
	}
	if n != snapshotsKept {
		t.Fatalf("snapshots = %d, want %d", n, snapshotsKept)
	}
}

func TestStatsHistory(t *testing.T) {
	db := openTestDB(t)
	st := world.Stats{Size: 32, LandFraction: 0.4, Biomes: map[string]int{"ocean": 10}}
	for tick := uint64(1); tick <= 5; tick++ {
		if err := db.SaveStats("run-a", tick, int64(tick)*1000, st); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SaveStats("run-b", 1, 1000, st); err != nil {
		t.Fatal(err)
	}

	rows, err := db.StatsHistory("run-a", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Tick != 3 || rows[2].Tick != 5 {
		t.Fatalf("ticks = %d..%d, want 3..5", rows[0].Tick, rows[2].Tick)
	}
	if rows[2].Years != 5000 || rows[2].LandFraction != 0.4 || rows[2].Biomes["ocean"] != 10 {
		t.Fatalf("row = %+v", rows[2])
	}
}

func TestSnapshotFile(t *testing.T) {
	sim := newTestSim(t)
	snap := Capture(sim)
	path := filepath.Join(t.TempDir(), "snaps", SnapshotFileName(snap.Header))

	if err := WriteSnapshotFile(path, snap); err != nil {
		t.Fatal(err)
	}

	h, err := ReadSnapshotHeader(path)
	if err != nil {
		t.Fatal(err)
	}
	if h.RunID != snap.Header.RunID || h.Tick != snap.Header.Tick || h.Size != snap.Grid.Size {
		t.Fatalf("header = %+v", h)
	}

	got, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatal(err)
	}
	assertSameGrid(t, snap.Grid, got.Grid)

	// A restored simulation continues from the saved grid.
	other, err := engine.NewSimulation(world.SmallTestConfig(), engine.DefaultParams(), engine.AllProcesses(), rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if err := got.Apply(other, nil); err != nil {
		t.Fatal(err)
	}
	if other.RunID() != sim.RunID() || other.CurrentTick() != 3 {
		t.Fatalf("restored run %s tick %d, want %s tick 3", other.RunID(), other.CurrentTick(), sim.RunID())
	}
	assertSameGrid(t, sim.Grid(), other.Grid())
}

func TestSnapshotApplyRejects(t *testing.T) {
	sim := newTestSim(t)

	snap := Capture(sim)
	snap.Header.RunID = "not-a-uuid"
	if err := snap.Apply(sim, nil); err == nil {
		t.Fatal("bad run id accepted")
	}

	snap = Capture(sim)
	styles := map[string]world.PlanetStyle{"flat": {HeightScale: 1, OceanLevel: 0.5}}
	if err := snap.Apply(sim, styles); !errors.Is(err, world.ErrUnknownStyle) {
		t.Fatalf("err = %v, want ErrUnknownStyle", err)
	}
}

func TestListSnapshotFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	files, err := ListSnapshotFiles(dir)
	if err != nil || len(files) != 0 {
		t.Fatalf("missing dir: files=%v err=%v", files, err)
	}

	sim := newTestSim(t)
	older := Capture(sim)
	older.Header.SavedAt = older.Header.SavedAt.Add(-time.Hour)
	if err := WriteSnapshotFile(filepath.Join(dir, SnapshotFileName(older.Header)), older); err != nil {
		t.Fatal(err)
	}
	if err := sim.Tick(4); err != nil {
		t.Fatal(err)
	}
	newer := Capture(sim)
	if err := WriteSnapshotFile(filepath.Join(dir, SnapshotFileName(newer.Header)), newer); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken"+snapshotFileSuffix), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err = ListSnapshotFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("listed %d files, want 2", len(files))
	}
	if files[0].Tick != 4 || files[1].Tick != 3 {
		t.Fatalf("ticks = %d,%d, want newest first 4,3", files[0].Tick, files[1].Tick)
	}
	if files[0].Name != SnapshotFileName(newer.Header) {
		t.Fatalf("name = %q", files[0].Name)
	}
}
