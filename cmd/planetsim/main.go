// Command planetsim generates a planet and runs its terrain simulation,
// serving live state over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/planetsim/internal/api"
	"github.com/talgya/planetsim/internal/config"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/entropy"
	"github.com/talgya/planetsim/internal/persistence"
	"github.com/talgya/planetsim/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	seed := flag.String("seed", "", "world seed (overrides config)")
	style := flag.String("style", "", "planet style (overrides config)")
	detail := flag.Int("detail", -1, "detail level (overrides config)")
	fresh := flag.Bool("fresh", false, "ignore saved state and generate a new world")
	snapshotFile := flag.String("snapshot", "", "import the world from a snapshot file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *seed != "" {
		cfg.World.Seed = *seed
	}
	if *style != "" {
		cfg.World.Style = *style
	}
	if *detail >= 0 {
		cfg.World.Detail = *detail
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("planetsim starting",
		"seed", cfg.World.Seed,
		"style", cfg.World.Style,
		"detail", cfg.World.Detail,
		"size", cfg.GenConfig().GridSize(),
		"years_per_tick", humanize.Comma(cfg.Engine.YearsPerTick),
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── Simulation ────────────────────────────────────────────────────
	rngSeed := entropy.Resolve(cfg.Engine.RNGSeed)
	sim, err := engine.NewSimulation(cfg.GenConfig(), cfg.SimParams(), cfg.Processes, entropy.NewRand(rngSeed))
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	// ── Load or keep the fresh world ─────────────────────────────────
	var startTick uint64
	resumed := false
	switch {
	case *snapshotFile != "":
		startTick, err = importSnapshot(*snapshotFile, sim, cfg.GenConfig().Styles)
		if err != nil {
			slog.Error("failed to import snapshot file", "path", *snapshotFile, "error", err)
			os.Exit(1)
		}
	case !*fresh && db.HasWorldState():
		slog.Info("found saved world state, loading...")
		startTick, resumed, err = resume(db, sim, cfg.GenConfig())
		if err != nil {
			slog.Error("failed to restore world state", "error", err)
			os.Exit(1)
		}
	}
	if !resumed {
		if *snapshotFile == "" {
			slog.Info("starting from the generated world")
		}
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	logBiomes(sim.Stats())

	eng := engine.NewEngine()
	eng.Tick = startTick
	eng.Interval = cfg.Engine.TickInterval
	eng.ReportEvery = cfg.Engine.ReportEveryTicks
	eng.SaveEvery = cfg.Engine.SaveEveryTicks

	// Wire tick callbacks.
	eng.OnTick = func(tick uint64) {
		if err := sim.Tick(tick); err != nil {
			slog.Error("tick failed", "tick", tick, "error", err)
		}
	}
	eng.OnReport = func(tick uint64) {
		st := sim.State()
		if err := db.SaveStats(st.RunID.String(), st.Tick, st.Grid.SimulatedYears, st.Stats); err != nil {
			slog.Error("stats save failed", "error", err)
		}
		slog.Info("planet report",
			"tick", tick,
			"sim_time", engine.SimTime(st.Grid.SimulatedYears),
			"land", fmt.Sprintf("%.3f", st.Stats.LandFraction),
			"mean_temp", fmt.Sprintf("%.3f", st.Stats.MeanTemperature),
			"mean_moisture", fmt.Sprintf("%.3f", st.Stats.MeanMoisture),
			"center_elev_m", fmt.Sprintf("%.0f", st.Stats.Center.ElevationM),
		)
	}
	eng.OnSave = func(tick uint64) {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("periodic save failed", "tick", tick, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("PLANETSIM_ADMIN_KEY not set; admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Port:        cfg.Server.Port,
		AdminKey:    cfg.Server.AdminKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		SnapshotDir: cfg.Storage.SnapshotDir,
		OnRegenerate: func() {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("save after regenerate failed", "error", err)
			}
		},
	}
	httpServer := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nPlanet %q (%s) is turning: %dx%d cells.\n",
		cfg.World.Seed, cfg.World.Style, sim.Grid().Size, sim.Grid().Size)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(sim.Grid().SimulatedYears))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}

// resume installs the latest snapshot when it was generated with the same
// seed, style, and detail as want. It returns the tick to continue from and
// whether the snapshot was used. The configured style table is kept.
func resume(db *persistence.DB, sim *engine.Simulation, want world.GenConfig) (uint64, bool, error) {
	snap, err := db.LoadWorldState()
	if err != nil {
		return 0, false, err
	}
	if snap.Gen.Seed != want.Seed || snap.Gen.Style != want.Style || snap.Gen.Detail != want.Detail {
		slog.Info("saved world does not match configuration, ignoring it",
			"saved_seed", snap.Gen.Seed, "saved_style", snap.Gen.Style, "saved_detail", snap.Gen.Detail)
		return 0, false, nil
	}
	if err := snap.Apply(sim, want.Styles); err != nil {
		return 0, false, err
	}
	return snap.Header.Tick, true, nil
}

// importSnapshot installs a snapshot file regardless of the configured seed,
// style, and detail. It returns the tick to continue from.
func importSnapshot(path string, sim *engine.Simulation, styles map[string]world.PlanetStyle) (uint64, error) {
	snap, err := persistence.ReadSnapshotFile(path)
	if err != nil {
		return 0, err
	}
	if err := snap.Apply(sim, styles); err != nil {
		return 0, err
	}
	slog.Info("world imported from snapshot file",
		"path", path,
		"run_id", snap.Header.RunID,
		"seed", snap.Gen.Seed,
		"style", snap.Gen.Style,
		"tick", snap.Header.Tick,
		"sim_time", engine.SimTime(snap.Header.Years),
	)
	return snap.Header.Tick, nil
}

func logBiomes(st world.Stats) {
	for b := world.Biome(0); b < world.BiomeCount; b++ {
		if n := st.Biomes[b.String()]; n > 0 {
			slog.Info("biome", "type", b.String(), "cells", n)
		}
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
