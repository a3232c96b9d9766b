// Simulation owns the planet grid and applies the enabled processes each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/planetsim/internal/world"
)

// Processes holds the per-process enable flags.
type Processes struct {
	Tectonics bool `json:"tectonics" yaml:"tectonics"`
	Climate   bool `json:"climate" yaml:"climate"`
	Erosion   bool `json:"erosion" yaml:"erosion"`
}

// AllProcesses enables every process.
func AllProcesses() Processes {
	return Processes{Tectonics: true, Climate: true, Erosion: true}
}

// Params holds stepper parameters and the time advanced per tick.
type Params struct {
	Tectonics    TectonicsParams
	Climate      ClimateParams
	Erosion      ErosionParams
	YearsPerTick int64
}

// DefaultParams returns the standard stepper parameters with 1000 years per tick.
func DefaultParams() Params {
	return Params{
		Tectonics:    DefaultTectonicsParams(),
		Climate:      DefaultClimateParams(),
		Erosion:      DefaultErosionParams(),
		YearsPerTick: 1000,
	}
}

// Frame is a per-tick summary pushed to subscribers.
type Frame struct {
	RunID     string      `json:"run_id"`
	Tick      uint64      `json:"tick"`
	Years     int64       `json:"years"`
	Processes Processes   `json:"processes"`
	Stats     world.Stats `json:"stats"`

	// Grid is the published grid for this tick. Read-only.
	Grid *world.Grid `json:"-"`
}

// Simulation holds the current world grid and wires the steppers together.
//
// The published grid is never mutated: Tick clones it, steps the clone, and
// swaps the pointer. Readers holding a grid from Grid() always see a
// consistent snapshot.
type Simulation struct {
	// stepMu serializes Tick, Regenerate, and Restore.
	stepMu sync.Mutex

	mu        sync.RWMutex
	grid      *world.Grid
	gen       world.GenConfig
	style     world.PlanetStyle
	processes Processes
	runID     uuid.UUID
	lastTick  uint64
	stats     world.Stats

	params Params
	rng    *rand.Rand

	subMu   sync.Mutex
	subs    map[int]chan Frame
	nextSub int
}

// NewSimulation generates a fresh world from gen. rng drives every stochastic
// choice in the steppers; pass a seeded source for reproducible runs.
func NewSimulation(gen world.GenConfig, params Params, procs Processes, rng *rand.Rand) (*Simulation, error) {
	if params.YearsPerTick < 0 {
		return nil, fmt.Errorf("%w: years per tick %d", world.ErrInvalidConfig, params.YearsPerTick)
	}
	s := &Simulation{
		params:    params,
		processes: procs,
		rng:       rng,
		subs:      make(map[int]chan Frame),
	}
	if err := s.regenerate(gen); err != nil {
		return nil, err
	}
	return s, nil
}

// State is a consistent view of the simulation at one tick.
type State struct {
	Grid  *world.Grid
	Gen   world.GenConfig
	Style world.PlanetStyle
	RunID uuid.UUID
	Tick  uint64
	Stats world.Stats
}

// State returns the published grid together with the metadata that belongs to
// it. The grid must be treated as read-only.
func (s *Simulation) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Grid:  s.grid,
		Gen:   s.gen,
		Style: s.style,
		RunID: s.runID,
		Tick:  s.lastTick,
		Stats: s.stats,
	}
}

// Grid returns the published grid. Callers must treat it as read-only.
func (s *Simulation) Grid() *world.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid
}

// GenConfig returns the generation parameters of the current world.
func (s *Simulation) GenConfig() world.GenConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Style returns the planet style of the current world.
func (s *Simulation) Style() world.PlanetStyle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

// RunID identifies the current generation. It changes on every regeneration.
func (s *Simulation) RunID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// Stats returns the aggregates computed for the published grid.
func (s *Simulation) Stats() world.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Processes returns the current enable flags.
func (s *Simulation) Processes() Processes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes
}

// SetProcesses replaces the enable flags. Takes effect on the next tick.
func (s *Simulation) SetProcesses(p Processes) {
	s.mu.Lock()
	s.processes = p
	s.mu.Unlock()
	slog.Info("processes updated", "tectonics", p.Tectonics, "climate", p.Climate, "erosion", p.Erosion)
}

// Tick advances simulated time by one step and runs the enabled processes in
// order: tectonics, weather, erosion. On error the published grid is left
// unchanged.
func (s *Simulation) Tick(tick uint64) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	s.mu.RLock()
	cur := s.grid
	procs := s.processes
	style := s.style
	s.mu.RUnlock()

	next := cur.Clone()
	next.SimulatedYears += s.params.YearsPerTick

	if procs.Tectonics {
		if err := StepTectonics(next, s.rng, s.params.Tectonics); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}
	if procs.Climate {
		if err := StepWeather(next, next.SimulatedYears, s.rng, s.params.Climate); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}
	if procs.Erosion {
		if err := StepErosion(next, s.params.Erosion); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}

	stats := world.Summarize(next, style)

	s.mu.Lock()
	s.grid = next
	s.lastTick = tick
	s.stats = stats
	runID := s.runID
	s.mu.Unlock()

	s.broadcast(Frame{
		RunID:     runID.String(),
		Tick:      tick,
		Years:     next.SimulatedYears,
		Processes: procs,
		Stats:     stats,
		Grid:      next,
	})
	return nil
}

// Regenerate replaces the world with a new one built from gen. Simulated time
// restarts at zero and a new run ID is issued.
func (s *Simulation) Regenerate(gen world.GenConfig) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.regenerate(gen)
}

func (s *Simulation) regenerate(gen world.GenConfig) error {
	style, err := world.LookupStyle(gen.Styles, gen.Style)
	if err != nil {
		return err
	}
	g, err := world.Generate(gen)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	runID := uuid.New()
	stats := world.Summarize(g, style)

	s.mu.Lock()
	s.grid = g
	s.gen = gen
	s.style = style
	s.runID = runID
	s.stats = stats
	s.mu.Unlock()

	slog.Info("world generated",
		"run_id", runID,
		"seed", gen.Seed,
		"style", style.Name,
		"detail", gen.Detail,
		"size", g.Size,
		"land", fmt.Sprintf("%.3f", stats.LandFraction),
	)
	return nil
}

// Restore installs a previously saved grid under its original run ID.
func (s *Simulation) Restore(g *world.Grid, gen world.GenConfig, runID uuid.UUID, tick uint64) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	style, err := world.LookupStyle(gen.Styles, gen.Style)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	stats := world.Summarize(g, style)
	s.mu.Lock()
	s.grid = g
	s.gen = gen
	s.style = style
	s.runID = runID
	s.lastTick = tick
	s.stats = stats
	s.mu.Unlock()
	return nil
}

// Subscribe registers a frame listener. Slow listeners miss frames rather
// than blocking the tick.
func (s *Simulation) Subscribe() (int, <-chan Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Frame, 8)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) broadcast(f Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- f:
		default:
		}
	}
}
