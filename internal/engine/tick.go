// Package engine provides the planet process steppers and the tick-based loop
// that drives them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives the simulation forward one tick at a time.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic)
	Interval time.Duration // Base tick interval at speed 1

	ReportEvery uint64 // Ticks between OnReport calls (0 disables)
	SaveEvery   uint64 // Ticks between OnSave calls (0 disables)

	// Callbacks populated during setup.
	OnTick   func(tick uint64)
	OnReport func(tick uint64)
	OnSave   func(tick uint64)

	mu      sync.Mutex
	speed   float64 // 1.0 = nominal, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval:    50 * time.Millisecond,
		ReportEvery: 10,
		speed:       1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero or negative pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the loop. Blocks until Stop is called or ctx is done. Stops only
// between ticks.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Tick)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			if !sleepCtx(ctx, stop, 100*time.Millisecond) {
				return
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if !sleepCtx(ctx, stop, target-elapsed) {
				return
			}
		}
	}
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// RunTicks advances n ticks synchronously, ignoring speed and interval.
func (e *Engine) RunTicks(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(e.Tick)
	}
}

func sleepCtx(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

// SimTime returns a human-readable elapsed-time string, e.g. "1,250,000 years".
func SimTime(years int64) string {
	if years == 1 {
		return "1 year"
	}
	return fmt.Sprintf("%s years", humanize.Comma(years))
}
