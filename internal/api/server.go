// Package api provides the HTTP API for observing and steering the planet.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/palette"
	"github.com/talgya/planetsim/internal/persistence"
	"github.com/talgya/planetsim/internal/world"
)

const (
	maxWSConns       = 16
	maxFieldStep     = 64
	maxDetail        = 16
	defaultHistory   = 100
	maxHistory       = 5000
	regenerateRate   = 6
	regenerateWindow = time.Minute
)

// Server serves the planet state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional; history and snapshots need it.
	Port        int
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins []string // Allowed origins; "*" allows any.
	SnapshotDir string   // Where POST /snapshot also writes a file. Empty = DB only.

	// OnRegenerate runs after a successful regeneration, e.g. to persist the new run.
	OnRegenerate func()

	upgrader websocket.Upgrader
	wsConns  int32
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	regenLimiter := NewRateLimiter(regenerateRate, regenerateWindow)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.originAllowed,
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("GET /api/v1/field/{kind}", s.handleField)
	mux.HandleFunc("GET /api/v1/cell/{x}/{y}", s.handleCell)
	mux.HandleFunc("GET /api/v1/map/{file}", s.handleMap)
	mux.HandleFunc("GET /api/v1/styles", s.handleStyles)
	mux.HandleFunc("GET /api/v1/snapshots", s.handleSnapshotFiles)
	mux.HandleFunc("GET /api/v1/ws", s.handleWS)

	// Admin endpoints (POST require bearer token; GET reads current value).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/processes", s.adminOnly(s.handleProcesses))
	mux.HandleFunc("POST /api/v1/regenerate", s.adminOnly(RateLimitMiddleware(regenLimiter, s.handleRegenerate)))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return s.corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can be
// shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return strings.HasPrefix(origin, "http://localhost:")
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no PLANETSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.State()
	writeJSON(w, map[string]any{
		"name":      "planetsim",
		"run_id":    st.RunID.String(),
		"tick":      st.Tick,
		"years":     st.Grid.SimulatedYears,
		"sim_time":  engine.SimTime(st.Grid.SimulatedYears),
		"seed":      st.Gen.Seed,
		"style":     st.Style.Name,
		"detail":    st.Gen.Detail,
		"size":      st.Grid.Size,
		"speed":     s.Eng.Speed(),
		"running":   s.Eng.Running(),
		"processes": s.Sim.Processes(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.State()
	writeJSON(w, engine.Frame{
		RunID:     st.RunID.String(),
		Tick:      st.Tick,
		Years:     st.Grid.SimulatedYears,
		Processes: s.Sim.Processes(),
		Stats:     st.Stats,
	})
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	runID := s.Sim.RunID().String()
	if q := r.URL.Query().Get("run_id"); q != "" {
		runID = q
	}
	limit := defaultHistory
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxHistory {
			limit = v
		}
	}

	rows, err := s.DB.StatsHistory(runID, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return empty array instead of error; the table may not have data yet.
		writeJSON(w, []persistence.StatsRow{})
		return
	}
	if rows == nil {
		rows = []persistence.StatsRow{}
	}
	writeJSON(w, rows)
}

// fieldResponse is a (possibly downsampled) field in row-major order.
type fieldResponse struct {
	Kind   string    `json:"kind"`
	Tick   uint64    `json:"tick"`
	Size   int       `json:"size"`
	Step   int       `json:"step"`
	Width  int       `json:"width"`
	Values []float64 `json:"values"`
}

// sampleField takes every step-th cell in both directions.
func sampleField(g *world.Grid, kind world.FieldKind, step int, tick uint64) fieldResponse {
	width := (g.Size + step - 1) / step
	values := make([]float64, 0, width*width)
	for y := 0; y < g.Size; y += step {
		for x := 0; x < g.Size; x += step {
			values = append(values, g.Value(kind, g.Index(x, y)))
		}
	}
	return fieldResponse{
		Kind:   kind.String(),
		Tick:   tick,
		Size:   g.Size,
		Step:   step,
		Width:  width,
		Values: values,
	}
}

func parseStep(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil || step < 1 || step > maxFieldStep {
		return 0, fmt.Errorf("step must be 1-%d", maxFieldStep)
	}
	return step, nil
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	kind, err := world.ParseFieldKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	step, err := parseStep(r.URL.Query().Get("step"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	st := s.Sim.State()
	writeJSON(w, sampleField(st.Grid, kind, step, st.Tick))
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(r.PathValue("y"))
	if errX != nil || errY != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	st := s.Sim.State()
	g := st.Grid
	if !g.InBounds(x, y) {
		http.Error(w, fmt.Sprintf("cell (%d,%d) outside %dx%d grid", x, y, g.Size, g.Size), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    st.Tick,
		"cell":    g.At(x, y),
		"biome":   g.Biome[g.Index(x, y)].String(),
		"readout": world.CellReadout(g, x, y, st.Style),
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.Error(w, "map must be requested as <field>.png", http.StatusNotFound)
		return
	}
	kind, err := world.ParseFieldKind(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	night := r.URL.Query().Get("night") == "1"

	st := s.Sim.State()
	img := palette.Render(st.Grid, kind, st.Style, night)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Error("map encode failed", "field", kind, "error", err)
	}
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	styles := s.Sim.GenConfig().Styles
	if styles == nil {
		styles = world.DefaultStyles()
	}
	out := make([]world.PlanetStyle, 0, len(styles))
	for _, name := range world.StyleNames(styles) {
		st, err := world.LookupStyle(styles, name)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	writeJSON(w, out)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Tectonics *bool `json:"tectonics"`
			Climate   *bool `json:"climate"`
			Erosion   *bool `json:"erosion"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		p := s.Sim.Processes()
		if req.Tectonics != nil {
			p.Tectonics = *req.Tectonics
		}
		if req.Climate != nil {
			p.Climate = *req.Climate
		}
		if req.Erosion != nil {
			p.Erosion = *req.Erosion
		}
		s.Sim.SetProcesses(p)
	}

	writeJSON(w, s.Sim.Processes())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed   *string `json:"seed"`
		Style  *string `json:"style"`
		Detail *int    `json:"detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Detail != nil && (*req.Detail < 0 || *req.Detail > maxDetail) {
		http.Error(w, fmt.Sprintf("detail must be 0-%d", maxDetail), http.StatusBadRequest)
		return
	}

	gen := s.Sim.GenConfig()
	if req.Seed != nil {
		gen.Seed = *req.Seed
	}
	if req.Style != nil {
		gen.Style = *req.Style
	}
	if req.Detail != nil {
		gen.Detail = *req.Detail
	}

	if err := s.Sim.Regenerate(gen); err != nil {
		switch {
		case errors.Is(err, world.ErrUnknownStyle), errors.Is(err, world.ErrInvalidSize), errors.Is(err, world.ErrInvalidConfig):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("regenerate failed", "error", err)
			http.Error(w, "regenerate failed", http.StatusInternalServerError)
		}
		return
	}
	if s.OnRegenerate != nil {
		s.OnRegenerate()
	}

	st := s.Sim.State()
	writeJSON(w, map[string]any{
		"run_id": st.RunID.String(),
		"seed":   st.Gen.Seed,
		"style":  st.Style.Name,
		"detail": st.Gen.Detail,
		"size":   st.Grid.Size,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	}
	if s.SnapshotDir != "" {
		snap := persistence.Capture(s.Sim)
		path := filepath.Join(s.SnapshotDir, persistence.SnapshotFileName(snap.Header))
		if err := persistence.WriteSnapshotFile(path, snap); err != nil {
			slog.Error("snapshot file write failed", "path", path, "error", err)
			http.Error(w, "snapshot file failed", http.StatusInternalServerError)
			return
		}
		resp["file"] = path
	}
	writeJSON(w, resp)
}

// handleSnapshotFiles lists exported snapshot files, newest first.
func (s *Server) handleSnapshotFiles(w http.ResponseWriter, r *http.Request) {
	if s.SnapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusServiceUnavailable)
		return
	}
	files, err := persistence.ListSnapshotFiles(s.SnapshotDir)
	if err != nil {
		slog.Error("snapshot listing failed", "dir", s.SnapshotDir, "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []persistence.SnapshotFile{}
	}
	writeJSON(w, files)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
