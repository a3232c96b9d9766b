// Package persistence provides SQLite-backed storage for run metadata, stats
// history, and compressed world snapshots.
package persistence

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// ErrNoSnapshot is returned when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// snapshotsKept is how many snapshots SaveWorldState retains.
const snapshotsKept = 3

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stats_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		years INTEGER NOT NULL,
		size INTEGER NOT NULL,
		land_fraction REAL NOT NULL,
		mean_height REAL NOT NULL,
		mean_temperature REAL NOT NULL,
		mean_moisture REAL NOT NULL,
		cloud_cover REAL NOT NULL,
		total_precipitation REAL NOT NULL,
		biomes_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		years INTEGER NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stats_run_tick ON stats_history(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_snapshots_tick ON snapshots(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// StatsRow is one persisted stats sample.
type StatsRow struct {
	ID                 int64          `db:"id" json:"-"`
	RunID              string         `db:"run_id" json:"run_id"`
	Tick               uint64         `db:"tick" json:"tick"`
	Years              int64          `db:"years" json:"years"`
	Size               int            `db:"size" json:"size"`
	LandFraction       float64        `db:"land_fraction" json:"land_fraction"`
	MeanHeight         float64        `db:"mean_height" json:"mean_height"`
	MeanTemperature    float64        `db:"mean_temperature" json:"mean_temperature"`
	MeanMoisture       float64        `db:"mean_moisture" json:"mean_moisture"`
	CloudCover         float64        `db:"cloud_cover" json:"cloud_cover"`
	TotalPrecipitation float64        `db:"total_precipitation" json:"total_precipitation"`
	BiomesJSON         string         `db:"biomes_json" json:"-"`
	CreatedAt          int64          `db:"created_at" json:"created_at"`
	Biomes             map[string]int `db:"-" json:"biomes"`
}

// SaveStats appends a stats sample for a run.
func (db *DB) SaveStats(runID string, tick uint64, years int64, st world.Stats) error {
	biomes, err := json.Marshal(st.Biomes)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`INSERT INTO stats_history
		(run_id, tick, years, size, land_fraction, mean_height, mean_temperature,
		 mean_moisture, cloud_cover, total_precipitation, biomes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, tick, years, st.Size, st.LandFraction, st.MeanHeight, st.MeanTemperature,
		st.MeanMoisture, st.CloudCover, st.TotalPrecipitation, string(biomes), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert stats tick %d: %w", tick, err)
	}
	return nil
}

// StatsHistory returns up to limit of the most recent samples for a run,
// oldest first.
func (db *DB) StatsHistory(runID string, limit int) ([]StatsRow, error) {
	var rows []StatsRow
	err := db.conn.Select(&rows, `SELECT id, run_id, tick, years, size, land_fraction,
		mean_height, mean_temperature, mean_moisture, cloud_cover,
		total_precipitation, biomes_json, created_at
		FROM stats_history WHERE run_id = ? ORDER BY tick DESC, id DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	for i := range rows {
		if err := json.Unmarshal([]byte(rows[i].BiomesJSON), &rows[i].Biomes); err != nil {
			return nil, fmt.Errorf("stats row %d biomes: %w", rows[i].ID, err)
		}
	}
	return rows, nil
}

// SaveSnapshot stores a compressed snapshot and returns its encoded size.
func (db *DB) SaveSnapshot(snap *Snapshot) (int, error) {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snap); err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	_, err := db.conn.Exec(
		"INSERT INTO snapshots (run_id, tick, years, size, created_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		snap.Header.RunID, snap.Header.Tick, snap.Header.Years, snap.Header.Size,
		time.Now().Unix(), buf.Bytes(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return buf.Len(), nil
}

// LatestSnapshot loads the most recently saved snapshot.
func (db *DB) LatestSnapshot() (*Snapshot, error) {
	var data []byte
	err := db.conn.Get(&data, "SELECT data FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(bytes.NewReader(data))
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HasWorldState reports whether a snapshot exists to resume from.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM snapshots"); err != nil {
		return false
	}
	return n > 0
}

// SaveWorldState snapshots the simulation and records run metadata.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	snap := Capture(sim)

	size, err := db.SaveSnapshot(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	meta := map[string]string{
		"run_id":          snap.Header.RunID,
		"last_tick":       fmt.Sprintf("%d", snap.Header.Tick),
		"seed":            snap.Header.Seed,
		"style":           snap.Header.Style,
		"detail":          fmt.Sprintf("%d", snap.Gen.Detail),
		"simulated_years": fmt.Sprintf("%d", snap.Header.Years),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	if _, err := db.PruneSnapshots(snapshotsKept); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	slog.Info("world state saved",
		"tick", snap.Header.Tick,
		"sim_time", engine.SimTime(snap.Header.Years),
		"bytes", humanize.Bytes(uint64(size)),
	)
	return nil
}

// LoadWorldState returns the latest snapshot for resuming.
func (db *DB) LoadWorldState() (*Snapshot, error) {
	snap, err := db.LatestSnapshot()
	if err != nil {
		return nil, err
	}
	slog.Info("world state loaded",
		"run_id", snap.Header.RunID,
		"tick", snap.Header.Tick,
		"sim_time", engine.SimTime(snap.Header.Years),
	)
	return snap, nil
}
