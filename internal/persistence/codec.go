package persistence

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// SnapshotVersion is bumped whenever the gob layout changes incompatibly.
const SnapshotVersion = 1

// Header is written as a JSON line ahead of the gob body so tools can inspect
// a snapshot without decoding the grid.
type Header struct {
	Version int       `json:"version"`
	RunID   string    `json:"run_id"`
	Tick    uint64    `json:"tick"`
	Years   int64     `json:"years"`
	Size    int       `json:"size"`
	Seed    string    `json:"seed"`
	Style   string    `json:"style"`
	SavedAt time.Time `json:"saved_at"`
}

// Snapshot is one saved world: its generation parameters and full grid.
type Snapshot struct {
	Header Header
	Gen    world.GenConfig
	Grid   *world.Grid
}

// Apply installs the snapshot into sim under its saved run ID and tick. styles
// replaces the saved preset table, so the style must exist in the running
// configuration.
func (snap *Snapshot) Apply(sim *engine.Simulation, styles map[string]world.PlanetStyle) error {
	runID, err := uuid.Parse(snap.Header.RunID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", snap.Header.RunID, err)
	}
	gen := snap.Gen
	gen.Styles = styles
	return sim.Restore(snap.Grid, gen, runID, snap.Header.Tick)
}

// Capture builds a snapshot of the simulation's published state.
func Capture(sim *engine.Simulation) *Snapshot {
	st := sim.State()
	return &Snapshot{
		Header: Header{
			Version: SnapshotVersion,
			RunID:   st.RunID.String(),
			Tick:    st.Tick,
			Years:   st.Grid.SimulatedYears,
			Size:    st.Grid.Size,
			Seed:    st.Gen.Seed,
			Style:   st.Gen.Style,
			SavedAt: time.Now().UTC(),
		},
		Gen:  st.Gen,
		Grid: st.Grid,
	}
}

// EncodeSnapshot writes the zstd-compressed header line and gob body to w.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var snap Snapshot
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, SnapshotVersion)
	}
	if err := snap.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot grid: %w", err)
	}
	return &snap, nil
}

// WriteSnapshotFile writes snap to path, creating parent directories.
func WriteSnapshotFile(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := EncodeSnapshot(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSnapshotFile loads a snapshot file.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSnapshot(f)
}

// ReadSnapshotHeader returns only the header line of a snapshot file.
func ReadSnapshotHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return h, fmt.Errorf("parse header: %w", err)
	}
	return h, nil
}

// SnapshotFileName returns the conventional file name for a snapshot.
func SnapshotFileName(h Header) string {
	return fmt.Sprintf("%s-%010d%s", h.RunID, h.Tick, snapshotFileSuffix)
}

const snapshotFileSuffix = ".snap.zst"

// SnapshotFile describes a snapshot file on disk by its header.
type SnapshotFile struct {
	Name string `json:"name"`
	Header
}

// ListSnapshotFiles reads the header of every snapshot file in dir, newest
// first. A missing directory yields an empty list. Unreadable files are
// skipped.
func ListSnapshotFiles(dir string) ([]SnapshotFile, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []SnapshotFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotFileSuffix) {
			continue
		}
		h, err := ReadSnapshotHeader(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable snapshot file", "name", e.Name(), "error", err)
			continue
		}
		files = append(files, SnapshotFile{Name: e.Name(), Header: h})
	}
	slices.SortFunc(files, func(a, b SnapshotFile) int {
		return b.SavedAt.Compare(a.SavedAt)
	})
	return files, nil
}
