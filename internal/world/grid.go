// Package world provides the planet grid, biome classification, planet styles,
// and the terrain synthesizer that builds a grid from a seed.
package world

import (
	"fmt"
	"slices"
)

// FieldKind identifies one per-cell layer of the grid.
type FieldKind uint8

const (
	FieldHeight FieldKind = iota
	FieldTemperature
	FieldMoisture
	FieldWindX
	FieldWindY
	FieldClouds
	FieldPrecipitation
	FieldBiome
	FieldPlates
)

// ScalarFields lists the float layers. These are the fields normalized after synthesis.
var ScalarFields = []FieldKind{
	FieldHeight,
	FieldTemperature,
	FieldMoisture,
	FieldWindX,
	FieldWindY,
	FieldClouds,
	FieldPrecipitation,
}

var fieldNames = [...]string{
	FieldHeight:        "height",
	FieldTemperature:   "temperature",
	FieldMoisture:      "moisture",
	FieldWindX:         "windX",
	FieldWindY:         "windY",
	FieldClouds:        "clouds",
	FieldPrecipitation: "precipitation",
	FieldBiome:         "biome",
	FieldPlates:        "plates",
}

// String returns the field's wire name.
func (k FieldKind) String() string {
	if int(k) < len(fieldNames) {
		return fieldNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", uint8(k))
}

// ParseFieldKind resolves a wire name ("height", "windX", ...) to a FieldKind.
// "wind" is accepted as an alias for windX.
func ParseFieldKind(name string) (FieldKind, error) {
	for i, n := range fieldNames {
		if n == name {
			return FieldKind(i), nil
		}
	}
	if name == "wind" {
		return FieldWindX, nil
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// Grid is one planet snapshot: an N×N set of per-cell fields stored row-major,
// origin top-left, index y*N + x.
type Grid struct {
	Size int `json:"size"`

	Height        []float64 `json:"-"`
	Temperature   []float64 `json:"-"`
	Moisture      []float64 `json:"-"`
	WindX         []float64 `json:"-"`
	WindY         []float64 `json:"-"`
	Clouds        []float64 `json:"-"`
	Precipitation []float64 `json:"-"`

	// Biome is derived by Reclassify and may be stale between a stepper
	// mutation and the next classification.
	Biome []Biome `json:"-"`

	// PlateID is empty until plates are assigned; once set it never changes.
	PlateID []int `json:"-"`

	// Total elapsed world-years, advanced by the driving loop.
	SimulatedYears int64 `json:"simulated_years"`
}

// NewGrid allocates a zeroed grid of side size with plates unassigned.
func NewGrid(size int) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: grid size %d", ErrInvalidSize, size)
	}
	n := size * size
	return &Grid{
		Size:          size,
		Height:        make([]float64, n),
		Temperature:   make([]float64, n),
		Moisture:      make([]float64, n),
		WindX:         make([]float64, n),
		WindY:         make([]float64, n),
		Clouds:        make([]float64, n),
		Precipitation: make([]float64, n),
		Biome:         make([]Biome, n),
	}, nil
}

// Index returns the linear index of cell (x, y).
func (g *Grid) Index(x, y int) int { return y*g.Size + x }

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Size && y < g.Size
}

// Cells returns N*N.
func (g *Grid) Cells() int { return g.Size * g.Size }

// Field returns the backing slice of a scalar field, or nil for biome and plates.
func (g *Grid) Field(k FieldKind) []float64 {
	switch k {
	case FieldHeight:
		return g.Height
	case FieldTemperature:
		return g.Temperature
	case FieldMoisture:
		return g.Moisture
	case FieldWindX:
		return g.WindX
	case FieldWindY:
		return g.WindY
	case FieldClouds:
		return g.Clouds
	case FieldPrecipitation:
		return g.Precipitation
	}
	return nil
}

// Value returns the value of any field at linear index i as a float64.
// Biome and plate ids are returned as their integer values.
func (g *Grid) Value(k FieldKind, i int) float64 {
	switch k {
	case FieldBiome:
		return float64(g.Biome[i])
	case FieldPlates:
		if !g.HasPlates() {
			return 0
		}
		return float64(g.PlateID[i])
	}
	return g.Field(k)[i]
}

// HasPlates reports whether plate ids have been assigned.
func (g *Grid) HasPlates() bool { return len(g.PlateID) > 0 }

// Validate checks that every field has N*N cells. PlateID may be empty.
func (g *Grid) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrShapeMismatch)
	}
	if g.Size <= 0 {
		return fmt.Errorf("%w: grid size %d", ErrInvalidSize, g.Size)
	}
	n := g.Cells()
	for _, k := range ScalarFields {
		if len(g.Field(k)) != n {
			return fmt.Errorf("%w: field %s has %d cells, want %d", ErrShapeMismatch, k, len(g.Field(k)), n)
		}
	}
	if len(g.Biome) != n {
		return fmt.Errorf("%w: field biome has %d cells, want %d", ErrShapeMismatch, len(g.Biome), n)
	}
	if len(g.PlateID) != 0 && len(g.PlateID) != n {
		return fmt.Errorf("%w: field plates has %d cells, want %d", ErrShapeMismatch, len(g.PlateID), n)
	}
	return nil
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return &Grid{
		Size:           g.Size,
		Height:         slices.Clone(g.Height),
		Temperature:    slices.Clone(g.Temperature),
		Moisture:       slices.Clone(g.Moisture),
		WindX:          slices.Clone(g.WindX),
		WindY:          slices.Clone(g.WindY),
		Clouds:         slices.Clone(g.Clouds),
		Precipitation:  slices.Clone(g.Precipitation),
		Biome:          slices.Clone(g.Biome),
		PlateID:        slices.Clone(g.PlateID),
		SimulatedYears: g.SimulatedYears,
	}
}

// Reclassify recomputes every cell's biome from its current height,
// temperature, and moisture.
func (g *Grid) Reclassify(oceanLevel float64) {
	for i := range g.Biome {
		g.Biome[i] = Classify(g.Height[i], g.Temperature[i], g.Moisture[i], oceanLevel)
	}
}

// Cell is a read-only view of one grid cell.
type Cell struct {
	X             int     `json:"x"`
	Y             int     `json:"y"`
	Height        float64 `json:"height"`
	Temperature   float64 `json:"temperature"`
	Moisture      float64 `json:"moisture"`
	WindX         float64 `json:"wind_x"`
	WindY         float64 `json:"wind_y"`
	Clouds        float64 `json:"clouds"`
	Precipitation float64 `json:"precipitation"`
	Biome         Biome   `json:"biome"`
	BiomeName     string  `json:"biome_name"`
	PlateID       int     `json:"plate_id"`
}

// At returns the cell at (x, y). The caller must check InBounds.
func (g *Grid) At(x, y int) Cell {
	i := g.Index(x, y)
	c := Cell{
		X:             x,
		Y:             y,
		Height:        g.Height[i],
		Temperature:   g.Temperature[i],
		Moisture:      g.Moisture[i],
		WindX:         g.WindX[i],
		WindY:         g.WindY[i],
		Clouds:        g.Clouds[i],
		Precipitation: g.Precipitation[i],
		Biome:         g.Biome[i],
		BiomeName:     g.Biome[i].String(),
		PlateID:       -1,
	}
	if g.HasPlates() {
		c.PlateID = g.PlateID[i]
	}
	return c
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(size=%d, cells=%d, years=%d)", g.Size, g.Cells(), g.SimulatedYears)
}
