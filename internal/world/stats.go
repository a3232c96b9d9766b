package world

import "math"

// Stats holds whole-grid aggregates for reporting.
type Stats struct {
	Size               int            `json:"size" db:"size"`
	LandFraction       float64        `json:"land_fraction" db:"land_fraction"`
	MeanHeight         float64        `json:"mean_height" db:"mean_height"`
	MeanTemperature    float64        `json:"mean_temperature" db:"mean_temperature"`
	MeanMoisture       float64        `json:"mean_moisture" db:"mean_moisture"`
	CloudCover         float64        `json:"cloud_cover" db:"cloud_cover"`
	TotalPrecipitation float64        `json:"total_precipitation" db:"total_precipitation"`
	Biomes             map[string]int `json:"biomes" db:"-"`
	Center             Readout        `json:"center" db:"-"`
}

// Summarize computes aggregates over the grid. Land is height >= oceanLevel.
func Summarize(g *Grid, style PlanetStyle) Stats {
	st := Stats{Size: g.Size, Biomes: BiomeCounts(g)}
	n := g.Cells()
	if n == 0 {
		return st
	}

	land := 0
	for i := 0; i < n; i++ {
		if g.Height[i] >= style.OceanLevel {
			land++
		}
		st.MeanHeight += g.Height[i]
		st.MeanTemperature += g.Temperature[i]
		st.MeanMoisture += g.Moisture[i]
		st.CloudCover += g.Clouds[i]
		st.TotalPrecipitation += g.Precipitation[i]
	}

	fn := float64(n)
	st.LandFraction = float64(land) / fn
	st.MeanHeight /= fn
	st.MeanTemperature /= fn
	st.MeanMoisture /= fn
	st.CloudCover /= fn
	st.Center = CellReadout(g, g.Size/2, g.Size/2, style)
	return st
}

// Readout is a cell expressed in display units.
type Readout struct {
	ElevationM   float64 `json:"elevation_m"`   // (height-0.5) * 10000
	TemperatureC float64 `json:"temperature_c"` // mapped through the style's temperature range
	MoisturePct  float64 `json:"moisture_pct"`  // mapped through the style's moisture range
	CloudsPct    float64 `json:"clouds_pct"`
	WindSpeed    float64 `json:"wind_speed"` // |wind| * 20
}

// CellReadout converts the cell at (x, y) to display units.
func CellReadout(g *Grid, x, y int, style PlanetStyle) Readout {
	i := g.Index(x, y)
	return Readout{
		ElevationM:   math.Round((g.Height[i] - 0.5) * 10000),
		TemperatureC: lerp(style.TemperatureRange, g.Temperature[i]),
		MoisturePct:  lerp(style.MoistureRange, g.Moisture[i]),
		CloudsPct:    math.Round(g.Clouds[i] * 100),
		WindSpeed:    math.Hypot(g.WindX[i], g.WindY[i]) * 20,
	}
}

func lerp(r [2]float64, t float64) float64 {
	return r[0] + (r[1]-r[0])*t
}
