package world

import "fmt"

// Biome is one of the twelve terrain/climate categories.
type Biome uint8

const (
	BiomeOcean           Biome = iota // Below ocean level
	BiomeTundra                       // Cold, wet
	BiomeGlacier                      // Cold, dry
	BiomeTaiga                        // Cool, wet
	BiomeSteppe                       // Cool, moderate
	BiomeColdDesert                   // Cool, dry
	BiomeDeciduousForest              // Temperate, wet
	BiomeSavanna                      // Temperate, moderate
	BiomeDesert                       // Temperate, dry
	BiomeTropicalForest               // Hot, wet
	BiomeTropicalSavanna              // Hot, moderate
	BiomeHotDesert                    // Hot, dry
)

// BiomeCount is the number of biome categories.
const BiomeCount = 12

// ReferenceOceanLevel is the style-agnostic submersion threshold used by the
// weather and erosion steppers and by in-loop biome classification.
const ReferenceOceanLevel = 0.45

// Classify maps a cell's height, temperature, and moisture to a biome.
// Checks run in order and the first match wins; all thresholds are strict.
func Classify(height, temperature, moisture, oceanLevel float64) Biome {
	if height < oceanLevel {
		return BiomeOcean
	}

	switch {
	case temperature < 0.3:
		if moisture > 0.6 {
			return BiomeTundra
		}
		return BiomeGlacier
	case temperature < 0.5:
		if moisture > 0.7 {
			return BiomeTaiga
		}
		if moisture > 0.4 {
			return BiomeSteppe
		}
		return BiomeColdDesert
	case temperature < 0.7:
		if moisture > 0.7 {
			return BiomeDeciduousForest
		}
		if moisture > 0.4 {
			return BiomeSavanna
		}
		return BiomeDesert
	default:
		if moisture > 0.7 {
			return BiomeTropicalForest
		}
		if moisture > 0.4 {
			return BiomeTropicalSavanna
		}
		return BiomeHotDesert
	}
}

var biomeNames = [BiomeCount]string{
	"Ocean",
	"Tundra",
	"Glacier",
	"Taiga",
	"Steppe",
	"Cold Desert",
	"Deciduous Forest",
	"Savanna",
	"Desert",
	"Tropical Forest",
	"Tropical Savanna",
	"Hot Desert",
}

// String returns a human-readable biome name.
func (b Biome) String() string {
	if int(b) < BiomeCount {
		return biomeNames[b]
	}
	return fmt.Sprintf("Biome(%d)", uint8(b))
}

// BiomeCounts returns a summary of biome distribution keyed by name.
func BiomeCounts(g *Grid) map[string]int {
	counts := make(map[string]int)
	for _, b := range g.Biome {
		counts[b.String()]++
	}
	return counts
}
