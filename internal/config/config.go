// Package config loads the planetsim configuration from YAML with environment
// overrides and converts it into the generation and stepper parameters.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/world"
)

// Config is the full on-disk configuration.
type Config struct {
	World     World                        `yaml:"world"`
	Processes engine.Processes             `yaml:"processes"`
	Tectonics Tectonics                    `yaml:"tectonics"`
	Climate   Climate                      `yaml:"climate"`
	Erosion   Erosion                      `yaml:"erosion"`
	Engine    Engine                       `yaml:"engine"`
	Server    Server                       `yaml:"server"`
	Storage   Storage                      `yaml:"storage"`
	Styles    map[string]world.PlanetStyle `yaml:"styles"`
	LogLevel  string                       `yaml:"log_level"`
}

type World struct {
	Seed       string `yaml:"seed"`
	Style      string `yaml:"style"`
	Detail     int    `yaml:"detail"`
	BaseSize   int    `yaml:"base_size"`
	DetailStep int    `yaml:"detail_step"`
}

type Tectonics struct {
	NumPlates  int     `yaml:"num_plates"`
	PlateSpeed float64 `yaml:"plate_speed"`
}

type Climate struct {
	SeasonCycle          float64 `yaml:"season_cycle"`
	TemperatureVariation float64 `yaml:"temperature_variation"`
}

type Erosion struct {
	Rate       float64 `yaml:"rate"`
	Deposition float64 `yaml:"deposition_rate"`
}

type Engine struct {
	YearsPerTick     int64         `yaml:"years_per_tick"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	ReportEveryTicks uint64        `yaml:"report_every_ticks"`
	SaveEveryTicks   uint64        `yaml:"save_every_ticks"`
	// RNGSeed seeds the stepper RNG. 0 draws a seed from crypto/rand.
	RNGSeed uint64 `yaml:"rng_seed"`
}

type Server struct {
	Port        int      `yaml:"port"`
	AdminKey    string   `yaml:"admin_key"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Storage struct {
	DBPath      string `yaml:"db_path"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	gen := world.DefaultGenConfig()
	p := engine.DefaultParams()
	return Config{
		World: World{
			Seed:       gen.Seed,
			Style:      gen.Style,
			Detail:     gen.Detail,
			BaseSize:   gen.BaseSize,
			DetailStep: gen.DetailStep,
		},
		Processes: engine.AllProcesses(),
		Tectonics: Tectonics{NumPlates: p.Tectonics.NumPlates, PlateSpeed: p.Tectonics.PlateSpeed},
		Climate: Climate{
			SeasonCycle:          p.Climate.SeasonCycle,
			TemperatureVariation: p.Climate.TemperatureVariation,
		},
		Erosion: Erosion{Rate: p.Erosion.Rate, Deposition: p.Erosion.DepositionRate},
		Engine: Engine{
			YearsPerTick:     p.YearsPerTick,
			TickInterval:     100 * time.Millisecond,
			ReportEveryTicks: 100,
			SaveEveryTicks:   500,
		},
		Server: Server{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Storage: Storage{
			DBPath:      "data/planetsim.db",
			SnapshotDir: "data/snapshots",
		},
		Styles:   world.DefaultStyles(),
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PLANETSIM_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PLANETSIM_SEED"); v != "" {
		c.World.Seed = v
	}
	if v := getenv("PLANETSIM_STYLE"); v != "" {
		c.World.Style = v
	}
	if v := getenv("PLANETSIM_DETAIL"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANETSIM_DETAIL: %w", err)
		}
		c.World.Detail = d
	}
	if v := getenv("PLANETSIM_DB"); v != "" {
		c.Storage.DBPath = v
	}
	if v := getenv("PLANETSIM_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANETSIM_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("PLANETSIM_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	return nil
}

// Validate checks ranges and that the configured style exists.
func (c Config) Validate() error {
	if err := c.GenConfig().Validate(); err != nil {
		return err
	}
	if _, err := world.LookupStyle(c.Styles, c.World.Style); err != nil {
		return err
	}
	if c.Tectonics.PlateSpeed < 0 {
		return fmt.Errorf("%w: plate speed %g", world.ErrInvalidConfig, c.Tectonics.PlateSpeed)
	}
	if c.Climate.SeasonCycle <= 0 {
		return fmt.Errorf("%w: season cycle %g", world.ErrInvalidConfig, c.Climate.SeasonCycle)
	}
	if c.Erosion.Rate < 0 || c.Erosion.Deposition < 0 {
		return fmt.Errorf("%w: erosion rate %g deposition %g", world.ErrInvalidConfig, c.Erosion.Rate, c.Erosion.Deposition)
	}
	if c.Engine.YearsPerTick < 0 {
		return fmt.Errorf("%w: years per tick %d", world.ErrInvalidConfig, c.Engine.YearsPerTick)
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %s", world.ErrInvalidConfig, c.Engine.TickInterval)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d", world.ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// GenConfig returns the world generation parameters.
func (c Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Seed:       c.World.Seed,
		Detail:     c.World.Detail,
		Style:      c.World.Style,
		BaseSize:   c.World.BaseSize,
		DetailStep: c.World.DetailStep,
		NumPlates:  c.Tectonics.NumPlates,
		Styles:     c.Styles,
	}
}

// SimParams returns the stepper parameters.
func (c Config) SimParams() engine.Params {
	return engine.Params{
		Tectonics: engine.TectonicsParams{
			NumPlates:  c.Tectonics.NumPlates,
			PlateSpeed: c.Tectonics.PlateSpeed,
		},
		Climate: engine.ClimateParams{
			SeasonCycle:          c.Climate.SeasonCycle,
			TemperatureVariation: c.Climate.TemperatureVariation,
		},
		Erosion: engine.ErosionParams{
			Rate:           c.Erosion.Rate,
			DepositionRate: c.Erosion.Deposition,
		},
		YearsPerTick: c.Engine.YearsPerTick,
	}
}
