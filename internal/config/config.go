package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "GAMESYS_CONFIG"

const DefaultPath = "config/tickd.toml"

type Config struct {
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Simulation SimulationConfig `toml:"simulation"`
	Manifest   ManifestConfig   `toml:"manifest"`
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SchedulerConfig struct {
	TickRate           time.Duration `toml:"tick_rate"`
	FixedStep          time.Duration `toml:"fixed_step"`
	MaxFixedSteps      int           `toml:"max_fixed_steps"` // cap per frame; excess time is dropped
	Workers            int           `toml:"workers"`         // 0 = GOMAXPROCS
	FailureLogInterval time.Duration `toml:"failure_log_interval"`
}

type SimulationConfig struct {
	EntityCount int     `toml:"entity_count"`
	Bounds      float64 `toml:"bounds"` // half-extent of the square arena
	Drag        float64 `toml:"drag"`   // velocity damping per second (0.0-1.0)
	MaxSpeed    float64 `toml:"max_speed"`
	Lifetime    int     `toml:"lifetime"` // frames before an entity expires, 0 = never
	Seed        int64   `toml:"seed"`
}

type ManifestConfig struct {
	Path       string `toml:"path"`        // empty = built-in systems only
	ScriptsDir string `toml:"scripts_dir"` // .lua files loaded before the manifest
}

type DatabaseConfig struct {
	DSN               string        `toml:"dsn"` // empty = journal disabled
	MaxOpenConns      int           `toml:"max_open_conns"`
	MaxIdleConns      int           `toml:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `toml:"conn_max_lifetime"`
	JournalFlushTicks int           `toml:"journal_flush_ticks"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config path from the environment, or DefaultPath.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config { return defaults() }

func (c *Config) validate() error {
	s := c.Scheduler
	switch {
	case s.TickRate <= 0:
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", s.TickRate)
	case s.FixedStep <= 0:
		return fmt.Errorf("scheduler.fixed_step must be positive, got %s", s.FixedStep)
	case s.MaxFixedSteps < 1:
		return fmt.Errorf("scheduler.max_fixed_steps must be at least 1, got %d", s.MaxFixedSteps)
	case s.Workers < 0:
		return fmt.Errorf("scheduler.workers must not be negative, got %d", s.Workers)
	case c.Simulation.Drag < 0 || c.Simulation.Drag > 1:
		return fmt.Errorf("simulation.drag must be within [0,1], got %g", c.Simulation.Drag)
	case c.Simulation.Bounds <= 0:
		return fmt.Errorf("simulation.bounds must be positive, got %g", c.Simulation.Bounds)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TickRate:           50 * time.Millisecond,
			FixedStep:          20 * time.Millisecond,
			MaxFixedSteps:      5,
			Workers:            0,
			FailureLogInterval: 5 * time.Second,
		},
		Simulation: SimulationConfig{
			EntityCount: 256,
			Bounds:      100,
			Drag:        0.1,
			MaxSpeed:    20,
			Lifetime:    600,
			Seed:        1,
		},
		Manifest: ManifestConfig{
			ScriptsDir: "scripts",
		},
		Database: DatabaseConfig{
			MaxOpenConns:      4,
			MaxIdleConns:      1,
			ConnMaxLifetime:   30 * time.Minute,
			JournalFlushTicks: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
