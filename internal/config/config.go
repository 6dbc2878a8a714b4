package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulator    SimulatorConfig    `yaml:"simulator"`
	Session      SessionConfig      `yaml:"session"`
	Personalizer PersonalizerConfig `yaml:"personalizer"`
}

type SimulatorConfig struct {
	Episodes    int    `yaml:"episodes"`
	Policy      string `yaml:"policy"` // "coach" or "random"
	Seed        int64  `yaml:"seed"`
	DatabaseDir string `yaml:"database_dir"` // empty disables episode recording
}

type SessionConfig struct {
	MaxReps                int     `yaml:"max_reps"`
	FatigueQuitThreshold   float64 `yaml:"fatigue_quit_threshold"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"`
}

type PersonalizerConfig struct {
	GlobalMaxROMDeg  float64 `yaml:"global_max_rom_deg"`
	BaseIncrementDeg float64 `yaml:"base_increment_deg"`
	MaxExtraDeg      float64 `yaml:"max_extra_deg"`
	EMAAlpha         float64 `yaml:"ema_alpha"`
	BaselineReps     int     `yaml:"baseline_reps"`
}

// Default returns the configuration used when no config file is given.
// global_max_rom_deg normally comes from training-data statistics; 150° is
// the maximum ROM in the dataset the shipped models were trained on.
func Default() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			Episodes: 10,
			Policy:   "coach",
		},
		Personalizer: PersonalizerConfig{
			GlobalMaxROMDeg: 150.0,
		},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix REHABCOACH_ and underscore-separated
// paths:
//
//	REHABCOACH_SIM_EPISODES, REHABCOACH_SIM_POLICY, REHABCOACH_SIM_SEED,
//	REHABCOACH_SIM_DB_DIR, REHABCOACH_SESSION_MAX_REPS,
//	REHABCOACH_PERSONALIZER_GLOBAL_MAX_ROM_DEG
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REHABCOACH_SIM_EPISODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulator.Episodes = n
		}
	}
	if v := os.Getenv("REHABCOACH_SIM_POLICY"); v != "" {
		cfg.Simulator.Policy = v
	}
	if v := os.Getenv("REHABCOACH_SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulator.Seed = n
		}
	}
	if v := os.Getenv("REHABCOACH_SIM_DB_DIR"); v != "" {
		cfg.Simulator.DatabaseDir = v
	}
	if v := os.Getenv("REHABCOACH_SESSION_MAX_REPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxReps = n
		}
	}
	if v := os.Getenv("REHABCOACH_PERSONALIZER_GLOBAL_MAX_ROM_DEG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Personalizer.GlobalMaxROMDeg = f
		}
	}
}

// Validate checks cross-field constraints. Zero values that downstream
// constructors default are allowed here.
func (c *Config) Validate() error {
	if c.Simulator.Episodes < 1 {
		return fmt.Errorf("simulator.episodes must be at least 1")
	}
	if c.Simulator.Policy != "coach" && c.Simulator.Policy != "random" {
		return fmt.Errorf("simulator.policy must be %q or %q", "coach", "random")
	}
	if c.Personalizer.GlobalMaxROMDeg <= 0 {
		return fmt.Errorf("personalizer.global_max_rom_deg is required")
	}
	if c.Personalizer.EMAAlpha < 0 || c.Personalizer.EMAAlpha > 1 {
		return fmt.Errorf("personalizer.ema_alpha must be in (0, 1]")
	}
	if c.Personalizer.BaselineReps < 0 {
		return fmt.Errorf("personalizer.baseline_reps must be at least 1")
	}
	if c.Session.MaxReps < 0 {
		return fmt.Errorf("session.max_reps must not be negative")
	}
	return nil
}
