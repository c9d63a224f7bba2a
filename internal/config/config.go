// Package config loads and validates the planner's TOML configuration:
// prioritization weights, confidence thresholds, resilience policy knobs, the
// capacity buffer, and reasoner settings. Every knob has a documented default
// so an empty file (or no file) is a valid configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General    General    `toml:"general"`
	Weights    Weights    `toml:"weights"`
	Confidence Confidence `toml:"confidence"`
	Resilience Resilience `toml:"resilience"`
	Capacity   Capacity   `toml:"capacity"`
	Graph      Graph      `toml:"graph"`
	Reasoner   Reasoner   `toml:"reasoner"`
	History    History    `toml:"history"`
}

type General struct {
	LogLevel string `toml:"log_level"`
}

// Weights are the prioritization factor weights. They must sum to 1.0.
type Weights struct {
	BusinessValue float64 `toml:"business_value"`
	Dependency    float64 `toml:"dependency"`
	Risk          float64 `toml:"risk"`
	EffortFit     float64 `toml:"effort_fit"`
}

// Confidence holds the tier thresholds: scores >= Warning are high tier,
// scores >= Error are medium, anything lower is low and flagged for review.
type Confidence struct {
	WarningThreshold int `toml:"warning_threshold"`
	ErrorThreshold   int `toml:"error_threshold"`
}

// Resilience configures the composed policy around reasoner calls.
type Resilience struct {
	ConsecutiveFailures int      `toml:"consecutive_failures"`
	Cooldown            Duration `toml:"cooldown"`
	MaxRetries          int      `toml:"max_retries"`
	Timeout             Duration `toml:"timeout"`
	RetryDelay          Duration `toml:"retry_delay"`
}

type Capacity struct {
	// BufferPercentage is withheld from the raw capacity for sustainability (0–1).
	BufferPercentage float64 `toml:"buffer_percentage"`
}

type Graph struct {
	// SimilarityThreshold gates implicit dependency inference (0–1).
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

type Reasoner struct {
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

type History struct {
	DBPath string `toml:"db_path"`
}

// Default returns a fully populated configuration with documented defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads a TOML file, applies defaults to unset values, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}

	zero := Weights{}
	if cfg.Weights == zero {
		cfg.Weights = Weights{BusinessValue: 0.4, Dependency: 0.25, Risk: 0.2, EffortFit: 0.15}
	}

	if cfg.Confidence.WarningThreshold == 0 {
		cfg.Confidence.WarningThreshold = 70
	}
	if cfg.Confidence.ErrorThreshold == 0 {
		cfg.Confidence.ErrorThreshold = 50
	}

	if cfg.Resilience.ConsecutiveFailures == 0 {
		cfg.Resilience.ConsecutiveFailures = 5
	}
	if cfg.Resilience.Cooldown.Duration == 0 {
		cfg.Resilience.Cooldown.Duration = 30 * time.Second
	}
	if cfg.Resilience.MaxRetries == 0 {
		cfg.Resilience.MaxRetries = 3
	}
	if cfg.Resilience.Timeout.Duration == 0 {
		cfg.Resilience.Timeout.Duration = 30 * time.Second
	}
	if cfg.Resilience.RetryDelay.Duration == 0 {
		cfg.Resilience.RetryDelay.Duration = 500 * time.Millisecond
	}

	if cfg.Capacity.BufferPercentage == 0 {
		cfg.Capacity.BufferPercentage = 0.2
	}
	if cfg.Graph.SimilarityThreshold == 0 {
		cfg.Graph.SimilarityThreshold = 0.5
	}

	if cfg.Reasoner.Model == "" {
		cfg.Reasoner.Model = "gpt-4o-mini"
	}
	if cfg.Reasoner.Temperature == 0 {
		cfg.Reasoner.Temperature = 0.3
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = "sprintplan.db"
	}
}

// Validate enforces cross-field invariants beyond simple defaults.
func (cfg *Config) Validate() error {
	sum := cfg.Weights.BusinessValue + cfg.Weights.Dependency + cfg.Weights.Risk + cfg.Weights.EffortFit
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	for name, w := range map[string]float64{
		"business_value": cfg.Weights.BusinessValue,
		"dependency":     cfg.Weights.Dependency,
		"risk":           cfg.Weights.Risk,
		"effort_fit":     cfg.Weights.EffortFit,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, w)
		}
	}

	if cfg.Confidence.ErrorThreshold > cfg.Confidence.WarningThreshold {
		return fmt.Errorf("confidence error_threshold (%d) must not exceed warning_threshold (%d)",
			cfg.Confidence.ErrorThreshold, cfg.Confidence.WarningThreshold)
	}
	if cfg.Confidence.WarningThreshold > 100 || cfg.Confidence.ErrorThreshold < 0 {
		return fmt.Errorf("confidence thresholds must lie in [0,100]")
	}

	if cfg.Capacity.BufferPercentage < 0 || cfg.Capacity.BufferPercentage >= 1 {
		return fmt.Errorf("capacity buffer_percentage must lie in [0,1), got %v", cfg.Capacity.BufferPercentage)
	}
	if cfg.Graph.SimilarityThreshold < 0 || cfg.Graph.SimilarityThreshold > 1 {
		return fmt.Errorf("graph similarity_threshold must lie in [0,1], got %v", cfg.Graph.SimilarityThreshold)
	}
	if cfg.Resilience.ConsecutiveFailures < 1 {
		return fmt.Errorf("resilience consecutive_failures must be >= 1")
	}
	if cfg.Resilience.MaxRetries < 1 {
		return fmt.Errorf("resilience max_retries must be >= 1")
	}
	return nil
}
