// Package scoring implements the behavioral score fusion engine: four
// per-source extractors, a weighted composite, a priority-tier ladder, and
// the trigger evaluator used for explainability.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Config holds the fusion weights and classification ladder. Weights are a
// design constant and must sum to 1.0; they are configurable only so that
// tests and future recalibration have a single place to look.
type Config struct {
	FelloWeight    float64 `yaml:"fello_weight" mapstructure:"fello_weight"`
	CloudCMAWeight float64 `yaml:"cloudcma_weight" mapstructure:"cloudcma_weight"`
	WillowWeight   float64 `yaml:"willow_weight" mapstructure:"willow_weight"`
	SierraWeight   float64 `yaml:"sierra_weight" mapstructure:"sierra_weight"`

	// Tier thresholds, evaluated top-down (first match wins).
	CriticalAt int `yaml:"critical_at" mapstructure:"critical_at"`
	SuperHotAt int `yaml:"super_hot_at" mapstructure:"super_hot_at"`
	HotAt      int `yaml:"hot_at" mapstructure:"hot_at"`
	WarmAt     int `yaml:"warm_at" mapstructure:"warm_at"`
}

// DefaultConfig returns the canonical fusion configuration:
// Fello 35% + CloudCMA 25% + Willow 25% + Sierra 15%, ladder 90/80/60/40.
func DefaultConfig() Config {
	return Config{
		FelloWeight:    0.35,
		CloudCMAWeight: 0.25,
		WillowWeight:   0.25,
		SierraWeight:   0.15,

		CriticalAt: 90,
		SuperHotAt: 80,
		HotAt:      60,
		WarmAt:     40,
	}
}

// Validate checks that a Config is internally consistent.
func Validate(c Config) error {
	var errs []string

	weights := map[string]float64{
		"fello_weight":    c.FelloWeight,
		"cloudcma_weight": c.CloudCMAWeight,
		"willow_weight":   c.WillowWeight,
		"sierra_weight":   c.SierraWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	sum := c.FelloWeight + c.CloudCMAWeight + c.WillowWeight + c.SierraWeight
	if math.Abs(sum-1.0) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.3f", sum))
	}

	if !(c.CriticalAt > c.SuperHotAt && c.SuperHotAt > c.HotAt && c.HotAt > c.WarmAt) {
		errs = append(errs, "tier thresholds must be strictly descending")
	}
	if c.CriticalAt > 100 || c.WarmAt < 0 {
		errs = append(errs, "tier thresholds must lie within 0-100")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
