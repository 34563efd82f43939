package config

import (
	"fmt"

	"windowopt/internal/mangle"
)

// MangleConfig configures grounding limits.
type MangleConfig struct {
	FactLimit        int `yaml:"fact_limit"`         // Max facts after evaluation
	DerivedFactLimit int `yaml:"derived_fact_limit"` // Mangle gas limit
}

// DefaultMangleConfig mirrors the grounder defaults.
func DefaultMangleConfig() MangleConfig {
	d := mangle.DefaultConfig()
	return MangleConfig{
		FactLimit:        d.FactLimit,
		DerivedFactLimit: d.DerivedFactLimit,
	}
}

// Validate rejects negative limits. Zero disables a limit.
func (c *MangleConfig) Validate() error {
	if c.FactLimit < 0 {
		return fmt.Errorf("mangle.fact_limit must be >= 0")
	}
	if c.DerivedFactLimit < 0 {
		return fmt.Errorf("mangle.derived_fact_limit must be >= 0")
	}
	return nil
}

// ToMangle converts to the grounder configuration.
func (c *MangleConfig) ToMangle() mangle.Config {
	return mangle.Config{
		FactLimit:        c.FactLimit,
		DerivedFactLimit: c.DerivedFactLimit,
	}
}
