package config

import (
	"fmt"

	"windowopt/internal/solver"
)

// SolverConfig carries options handed to the solver before grounding.
type SolverConfig struct {
	Options map[string]string `yaml:"options"` // e.g. search.order: lpt
}

// Set records one option, overriding the file value.
func (c *SolverConfig) Set(key, value string) {
	if c.Options == nil {
		c.Options = make(map[string]string)
	}
	c.Options[key] = value
}

// Validate checks every option against the solver's option parser.
func (c *SolverConfig) Validate() error {
	opts := solver.DefaultOptions()
	for k, v := range c.Options {
		if err := opts.Set(k, v); err != nil {
			return fmt.Errorf("solver.options: %w", err)
		}
	}
	return nil
}
