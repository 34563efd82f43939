// Package config loads windowopt settings from YAML with environment and
// flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"windowopt/internal/optimize"
	"windowopt/internal/window"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "windowopt.yaml"

// Environment variables that override file values.
const (
	EnvWindows    = "WINDOWOPT_WINDOWS"
	EnvMaxTimeout = "WINDOWOPT_MAX_TIMEOUT"
	EnvLogLevel   = "WINDOWOPT_LOG_LEVEL"
)

// Config holds all windowopt configuration.
type Config struct {
	// Number of time windows after the base pass
	Windows int `yaml:"windows"`

	// Total wall-clock allowance, split evenly across windows.
	// Go duration ("1000s", "16m40s") or plain seconds ("1000").
	MaxTimeout string `yaml:"max_timeout"`

	Solver    SolverConfig    `yaml:"solver"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Mangle    MangleConfig    `yaml:"mangle"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// OptimizerConfig configures bound tightening.
type OptimizerConfig struct {
	// Fragment grounded with bound-1 before each tightening step, empty = none
	BoundFragment string `yaml:"bound_fragment"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Windows:    3,
		MaxTimeout: "1000s",
		Solver: SolverConfig{
			Options: map[string]string{},
		},
		Mangle: DefaultMangleConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvWindows); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvWindows, v, err)
		}
		c.Windows = n
	}
	if v := os.Getenv(EnvMaxTimeout); v != "" {
		c.MaxTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
	return nil
}

// ParseTimeout accepts a Go duration or a number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// GetMaxTimeout returns the total timeout as a duration.
func (c *Config) GetMaxTimeout() time.Duration {
	d, err := ParseTimeout(c.MaxTimeout)
	if err != nil || d <= 0 {
		return 1000 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Windows < 1 {
		return fmt.Errorf("windows must be >= 1, got %d", c.Windows)
	}
	d, err := ParseTimeout(c.MaxTimeout)
	if err != nil {
		return fmt.Errorf("max_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("max_timeout must be positive, got %s", c.MaxTimeout)
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Mangle.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// WindowConfig returns the scheduler settings.
func (c *Config) WindowConfig() window.Config {
	return window.Config{
		Windows:    c.Windows,
		MaxTimeout: c.GetMaxTimeout(),
	}
}

// OptimizeConfig returns the optimizer settings.
func (c *Config) OptimizeConfig() optimize.Config {
	return optimize.Config{BoundFragment: strings.TrimSpace(c.Optimizer.BoundFragment)}
}
