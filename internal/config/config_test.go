package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Windows != 3 {
		t.Errorf("expected Windows=3, got %d", cfg.Windows)
	}
	if got := cfg.GetMaxTimeout(); got != 1000*time.Second {
		t.Errorf("expected MaxTimeout=1000s, got %s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if got := cfg.WindowConfig().Budget(); got != 1000*time.Second/3 {
		t.Errorf("expected budget 1000s/3, got %s", got)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv(EnvWindows, "")
	t.Setenv(EnvMaxTimeout, "")
	t.Setenv(EnvLogLevel, "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "windowopt.yaml")

	cfg := DefaultConfig()
	cfg.Windows = 5
	cfg.MaxTimeout = "90s"
	cfg.Optimizer.BoundFragment = "opt"
	cfg.Solver.Set("search.order", "lpt")

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Windows != 5 {
		t.Errorf("expected Windows=5, got %d", loaded.Windows)
	}
	if loaded.GetMaxTimeout() != 90*time.Second {
		t.Errorf("expected MaxTimeout=90s, got %s", loaded.GetMaxTimeout())
	}
	if loaded.OptimizeConfig().BoundFragment != "opt" {
		t.Errorf("expected bound fragment opt, got %q", loaded.OptimizeConfig().BoundFragment)
	}
	if loaded.Solver.Options["search.order"] != "lpt" {
		t.Errorf("expected search.order=lpt, got %v", loaded.Solver.Options)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvWindows, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Windows != 3 {
		t.Errorf("expected defaults, got Windows=%d", cfg.Windows)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvWindows, "")
	path := filepath.Join(t.TempDir(), "windowopt.yaml")
	if err := os.WriteFile(path, []byte("max_timeout: 30\nlogging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Windows != 3 {
		t.Errorf("expected Windows default, got %d", cfg.Windows)
	}
	if cfg.GetMaxTimeout() != 30*time.Second {
		t.Errorf("plain seconds should parse, got %s", cfg.GetMaxTimeout())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Mangle.FactLimit != DefaultMangleConfig().FactLimit {
		t.Errorf("expected default fact limit, got %d", cfg.Mangle.FactLimit)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windowopt.yaml")
	if err := os.WriteFile(path, []byte("windows: [not a number\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero windows", func(c *Config) { c.Windows = 0 }, true},
		{"negative timeout", func(c *Config) { c.MaxTimeout = "-5s" }, true},
		{"zero timeout", func(c *Config) { c.MaxTimeout = "0" }, true},
		{"garbage timeout", func(c *Config) { c.MaxTimeout = "soon" }, true},
		{"bad solver option", func(c *Config) { c.Solver.Set("search.order", "random") }, true},
		{"unknown solver option", func(c *Config) { c.Solver.Set("threads", "4") }, true},
		{"good solver option", func(c *Config) { c.Solver.Set("solve.models", "2") }, false},
		{"negative fact limit", func(c *Config) { c.Mangle.FactLimit = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTimeout(t *testing.T) {
	tests := map[string]time.Duration{
		"1000":   1000 * time.Second,
		"2.5":    2500 * time.Millisecond,
		"1m30s":  90 * time.Second,
		" 10ms ": 10 * time.Millisecond,
	}
	for in, want := range tests {
		got, err := ParseTimeout(in)
		if err != nil {
			t.Errorf("ParseTimeout(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseTimeout(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseTimeout("later"); err == nil {
		t.Error("expected error for non-duration")
	}
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", Categories: map[string]bool{"solver": false}}
	if lc.IsCategoryEnabled("solver") {
		t.Error("solver category should be disabled")
	}
	if !lc.IsCategoryEnabled("window") {
		t.Error("unlisted categories are enabled")
	}
	converted := lc.ToLogging()
	if converted.Level != "debug" || converted.Format != "json" || converted.Categories["solver"] {
		t.Errorf("unexpected logging config %+v", converted)
	}
}

func TestMangleConfig(t *testing.T) {
	mc := MangleConfig{FactLimit: 10, DerivedFactLimit: 20}
	got := mc.ToMangle()
	if got.FactLimit != 10 || got.DerivedFactLimit != 20 {
		t.Errorf("unexpected mangle config %+v", got)
	}
}
