// Package logging provides config-driven categorized logging for windowopt.
// Every category is a named child of one root zap logger; a category can be
// switched off through the logging.categories map of the configuration.
// Logs go to stderr so the completion report on stdout stays clean.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config and input loading
	CategoryGround    Category = "ground"    // Fragment registration and grounding
	CategorySolver    Category = "solver"    // Search, externals, solver statistics
	CategoryOptimizer Category = "optimizer" // Bound tightening loop
	CategoryWindow    Category = "window"    // Window scheduling and report
)

// Config mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Config struct {
	Level      string
	Format     string // json or console
	Categories map[string]bool
}

var (
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*zap.Logger)
	mu         sync.RWMutex
)

// Initialize builds the root logger from cfg and installs it.
// The returned logger is the same root, for callers that want to add fields.
func Initialize(cfg Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	switch cfg.Format {
	case "", "json":
	case "console", "text":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetRoot(logger, cfg.Categories)
	return logger, nil
}

// SetRoot installs an already built logger (tests use an observer core).
func SetRoot(logger *zap.Logger, enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
	categories = enabled
	loggers = make(map[Category]*zap.Logger)
}

// With adds fields to the root logger, e.g. a run id.
func With(fields ...zap.Field) {
	mu.Lock()
	defer mu.Unlock()
	root = root.With(fields...)
	loggers = make(map[Category]*zap.Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := zap.NewNop()
	if categoryEnabledLocked(category) {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(msg string, fields ...zap.Field) {
	Get(CategoryBoot).Info(msg, fields...)
}

// Ground logs to the ground category
func Ground(msg string, fields ...zap.Field) {
	Get(CategoryGround).Info(msg, fields...)
}

// GroundDebug logs debug to the ground category
func GroundDebug(msg string, fields ...zap.Field) {
	Get(CategoryGround).Debug(msg, fields...)
}

// Solver logs to the solver category
func Solver(msg string, fields ...zap.Field) {
	Get(CategorySolver).Info(msg, fields...)
}

// SolverDebug logs debug to the solver category
func SolverDebug(msg string, fields ...zap.Field) {
	Get(CategorySolver).Debug(msg, fields...)
}

// Optimizer logs to the optimizer category
func Optimizer(msg string, fields ...zap.Field) {
	Get(CategoryOptimizer).Info(msg, fields...)
}

// OptimizerDebug logs debug to the optimizer category
func OptimizerDebug(msg string, fields ...zap.Field) {
	Get(CategoryOptimizer).Debug(msg, fields...)
}

// Window logs to the window category
func Window(msg string, fields ...zap.Field) {
	Get(CategoryWindow).Info(msg, fields...)
}

// WindowDebug logs debug to the window category
func WindowDebug(msg string, fields ...zap.Field) {
	Get(CategoryWindow).Debug(msg, fields...)
}

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}
