// Package window runs the bound-tightening optimizer over consecutive time
// windows, feeding each window's schedule into the next one.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"windowopt/internal/extract"
	"windowopt/internal/logging"
	"windowopt/internal/mangle"
	"windowopt/internal/optimize"
	"windowopt/internal/solver"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fragment names the scheduler grounds.
const (
	SubproblemFragment = "subproblem"
	HistoryPrefix      = "solutionTimeWindow"
)

// Config controls the window loop.
type Config struct {
	Windows    int
	MaxTimeout time.Duration
}

// Budget is the time allowance of each window.
func (c Config) Budget() time.Duration {
	if c.Windows <= 0 {
		return c.MaxTimeout
	}
	return c.MaxTimeout / time.Duration(c.Windows)
}

// StatsSource is implemented by solvers that expose statistics.
type StatsSource interface {
	Stats() solver.Stats
}

// Scheduler drives windows 0..W sequentially.
type Scheduler struct {
	solver    solver.Solver
	config    Config
	optConfig optimize.Config
	recorder  optimize.Recorder
}

// New creates a scheduler. rec receives every call outcome in addition to
// the run report and may be nil.
func New(s solver.Solver, cfg Config, optCfg optimize.Config, rec optimize.Recorder) *Scheduler {
	return &Scheduler{
		solver:    s,
		config:    cfg,
		optConfig: optCfg,
		recorder:  rec,
	}
}

// HistoryFragment names the fragment carrying the facts forwarded into window i.
func HistoryFragment(i int) string {
	return fmt.Sprintf("%s%d", HistoryPrefix, i)
}

// Run solves every window and returns the report. On error the report holds
// the windows completed so far.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	if s.config.Windows < 1 {
		return nil, errors.New("at least one window required")
	}
	report := &Report{}
	opt := optimize.New(s.solver, s.optConfig, optimize.Recorders{report, s.recorder})
	budget := s.config.Budget()

	logging.Window("window loop started",
		zap.Int("windows", s.config.Windows),
		zap.Duration("budget", budget))

	var forward extract.ForwardFacts
	for i := 0; i <= s.config.Windows; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		timer := logging.StartTimer(logging.CategoryWindow, fmt.Sprintf("window %d", i))

		s.solver.Cleanup()
		parts, err := s.parts(i, forward)
		if err != nil {
			return report, err
		}
		if err := s.solver.Ground(ctx, parts...); err != nil {
			return report, fmt.Errorf("window %d: ground: %w", i, err)
		}

		res, err := opt.Run(ctx, i, budget)
		if err != nil {
			return report, err
		}
		elapsed := timer.Stop()
		s.logStats(i)
		if i == 0 {
			continue
		}

		ff, _, err := extract.Split(res.Assignment, i)
		if err != nil {
			return report, fmt.Errorf("window %d: %w", i, err)
		}
		report.add(Result{
			Window:   i,
			Bound:    res.Bound,
			Optimal:  res.Optimal,
			Overlaps: res.Overlaps,
			Forward:  ff,
			Attempts: res.Attempts,
			Elapsed:  elapsed,
		})
		forward = ff

		logging.Window("window solved",
			zap.Int("window", i),
			zap.Int64("bound", res.Bound),
			zap.Bool("optimal", res.Optimal),
			zap.Int("attempts", res.Attempts),
			zap.Strings("overlaps", extract.SymbolStrings(res.Overlaps)))
		if ce := logging.Get(logging.CategoryWindow).Check(zapcore.DebugLevel, "facts forwarded"); ce != nil {
			if triples, perr := extract.ParseForwardFacts(ff); perr == nil {
				ce.Write(zap.Int("window", i), zap.Strings("operations", extract.Names(triples)))
			}
		}
	}
	return report, nil
}

// parts lists what window i grounds. Windows after the first also register
// the previous window's schedule as a fragment.
func (s *Scheduler) parts(i int, forward extract.ForwardFacts) ([]solver.Part, error) {
	if i == 0 {
		return []solver.Part{mangle.NewPart(mangle.BaseFragment)}, nil
	}
	parts := []solver.Part{mangle.NewPart(SubproblemFragment, int64(i))}
	if i > 1 {
		name := HistoryFragment(i)
		if err := s.solver.AddNamedFragment(name, nil, string(forward)); err != nil {
			return nil, fmt.Errorf("window %d: register %s: %w", i, name, err)
		}
		parts = append(parts, mangle.NewPart(name))
	}
	return parts, nil
}

func (s *Scheduler) logStats(window int) {
	src, ok := s.solver.(StatsSource)
	if !ok {
		return
	}
	st := src.Stats()
	logging.Solver("solver statistics",
		zap.Int("window", window),
		zap.Int("groundings", st.Groundings),
		zap.Int("solves", st.Solves),
		zap.Int("models", st.Models),
		zap.Int64("nodes", st.Nodes),
		zap.Int("exhausted", st.Exhausted),
		zap.Int("abandoned", st.Abandoned),
		zap.Int("facts", st.Facts))
}
