// Package optimize tightens the objective bound of one time window by
// repeatedly solving under a shrinking bound until the search is exhausted
// or the window's time budget runs out.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"windowopt/internal/extract"
	"windowopt/internal/logging"
	"windowopt/internal/solver"
	"windowopt/internal/types"

	"go.uber.org/zap"
)

// ErrNoFeasibleSolution is returned when a window produced no model at all.
var ErrNoFeasibleSolution = errors.New("no feasible solution")

// Outcome classifies how one solve call ended.
type Outcome int

const (
	// OutcomeImproved: the call produced a model.
	OutcomeImproved Outcome = iota
	// OutcomeInterrupted: the wait hit the deadline.
	OutcomeInterrupted
	// OutcomeExhausted: the search finished without another model.
	OutcomeExhausted
	// OutcomeBudget: the budget was spent before a call could be issued.
	OutcomeBudget
	// OutcomeFailed: the solver reported an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImproved:
		return "improved"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeBudget:
		return "budget"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder receives one observation per solve outcome.
type Recorder interface {
	ObserveCall(window int, outcome Outcome, elapsed time.Duration)
}

// Recorders fans observations out to several recorders.
type Recorders []Recorder

// ObserveCall implements Recorder.
func (rs Recorders) ObserveCall(window int, outcome Outcome, elapsed time.Duration) {
	for _, r := range rs {
		if r != nil {
			r.ObserveCall(window, outcome, elapsed)
		}
	}
}

// Config tunes the optimizer.
type Config struct {
	// BoundFragment, when set, names a fragment with one parameter that is
	// grounded with bound-1 before the matching bound external is asserted.
	BoundFragment string `yaml:"bound_fragment"`
}

// Result is the outcome of one window.
type Result struct {
	Window     int
	Bound      int64
	Assignment solver.Assignment
	Overlaps   []types.Fact
	Found      bool
	Optimal    bool // the search was exhausted under the last bound
	Attempts   int
	Elapsed    time.Duration
}

// Optimizer drives a Solver through the bound-tightening loop.
type Optimizer struct {
	solver   solver.Solver
	config   Config
	recorder Recorder
	now      func() time.Time
}

// New creates an optimizer. rec may be nil.
func New(s solver.Solver, cfg Config, rec Recorder) *Optimizer {
	return &Optimizer{
		solver:   s,
		config:   cfg,
		recorder: rec,
		now:      time.Now,
	}
}

// resultCell is written by the solve goroutine and read after the handle
// is closed.
type resultCell struct {
	mu    sync.Mutex
	model *solver.Model
}

func (c *resultCell) set(m *solver.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = m
}

func (c *resultCell) take() *solver.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.model
	c.model = nil
	return m
}

func (o *Optimizer) observe(window int, outcome Outcome, elapsed time.Duration) {
	if o.recorder != nil {
		o.recorder.ObserveCall(window, outcome, elapsed)
	}
}

// Run optimizes one window within budget. Window 0 stops at the first model.
// The boundary fact asserted by Run is released before it returns.
func (o *Optimizer) Run(ctx context.Context, window int, budget time.Duration) (res Result, err error) {
	res = Result{Window: window}
	start := o.now()
	var (
		used time.Duration
		live *types.Fact
		cell resultCell
	)
	defer func() {
		res.Elapsed = o.now().Sub(start)
		if live == nil {
			return
		}
		if rerr := o.solver.ReleaseExternal(*live); rerr != nil && err == nil {
			err = fmt.Errorf("release %s: %w", live, rerr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if used >= budget {
			o.observe(window, OutcomeBudget, 0)
			logging.OptimizerDebug("budget spent", zap.Int("window", window), zap.Duration("used", used))
			break
		}

		tic := o.now()
		h, err := o.solver.SolveAsync(ctx, cell.set)
		if err != nil {
			return res, fmt.Errorf("window %d: start solve: %w", window, err)
		}
		res.Attempts++
		h.Resume()
		found := h.WaitUntil(tic.Add(budget - used))
		var (
			model    *solver.Model
			solveErr error
		)
		if found {
			model = h.Model()
			solveErr = h.Err()
		}
		if err := h.Close(); err != nil {
			return res, fmt.Errorf("window %d: close solve: %w", window, err)
		}
		elapsed := o.now().Sub(tic)

		// A model from an abandoned call still counts if it is better.
		improved, err := o.adopt(&res, cell.take())
		if err != nil {
			return res, err
		}

		switch {
		case !found:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			o.observe(window, OutcomeInterrupted, elapsed)
			logging.OptimizerDebug("solve interrupted",
				zap.Int("window", window),
				zap.Bool("late_model", improved),
				zap.Duration("elapsed", elapsed))
		case solveErr != nil:
			o.observe(window, OutcomeFailed, elapsed)
			return res, fmt.Errorf("window %d: %w", window, solveErr)
		case model == nil:
			o.observe(window, OutcomeExhausted, elapsed)
			res.Optimal = res.Found
			if res.Found {
				logging.Optimizer(fmt.Sprintf("Optimum for time window %d", window),
					zap.Int("window", window),
					zap.Int64("bound", res.Bound))
			}
		default:
			o.observe(window, OutcomeImproved, elapsed)
			logging.OptimizerDebug("model found",
				zap.Int("window", window),
				zap.Int64("bound", res.Bound),
				zap.Duration("elapsed", elapsed))
			if window == 0 {
				break
			}
			used += elapsed
			if live, err = o.tighten(ctx, live, res.Bound-1); err != nil {
				return res, fmt.Errorf("window %d: %w", window, err)
			}
			continue
		}
		break
	}

	if !res.Found {
		return res, fmt.Errorf("window %d: %w", window, ErrNoFeasibleSolution)
	}
	return res, nil
}

// adopt takes m into res when it beats the recorded bound.
func (o *Optimizer) adopt(res *Result, m *solver.Model) (bool, error) {
	if m == nil {
		return false, nil
	}
	if res.Window == 0 {
		if res.Found {
			return false, nil
		}
		res.Found = true
		res.Assignment = m.Assignment.Clone()
		return true, nil
	}
	bound, ok := m.Assignment.Lookup(solver.BoundName)
	if !ok {
		return false, fmt.Errorf("window %d: %w", res.Window, extract.ErrMissingBound)
	}
	if res.Found && bound >= res.Bound {
		return false, nil
	}
	res.Found = true
	res.Bound = bound
	res.Assignment = m.Assignment.Clone()
	res.Overlaps = extract.OverlapMarkers(m.Symbols)
	return true, nil
}

// tighten replaces the live boundary fact with bound(next). The old fact is
// released first so two bounds are never live together.
func (o *Optimizer) tighten(ctx context.Context, live *types.Fact, next int64) (*types.Fact, error) {
	if live != nil {
		if err := o.solver.ReleaseExternal(*live); err != nil {
			return live, fmt.Errorf("release %s: %w", live, err)
		}
	}
	o.solver.Cleanup()
	if o.config.BoundFragment != "" {
		if err := o.solver.Ground(ctx, solver.Part{Name: o.config.BoundFragment, Args: []int64{next}}); err != nil {
			return nil, fmt.Errorf("ground %s(%d): %w", o.config.BoundFragment, next, err)
		}
	}
	fact := solver.BoundFact(next)
	if err := o.solver.AssignExternal(fact, true); err != nil {
		return nil, fmt.Errorf("assign %s: %w", fact, err)
	}
	return &fact, nil
}
