package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"windowopt/internal/logging"
	"windowopt/internal/mangle"
	"windowopt/internal/types"

	"go.uber.org/zap"
)

// Stats summarizes the work of an engine since it was created.
type Stats struct {
	Groundings  int   `json:"groundings"`
	Solves      int   `json:"solves"`
	Models      int   `json:"models"`
	Nodes       int64 `json:"nodes"`
	Exhausted   int   `json:"exhausted"`
	Abandoned   int   `json:"abandoned"`
	Facts       int   `json:"facts"`
	Clauses     int   `json:"clauses"`
	Externals   int   `json:"externals"`
	LastWindow  int64 `json:"last_window"`
	LastOpCount int   `json:"last_op_count"`
}

type external struct {
	fact  types.Fact
	truth bool
}

// Engine implements Solver on top of the Mangle grounder.
type Engine struct {
	grounder *mangle.Engine

	mu        sync.Mutex
	opts      Options
	grounded  bool
	dirty     bool // a solve ran since the last Cleanup
	externals map[string]external
	problem   *problem
	active    *handle
	stats     Stats
}

var _ Solver = (*Engine)(nil)

// NewEngine creates an engine with default options.
func NewEngine(cfg mangle.Config) *Engine {
	return &Engine{
		grounder:  mangle.NewEngine(cfg),
		opts:      DefaultOptions(),
		externals: make(map[string]external),
	}
}

// Configure applies solver options.
func (e *Engine) Configure(opts map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grounded {
		return ErrConfigureAfterGround
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := e.opts
	for _, k := range keys {
		if err := next.Set(k, opts[k]); err != nil {
			return err
		}
	}
	e.opts = next
	logging.SolverDebug("solver configured",
		zap.Int("models", next.Models),
		zap.String("order", next.Order),
		zap.Bool("prune", next.Prune))
	return nil
}

// Options returns the active options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// AddNamedFragment registers a fragment with the grounder.
func (e *Engine) AddNamedFragment(name string, params []string, text string) error {
	return e.grounder.AddFragment(mangle.Fragment{Name: name, Params: params, Text: text})
}

// HasFragment reports whether a fragment is registered.
func (e *Engine) HasFragment(name string) bool {
	return e.grounder.HasFragment(name)
}

// Ground grounds parts into the program.
func (e *Engine) Ground(ctx context.Context, parts ...Part) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty {
		return ErrStaleState
	}
	if err := e.grounder.Ground(parts...); err != nil {
		return err
	}
	e.grounded = true
	e.problem = nil
	gs := e.grounder.GetStats()
	e.stats.Groundings = gs.Groundings
	e.stats.Facts = gs.Facts
	e.stats.Clauses = gs.Clauses
	return nil
}

// AssignExternal sets the truth value of a boundary fact.
func (e *Engine) AssignExternal(fact types.Fact, truth bool) error {
	if fact.Predicate == BoundPredicate {
		if _, ok := types.ArgInt64(fact, 0); !ok || len(fact.Args) != 1 {
			return fmt.Errorf("%w: %s must have a single integer argument", ErrInvalidOption, fact)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.externals[fact.Key()] = external{fact: fact, truth: truth}
	logging.SolverDebug("external assigned", zap.String("fact", fact.String()), zap.Bool("truth", truth))
	return nil
}

// ReleaseExternal removes a boundary fact. Releasing an unknown fact is a no-op.
func (e *Engine) ReleaseExternal(fact types.Fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.externals[fact.Key()]; ok {
		delete(e.externals, fact.Key())
		logging.SolverDebug("external released", zap.String("fact", fact.String()))
	}
	return nil
}

// ActiveExternals returns the externals currently assigned true, sorted.
func (e *Engine) ActiveExternals() []types.Fact {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []types.Fact
	for _, ext := range e.externals {
		if ext.truth {
			out = append(out, ext.fact)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// limit is the tightest true bound external.
func (e *Engine) limit() int64 {
	limit := int64(unbounded)
	for _, ext := range e.externals {
		if !ext.truth || ext.fact.Predicate != BoundPredicate {
			continue
		}
		if n, ok := types.ArgInt64(ext.fact, 0); ok && n < limit {
			limit = n
		}
	}
	return limit
}

// SolveAsync starts a search over the active window. Problem errors such as
// precedence cycles are reported through the handle.
func (e *Engine) SolveAsync(ctx context.Context, onModel func(*Model)) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return nil, ErrSolveInProgress
	}

	var loadErr error
	if e.problem == nil {
		e.problem, loadErr = loadProblem(e.grounder)
	}

	h := newHandle(ctx, onModel, e.opts.Models)
	h.release = e.release
	e.active = h
	e.dirty = true
	e.stats.Solves++

	if loadErr != nil {
		e.problem = nil
		logging.Get(logging.CategorySolver).Warn("problem rejected", zap.Error(loadErr))
		h.start(&search{p: &problem{}, fail: loadErr})
		return h, nil
	}

	limit := e.limit()
	e.stats.LastWindow = e.problem.window
	e.stats.LastOpCount = len(e.problem.ops)
	logging.SolverDebug("solve started",
		zap.Int64("window", e.problem.window),
		zap.Int("ops", len(e.problem.ops)),
		zap.Int64("limit", limit))
	h.start(newSearch(e.problem, limit, e.opts))
	return h, nil
}

func (e *Engine) release(h *handle, models int, nodes int64, finished bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == h {
		e.active = nil
	}
	e.stats.Models += models
	e.stats.Nodes += nodes
	if finished {
		e.stats.Exhausted++
	} else {
		e.stats.Abandoned++
	}
}

// Cleanup drops state derived from the last grounding.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.problem = nil
	e.dirty = false
}

// Stats returns a snapshot of the engine statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Externals = len(e.externals)
	return s
}
