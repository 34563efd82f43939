package optimize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"windowopt/internal/solver"
	"windowopt/internal/types"
)

// step scripts one SolveAsync call of fakeSolver.
type step struct {
	model   *solver.Model // model the call produces, nil = exhausted
	timeout bool          // WaitUntil reports false
	late    bool          // with timeout: the callback still fires before Close
	err     error         // reported through Handle.Err
	cost    time.Duration // clock advance while waiting
}

// fakeSolver records every call so tests can check the boundary discipline.
type fakeSolver struct {
	mu        sync.Mutex
	steps     []step
	calls     int
	clock     *fakeClock
	events    []string
	live      map[string]bool
	maxLive   int
	handles   []*fakeHandle
	solveErr  error
	groundErr error
}

func newFakeSolver(clock *fakeClock, steps ...step) *fakeSolver {
	return &fakeSolver{steps: steps, clock: clock, live: make(map[string]bool)}
}

func (f *fakeSolver) log(format string, args ...interface{}) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeSolver) Configure(map[string]string) error { return nil }

func (f *fakeSolver) AddNamedFragment(string, []string, string) error { return nil }

func (f *fakeSolver) Ground(_ context.Context, parts ...solver.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range parts {
		f.log("ground %s", p)
	}
	return f.groundErr
}

func (f *fakeSolver) AssignExternal(fact types.Fact, truth bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("assign %s %v", fact.Key(), truth)
	if truth {
		f.live[fact.Key()] = true
	} else {
		delete(f.live, fact.Key())
	}
	if len(f.live) > f.maxLive {
		f.maxLive = len(f.live)
	}
	return nil
}

func (f *fakeSolver) ReleaseExternal(fact types.Fact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("release %s", fact.Key())
	delete(f.live, fact.Key())
	return nil
}

func (f *fakeSolver) SolveAsync(_ context.Context, onModel func(*solver.Model)) (solver.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.solveErr != nil {
		return nil, f.solveErr
	}
	if f.calls >= len(f.steps) {
		return nil, errors.New("unexpected solve call")
	}
	st := f.steps[f.calls]
	f.calls++
	f.log("solve")
	h := &fakeHandle{step: st, onModel: onModel, clock: f.clock}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeSolver) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("cleanup")
}

func (f *fakeSolver) liveBounds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.live {
		out = append(out, k)
	}
	return out
}

type fakeHandle struct {
	step    step
	onModel func(*solver.Model)
	clock   *fakeClock
	resumed bool
	closed  int
}

func (h *fakeHandle) Resume() {
	h.resumed = true
	if h.step.model != nil && (!h.step.timeout || h.step.late) && h.onModel != nil {
		h.onModel(h.step.model)
	}
}

func (h *fakeHandle) WaitUntil(time.Time) bool {
	if h.clock != nil {
		h.clock.advance(h.step.cost)
	}
	return h.resumed && !h.step.timeout
}

func (h *fakeHandle) Model() *solver.Model {
	if h.step.timeout {
		return nil
	}
	return h.step.model
}

func (h *fakeHandle) Err() error { return h.step.err }

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countRecorder tallies outcomes.
type countRecorder struct {
	counts map[Outcome]int
}

func newCountRecorder() *countRecorder {
	return &countRecorder{counts: make(map[Outcome]int)}
}

func (r *countRecorder) ObserveCall(_ int, outcome Outcome, _ time.Duration) {
	r.counts[outcome]++
}

// model builds a model with one operation, the given bound and overlap markers.
func model(bound int64, overlapped ...string) *solver.Model {
	m := &solver.Model{
		Assignment: solver.Assignment{{Name: "/a", Value: bound - 1}, {Name: solver.BoundName, Value: bound}},
		Symbols:    []types.Fact{types.NewFact(solver.SymMakespan, bound)},
	}
	for _, op := range overlapped {
		m.Symbols = append(m.Symbols, types.NewFact(solver.SymOverlapped, op))
	}
	return m
}
