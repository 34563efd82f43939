// Package solver defines the contract the window loop needs from a
// combinatorial solver and provides Engine, a solver that grounds Mangle
// fragments and searches job-shop schedules in the background.
//
// The contract mirrors incremental answer-set solvers: named fragments are
// registered once and grounded with parameters, boundary (external) facts are
// toggled without regrounding, and a solve runs asynchronously behind a
// Handle that can be resumed, waited on with a deadline, and abandoned.
package solver

import (
	"context"
	"errors"
	"time"

	"windowopt/internal/mangle"
	"windowopt/internal/types"
)

// BoundName is the assignment entry holding the objective value.
const BoundName = "bound"

// BoundPredicate is the external predicate capping the objective:
// a true bound(N) external restricts models to bound <= N.
const BoundPredicate = "bound"

// Part names a fragment instance to ground.
type Part = mangle.Part

var (
	// ErrConfigureAfterGround is returned by Configure once grounding started.
	ErrConfigureAfterGround = errors.New("solver options cannot change after grounding started")
	// ErrInvalidOption is returned for unknown option keys or malformed values.
	ErrInvalidOption = errors.New("invalid solver option")
	// ErrStaleState is returned by Ground when a solve ran since the last Cleanup.
	ErrStaleState = errors.New("cleanup required before grounding")
	// ErrSolveInProgress is returned by SolveAsync while another handle is open.
	ErrSolveInProgress = errors.New("a solve is already in progress")
	// ErrInvalidProblem is reported when the grounded program does not
	// describe a schedulable problem (cycles, bad durations, duplicates).
	ErrInvalidProblem = errors.New("invalid scheduling problem")

	ErrFragmentConflict = mangle.ErrFragmentConflict
	ErrUnknownFragment  = mangle.ErrUnknownFragment
	ErrGrounding        = mangle.ErrGrounding
)

// Solver is the capability the optimizer and the window scheduler drive.
type Solver interface {
	// Configure registers solver options; it fails once grounding started.
	Configure(opts map[string]string) error
	// AddNamedFragment registers a reusable chunk of problem logic.
	AddNamedFragment(name string, params []string, text string) error
	// Ground compiles the named fragments into the live solver state.
	Ground(ctx context.Context, parts ...Part) error
	// AssignExternal sets the truth value of a boundary fact.
	AssignExternal(fact types.Fact, truth bool) error
	// ReleaseExternal clears a boundary fact.
	ReleaseExternal(fact types.Fact) error
	// SolveAsync starts a background solve. onModel runs on the solve
	// goroutine for every model before the model is published to the handle.
	SolveAsync(ctx context.Context, onModel func(*Model)) (Handle, error)
	// Cleanup drops caches derived from the last grounding.
	Cleanup()
}

// Handle controls one asynchronous solve.
type Handle interface {
	// Resume continues the search towards the next model.
	Resume()
	// WaitUntil blocks until the search produced a result or the deadline
	// elapsed. It reports whether a result is available.
	WaitUntil(deadline time.Time) bool
	// Model returns the model of the last result, or nil when the search was
	// exhausted without finding another one.
	Model() *Model
	// Err returns the error the search stopped with, if any.
	Err() error
	// Close abandons the search and releases its goroutine. It is safe to
	// call on every exit path and more than once.
	Close() error
}

// Binding is one variable-value pair of an assignment.
type Binding struct {
	Name  string
	Value int64
}

// Assignment is the set of variable-value pairs of one model.
type Assignment []Binding

// Lookup returns the value bound to name.
func (a Assignment) Lookup(name string) (int64, bool) {
	for _, b := range a {
		if b.Name == name {
			return b.Value, true
		}
	}
	return 0, false
}

// Clone returns a copy that does not share storage with a.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	out := make(Assignment, len(a))
	copy(out, a)
	return out
}

// Model is one solution produced by a solve.
type Model struct {
	Number     int // 1-based position among the models of its handle
	Assignment Assignment
	Symbols    []types.Fact
}

// BoundFact returns the external fact capping the objective at n.
func BoundFact(n int64) types.Fact {
	return types.NewFact(BoundPredicate, n)
}
