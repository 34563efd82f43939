// Package extract turns solver assignments into the facts forwarded from
// one time window to the next.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"windowopt/internal/solver"
	"windowopt/internal/types"

	"github.com/google/mangle/parse"
)

// ForwardPredicate names the facts handed to the next window.
const ForwardPredicate = "startTime"

// ErrMissingBound is returned when an assignment carries no objective value.
var ErrMissingBound = errors.New("assignment has no bound")

// ForwardFacts is a space-separated set of startTime(name, value, window). facts.
type ForwardFacts string

// Triple is one decoded forward fact.
type Triple struct {
	Name   string
	Value  int64
	Window int64
}

// Split separates the objective value from the rest of the assignment and
// renders the remaining bindings as forward facts for window.
func Split(a solver.Assignment, window int) (ForwardFacts, int64, error) {
	var (
		bound    int64
		hasBound bool
		facts    []string
	)
	for _, b := range a {
		if b.Name == solver.BoundName {
			bound, hasBound = b.Value, true
			continue
		}
		facts = append(facts, types.NewFact(ForwardPredicate, b.Name, b.Value, int64(window)).String())
	}
	if !hasBound {
		return "", 0, ErrMissingBound
	}
	return ForwardFacts(strings.Join(facts, " ")), bound, nil
}

// OverlapMarkers keeps the overlappedOperation symbols of a model.
func OverlapMarkers(symbols []types.Fact) []types.Fact {
	var out []types.Fact
	for _, f := range symbols {
		if f.Predicate == solver.SymOverlapped {
			out = append(out, f)
		}
	}
	return out
}

// ParseForwardFacts decodes a forward fact set with the Mangle parser.
func ParseForwardFacts(ff ForwardFacts) ([]Triple, error) {
	if strings.TrimSpace(string(ff)) == "" {
		return nil, nil
	}
	unit, err := parse.Unit(strings.NewReader(string(ff)))
	if err != nil {
		return nil, fmt.Errorf("parse forward facts: %w", err)
	}

	out := make([]Triple, 0, len(unit.Clauses))
	for _, clause := range unit.Clauses {
		if len(clause.Premises) > 0 {
			return nil, fmt.Errorf("forward facts must be ground facts, got rule for %s", clause.Head.Predicate.Symbol)
		}
		f := types.FromAtom(clause.Head)
		if f.Predicate != ForwardPredicate || len(f.Args) != 3 {
			return nil, fmt.Errorf("unexpected forward fact %s", clause.Head)
		}
		value, okV := types.ArgInt64(f, 1)
		window, okW := types.ArgInt64(f, 2)
		if !okV || !okW {
			return nil, fmt.Errorf("forward fact %s needs integer value and window", clause.Head)
		}
		out = append(out, Triple{Name: types.ArgName(f, 0), Value: value, Window: window})
	}
	return out, nil
}

// Names returns the sorted operation names of a forward fact set.
func Names(triples []Triple) []string {
	names := make([]string, len(triples))
	for i, t := range triples {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

// SymbolStrings renders facts for logging.
func SymbolStrings(facts []types.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = strings.TrimSuffix(f.String(), ".")
	}
	return out
}
