package solver

import (
	"fmt"
	"sort"

	"windowopt/internal/mangle"
	"windowopt/internal/types"
)

// Predicates the grounded program exposes to the search.
const (
	PredOp           = "schedule_op"            // (Op, Job, Machine, Duration, Window)
	PredAfter        = "schedule_after"         // (Before, After)
	PredMachineReady = "schedule_machine_ready" // (Machine, Time, Window)
	PredJobReady     = "schedule_job_ready"     // (Job, Time, Window)
	PredHorizon      = "schedule_horizon"       // (Time, Window)
)

// Symbols shown by every model.
const (
	SymStart      = "start"
	SymMakespan   = "makespan"
	SymOverlapped = "overlappedOperation"
)

type operation struct {
	name     string
	job      int
	machine  int
	duration int64
	preds    []int
	succs    []int
}

// problem is the scheduling instance of the active window.
type problem struct {
	window       int64
	ops          []operation // sorted by name
	machines     []string
	jobs         []string
	machineReady []int64
	jobReady     []int64
	horizon      int64
	hasHorizon   bool
}

// loadProblem reads the active window's instance out of the evaluated store.
func loadProblem(g *mangle.Engine) (*problem, error) {
	opFacts, err := g.GetFacts(PredOp)
	if err != nil {
		return nil, err
	}

	p := &problem{window: -1}
	for _, f := range opFacts {
		w, ok := types.ArgInt64(f, 4)
		if !ok {
			return nil, fmt.Errorf("%w: %s has a non-integer window", ErrInvalidProblem, f)
		}
		if w > p.window {
			p.window = w
		}
	}
	if p.window < 0 {
		p.window = 0
		return p, nil
	}

	machineIdx := make(map[string]int)
	jobIdx := make(map[string]int)
	intern := func(idx map[string]int, list *[]string, name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		idx[name] = len(*list)
		*list = append(*list, name)
		return idx[name]
	}

	byName := make(map[string]types.Fact)
	for _, f := range opFacts {
		if w, _ := types.ArgInt64(f, 4); w != p.window {
			continue
		}
		// Op ids are forwarded as startTime facts, so they must survive the
		// round trip through the assignment as name constants.
		if _, ok := f.Args[0].(types.MangleAtom); !ok {
			return nil, fmt.Errorf("%w: operation id %v in %s must be a name constant", ErrInvalidProblem, f.Args[0], f)
		}
		name := types.ArgName(f, 0)
		if prev, ok := byName[name]; ok {
			if prev.Key() != f.Key() {
				return nil, fmt.Errorf("%w: operation %s declared twice in window %d", ErrInvalidProblem, name, p.window)
			}
			continue
		}
		byName[name] = f
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	opIdx := make(map[string]int, len(names))
	for _, name := range names {
		f := byName[name]
		d, ok := types.ArgInt64(f, 3)
		if !ok || d <= 0 {
			return nil, fmt.Errorf("%w: operation %s needs a positive integer duration", ErrInvalidProblem, name)
		}
		opIdx[name] = len(p.ops)
		p.ops = append(p.ops, operation{
			name:     name,
			job:      intern(jobIdx, &p.jobs, types.ArgName(f, 1)),
			machine:  intern(machineIdx, &p.machines, types.ArgName(f, 2)),
			duration: d,
		})
	}

	p.machineReady = make([]int64, len(p.machines))
	p.jobReady = make([]int64, len(p.jobs))
	if err := readReady(g, PredMachineReady, p.window, machineIdx, p.machineReady); err != nil {
		return nil, err
	}
	if err := readReady(g, PredJobReady, p.window, jobIdx, p.jobReady); err != nil {
		return nil, err
	}

	afterFacts, err := g.GetFacts(PredAfter)
	if err != nil {
		return nil, err
	}
	for _, f := range afterFacts {
		before, okB := opIdx[types.ArgName(f, 0)]
		after, okA := opIdx[types.ArgName(f, 1)]
		if !okB || !okA {
			continue // involves an operation of another window
		}
		if before == after {
			return nil, fmt.Errorf("%w: %s precedes itself", ErrInvalidProblem, p.ops[before].name)
		}
		p.ops[after].preds = append(p.ops[after].preds, before)
		p.ops[before].succs = append(p.ops[before].succs, after)
	}
	if err := p.checkAcyclic(); err != nil {
		return nil, err
	}

	horizonFacts, err := g.GetFacts(PredHorizon)
	if err != nil {
		return nil, err
	}
	for _, f := range horizonFacts {
		if w, _ := types.ArgInt64(f, 1); w != p.window {
			continue
		}
		if t, ok := types.ArgInt64(f, 0); ok && (!p.hasHorizon || t > p.horizon) {
			p.horizon, p.hasHorizon = t, true
		}
	}
	return p, nil
}

// readReady keeps the maximum ready time per resource for the window.
func readReady(g *mangle.Engine, pred string, window int64, idx map[string]int, out []int64) error {
	facts, err := g.GetFacts(pred)
	if err != nil {
		return err
	}
	for _, f := range facts {
		if w, _ := types.ArgInt64(f, 2); w != window {
			continue
		}
		i, ok := idx[types.ArgName(f, 0)]
		if !ok {
			continue
		}
		t, ok := types.ArgInt64(f, 1)
		if !ok {
			return fmt.Errorf("%w: %s has a non-integer time", ErrInvalidProblem, f)
		}
		if t > out[i] {
			out[i] = t
		}
	}
	return nil
}

// checkAcyclic runs Kahn's algorithm over the precedence graph.
func (p *problem) checkAcyclic() error {
	indeg := make([]int, len(p.ops))
	for i := range p.ops {
		indeg[i] = len(p.ops[i].preds)
	}
	queue := make([]int, 0, len(p.ops))
	for i, d := range indeg {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	seen := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		seen++
		for _, s := range p.ops[i].succs {
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if seen != len(p.ops) {
		var cyclic []string
		for i, d := range indeg {
			if d > 0 {
				cyclic = append(cyclic, p.ops[i].name)
			}
		}
		return fmt.Errorf("%w: precedence cycle among %v", ErrInvalidProblem, cyclic)
	}
	return nil
}

// model builds the assignment and shown symbols for a complete schedule.
func (p *problem) model(starts []int64, makespan int64) *Model {
	a := make(Assignment, 0, len(p.ops)+1)
	symbols := make([]types.Fact, 0, 2*len(p.ops)+1)
	for i, op := range p.ops {
		s := starts[i]
		a = append(a, Binding{Name: op.name, Value: s})
		symbols = append(symbols, types.NewFact(SymStart, op.name, s))
		if p.hasHorizon && s < p.horizon && p.horizon < s+op.duration {
			symbols = append(symbols, types.NewFact(SymOverlapped, op.name))
		}
	}
	a = append(a, Binding{Name: BoundName, Value: makespan})
	symbols = append(symbols, types.NewFact(SymMakespan, makespan))
	return &Model{Assignment: a, Symbols: symbols}
}
