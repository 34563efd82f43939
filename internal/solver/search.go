package solver

import (
	"context"
	"math"
	"sort"
)

// unbounded is the makespan limit when no bound external is true.
const unbounded = math.MaxInt64

// search enumerates semi-active schedules depth first. Operations are placed
// in canonical (start, rank) order so every schedule is generated once.
type search struct {
	p     *problem
	limit int64
	prune bool
	fail  error // reported instead of searching

	rank  []int // rank[i] = position of op i in the branching order
	order []int // ops by rank

	start       []int64
	placed      []bool
	predsLeft   []int
	machineFree []int64
	jobFree     []int64
	machineWork []int64 // unscheduled work per machine
	jobWork     []int64 // unscheduled work per job

	nodes int64
}

func newSearch(p *problem, limit int64, opts Options) *search {
	n := len(p.ops)
	s := &search{
		p:           p,
		limit:       limit,
		prune:       opts.Prune,
		rank:        make([]int, n),
		order:       make([]int, n),
		start:       make([]int64, n),
		placed:      make([]bool, n),
		predsLeft:   make([]int, n),
		machineFree: append([]int64(nil), p.machineReady...),
		jobFree:     append([]int64(nil), p.jobReady...),
		machineWork: make([]int64, len(p.machines)),
		jobWork:     make([]int64, len(p.jobs)),
	}
	for i, op := range p.ops {
		s.order[i] = i
		s.predsLeft[i] = len(op.preds)
		s.machineWork[op.machine] += op.duration
		s.jobWork[op.job] += op.duration
	}
	switch opts.Order {
	case OrderSPT:
		sort.SliceStable(s.order, func(a, b int) bool {
			return p.ops[s.order[a]].duration < p.ops[s.order[b]].duration
		})
	case OrderLPT:
		sort.SliceStable(s.order, func(a, b int) bool {
			return p.ops[s.order[a]].duration > p.ops[s.order[b]].duration
		})
	}
	for r, i := range s.order {
		s.rank[i] = r
	}
	return s
}

// run calls yield for every schedule whose makespan is within the limit
// until yield returns false, the space is exhausted or ctx is done.
func (s *search) run(ctx context.Context, yield func(*Model) bool) error {
	if s.fail != nil {
		return s.fail
	}
	_, err := s.dfs(ctx, 0, math.MinInt64, -1, 0, yield)
	return err
}

func (s *search) earliestStart(i int) int64 {
	op := s.p.ops[i]
	est := s.machineFree[op.machine]
	if t := s.jobFree[op.job]; t > est {
		est = t
	}
	for _, pred := range op.preds {
		if t := s.start[pred] + s.p.ops[pred].duration; t > est {
			est = t
		}
	}
	return est
}

// lowerBound is valid because canonical order forces every later op to
// start no earlier than from.
func (s *search) lowerBound(from int64) int64 {
	var lb int64
	for m, work := range s.machineWork {
		if work == 0 {
			continue
		}
		t := s.machineFree[m]
		if from > t {
			t = from
		}
		if t+work > lb {
			lb = t + work
		}
	}
	for j, work := range s.jobWork {
		if work == 0 {
			continue
		}
		t := s.jobFree[j]
		if from > t {
			t = from
		}
		if t+work > lb {
			lb = t + work
		}
	}
	return lb
}

func (s *search) dfs(ctx context.Context, depth int, lastStart int64, lastRank int, makespan int64, yield func(*Model) bool) (bool, error) {
	s.nodes++
	if s.nodes&0xff == 0 {
		if err := ctx.Err(); err != nil {
			return true, err
		}
	}
	if depth == len(s.p.ops) {
		if makespan > s.limit {
			return false, nil
		}
		starts := append([]int64(nil), s.start...)
		return !yield(s.p.model(starts, makespan)), nil
	}

	for r, i := range s.order {
		if s.placed[i] || s.predsLeft[i] > 0 {
			continue
		}
		est := s.earliestStart(i)
		if est < lastStart || (est == lastStart && r < lastRank) {
			continue
		}
		op := s.p.ops[i]
		end := est + op.duration
		next := makespan
		if end > next {
			next = end
		}
		if next > s.limit {
			continue
		}

		prevMachine, prevJob := s.machineFree[op.machine], s.jobFree[op.job]
		s.place(i, est, end)
		pruned := s.prune && s.lowerBound(est) > s.limit
		var stop bool
		var err error
		if !pruned {
			stop, err = s.dfs(ctx, depth+1, est, r, next, yield)
		}
		s.unplace(i, prevMachine, prevJob)
		if stop || err != nil {
			return stop, err
		}
	}
	return false, nil
}

func (s *search) place(i int, start, end int64) {
	op := s.p.ops[i]
	s.placed[i] = true
	s.start[i] = start
	s.machineFree[op.machine] = end
	s.jobFree[op.job] = end
	s.machineWork[op.machine] -= op.duration
	s.jobWork[op.job] -= op.duration
	for _, succ := range op.succs {
		s.predsLeft[succ]--
	}
}

func (s *search) unplace(i int, machineFree, jobFree int64) {
	op := s.p.ops[i]
	for _, succ := range op.succs {
		s.predsLeft[succ]++
	}
	s.machineWork[op.machine] += op.duration
	s.jobWork[op.job] += op.duration
	s.machineFree[op.machine] = machineFree
	s.jobFree[op.job] = jobFree
	s.placed[i] = false
}
