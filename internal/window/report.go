package window

import (
	"fmt"
	"io"
	"sync"
	"time"

	"windowopt/internal/extract"
	"windowopt/internal/optimize"
	"windowopt/internal/types"
)

// Result is the accepted outcome of one window.
type Result struct {
	Window   int
	Bound    int64
	Optimal  bool
	Overlaps []types.Fact
	Forward  extract.ForwardFacts
	Attempts int
	Elapsed  time.Duration
}

// Report accumulates per-window results and call outcome counters for one
// run. It implements optimize.Recorder.
type Report struct {
	mu sync.Mutex

	Windows []Result

	Interrupted    int // deadline hits plus budget stops
	NonInterrupted int // searches exhausted under the current bound
	SolveAttempts  int
	Improving      int
	BudgetStops    int
	Failed         int
}

var _ optimize.Recorder = (*Report)(nil)

// ObserveCall implements optimize.Recorder.
func (r *Report) ObserveCall(_ int, outcome optimize.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case optimize.OutcomeImproved:
		r.SolveAttempts++
		r.Improving++
	case optimize.OutcomeInterrupted:
		r.SolveAttempts++
		r.Interrupted++
	case optimize.OutcomeExhausted:
		r.SolveAttempts++
		r.NonInterrupted++
	case optimize.OutcomeBudget:
		r.Interrupted++
		r.BudgetStops++
	case optimize.OutcomeFailed:
		r.SolveAttempts++
		r.Failed++
	}
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Windows = append(r.Windows, res)
}

// Conserved reports whether every issued solve is accounted for by exactly
// one outcome counter.
func (r *Report) Conserved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.SolveAttempts == r.Improving+r.NonInterrupted+(r.Interrupted-r.BudgetStops)+r.Failed
}

// Render writes the completion time of every window followed by the call
// counters.
func (r *Report) Render(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.Windows {
		if _, err := fmt.Fprintf(w, "Completion Time for Window %d : %d\n", res.Window, res.Bound); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Number of Interrupted Calls : %d\n", r.Interrupted); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Number of UnInterrupted Calls : %d\n", r.NonInterrupted)
	return err
}
