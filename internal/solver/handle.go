package solver

import (
	"context"
	"sync"
	"time"
)

type outcome struct {
	model *Model
	err   error
}

// handle runs one search on its own goroutine. The goroutine parks after
// every result until Resume is called or the handle is closed.
type handle struct {
	ctx       context.Context
	cancel    context.CancelFunc
	onModel   func(*Model)
	maxModels int
	release   func(h *handle, models int, nodes int64, finished bool)

	resume  chan struct{}
	results chan outcome
	done    chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	pending  bool
	ready    bool
	model    *Model
	err      error
	models   int
	nodes    int64
	finished bool
}

func newHandle(ctx context.Context, onModel func(*Model), maxModels int) *handle {
	ctx, cancel := context.WithCancel(ctx)
	return &handle{
		ctx:       ctx,
		cancel:    cancel,
		onModel:   onModel,
		maxModels: maxModels,
		resume:    make(chan struct{}),
		results:   make(chan outcome, 1),
		done:      make(chan struct{}),
	}
}

func (h *handle) start(s *search) {
	go h.run(s)
}

func (h *handle) run(s *search) {
	defer close(h.done)
	// owed is set while a Resume has been consumed but not yet answered.
	owed := h.awaitResume()
	if !owed {
		return
	}

	count := 0
	err := s.run(h.ctx, func(m *Model) bool {
		count++
		m.Number = count
		if h.onModel != nil {
			h.onModel(m)
		}
		if !h.publish(outcome{model: m}) {
			return false
		}
		owed = false
		if h.maxModels > 0 && count >= h.maxModels {
			return false
		}
		owed = h.awaitResume()
		return owed
	})

	h.mu.Lock()
	h.models = count
	h.nodes = s.nodes
	h.mu.Unlock()

	if h.ctx.Err() != nil {
		return
	}
	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()

	// Exhausted: answer every further Resume with the final outcome.
	for owed || h.awaitResume() {
		owed = false
		if !h.publish(outcome{err: err}) {
			return
		}
	}
}

func (h *handle) awaitResume() bool {
	select {
	case <-h.resume:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *handle) publish(out outcome) bool {
	select {
	case h.results <- out:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Resume asks the search for its next result. It is a no-op while a
// previous request is still unanswered.
func (h *handle) Resume() {
	h.mu.Lock()
	if h.pending {
		h.mu.Unlock()
		return
	}
	h.pending = true
	h.ready = false
	h.model = nil
	h.err = nil
	h.mu.Unlock()

	select {
	case h.resume <- struct{}{}:
	case <-h.done:
	}
}

// WaitUntil blocks until a result is available or the deadline elapsed.
func (h *handle) WaitUntil(deadline time.Time) bool {
	h.mu.Lock()
	if h.ready || !h.pending {
		ready := h.ready
		h.mu.Unlock()
		return ready
	}
	h.mu.Unlock()

	select {
	case out := <-h.results:
		h.accept(out)
		return true
	default:
	}

	wait := time.Until(deadline)
	if wait <= 0 {
		return false
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case out := <-h.results:
		h.accept(out)
		return true
	case <-timer.C:
		return false
	case <-h.done:
		select {
		case out := <-h.results:
			h.accept(out)
			return true
		default:
			return false
		}
	}
}

func (h *handle) accept(out outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = false
	h.ready = true
	h.model = out.model
	h.err = out.err
}

// Model returns the model of the last result, nil once the search is exhausted.
func (h *handle) Model() *Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return nil
	}
	return h.model
}

// Err returns the error the search stopped with.
func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close cancels the search and waits for its goroutine to exit.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
		if h.release != nil {
			h.mu.Lock()
			models, nodes, finished := h.models, h.nodes, h.finished
			h.mu.Unlock()
			h.release(h, models, nodes, finished)
		}
	})
	return nil
}
