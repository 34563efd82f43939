// Package mangle grounds named program fragments with the Google Mangle
// engine. Grounding is monotonic: every grounded part stays in the program,
// and each Ground call re-evaluates the accumulated program to fixpoint.
package mangle

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"windowopt/internal/logging"
	"windowopt/internal/types"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"
)

// Config holds grounding limits.
type Config struct {
	FactLimit        int `yaml:"fact_limit"`         // max facts in the evaluated store, 0 = unlimited
	DerivedFactLimit int `yaml:"derived_fact_limit"` // gas limit passed to the Mangle evaluator
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:        1000000,
		DerivedFactLimit: 500000,
	}
}

var (
	// ErrFragmentConflict is returned when a fragment name is registered twice
	// with different content.
	ErrFragmentConflict = errors.New("fragment already registered with different content")
	// ErrUnknownFragment is returned when grounding a part nobody registered.
	ErrUnknownFragment = errors.New("unknown fragment")
	// ErrGrounding wraps parse, analysis and evaluation failures.
	ErrGrounding = errors.New("grounding failed")
)

// Stats contains grounding statistics.
type Stats struct {
	Groundings int           `json:"groundings"`
	Parts      int           `json:"parts"`
	Clauses    int           `json:"clauses"`
	Facts      int           `json:"facts"`
	Strata     int           `json:"strata"`
	LastEval   time.Duration `json:"last_eval"`
}

// Engine owns the registered fragments, the grounded program and the fact
// store produced by evaluating it.
type Engine struct {
	config Config

	mu             sync.RWMutex
	fragments      map[string]Fragment
	parts          []Part
	partKeys       map[string]struct{}
	sources        []string
	programInfo    *analysis.ProgramInfo
	store          factstore.FactStore
	predicateIndex map[string]ast.PredicateSym
	stats          Stats
}

// NewEngine creates an engine with no fragments and an empty store.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config:         cfg,
		fragments:      make(map[string]Fragment),
		partKeys:       make(map[string]struct{}),
		store:          factstore.NewSimpleInMemoryStore(),
		predicateIndex: make(map[string]ast.PredicateSym),
	}
}

// AddFragment registers a fragment. Registering identical content twice is a
// no-op; different content under an existing name is ErrFragmentConflict.
func (e *Engine) AddFragment(f Fragment) error {
	if f.Name == "" {
		return fmt.Errorf("fragment name required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.fragments[f.Name]; ok {
		if existing.Equal(f) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrFragmentConflict, f.Name)
	}
	e.fragments[f.Name] = f
	logging.GroundDebug("fragment registered",
		zap.String("fragment", f.Name),
		zap.Strings("params", f.Params),
		zap.Int("bytes", len(f.Text)))
	return nil
}

// HasFragment reports whether a fragment with this name is registered.
func (e *Engine) HasFragment(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.fragments[name]
	return ok
}

// Ground instantiates the given parts, adds them to the program and
// re-evaluates it. Parts already grounded with the same arguments are
// skipped. On failure the engine keeps its previous program and store.
func (e *Engine) Ground(parts ...Part) error {
	timer := logging.StartTimer(logging.CategoryGround, "ground")
	defer timer.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		newSources []string
		newParts   []Part
		batch      = make(map[string]struct{})
	)
	for _, p := range parts {
		key := p.String()
		if _, done := e.partKeys[key]; done {
			continue
		}
		if _, dup := batch[key]; dup {
			continue
		}
		frag, ok := e.fragments[p.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFragment, p.Name)
		}
		text, err := frag.Instantiate(p.Args)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGrounding, err)
		}
		if _, err := parse.Unit(strings.NewReader(text)); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrGrounding, key, err)
		}
		batch[key] = struct{}{}
		newParts = append(newParts, p)
		newSources = append(newSources, "# part "+key+"\n"+text)
	}
	if len(newParts) == 0 && e.programInfo != nil {
		logging.GroundDebug("nothing new to ground")
		return nil
	}

	sources := append(append([]string(nil), e.sources...), newSources...)
	program := strings.Join(sources, "\n")

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return fmt.Errorf("%w: parse program: %v", ErrGrounding, err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("%w: analyze program: %v", ErrGrounding, err)
	}

	store := factstore.NewSimpleInMemoryStore()
	var opts []engine.EvalOption
	if e.config.DerivedFactLimit > 0 {
		opts = append(opts, engine.WithCreatedFactLimit(e.config.DerivedFactLimit))
	}
	start := time.Now()
	stats, err := engine.EvalProgramWithStats(programInfo, store, opts...)
	if err != nil {
		return fmt.Errorf("%w: evaluate program: %v", ErrGrounding, err)
	}
	evalTime := time.Since(start)

	factCount := store.EstimateFactCount()
	if e.config.FactLimit > 0 && factCount > e.config.FactLimit {
		return fmt.Errorf("%w: fact limit exceeded: %d > %d", ErrGrounding, factCount, e.config.FactLimit)
	}

	index := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		index[sym.Symbol] = sym
	}

	e.sources = sources
	e.parts = append(e.parts, newParts...)
	for key := range batch {
		e.partKeys[key] = struct{}{}
	}
	e.programInfo = programInfo
	e.store = store
	e.predicateIndex = index
	e.stats.Groundings++
	e.stats.Parts = len(e.parts)
	e.stats.Clauses = len(unit.Clauses)
	e.stats.Facts = factCount
	e.stats.Strata = len(stats.Strata)
	e.stats.LastEval = evalTime

	names := make([]string, len(newParts))
	for i, p := range newParts {
		names[i] = p.String()
	}
	logging.Ground("parts grounded",
		zap.Strings("parts", names),
		zap.Int("clauses", len(unit.Clauses)),
		zap.Int("facts", factCount),
		zap.Duration("eval", evalTime))
	return nil
}

// GetFacts retrieves all facts for a given predicate. A predicate the
// program never mentions yields no facts and no error.
func (e *Engine) GetFacts(predicate string) ([]types.Fact, error) {
	e.mu.RLock()
	sym, ok := e.predicateIndex[predicate]
	store := e.store
	e.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var results []types.Fact
	err := store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		results = append(results, types.FromAtom(atom))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", predicate, err)
	}
	return results, nil
}

// GetStats returns grounding statistics.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
