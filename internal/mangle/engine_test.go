package mangle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"windowopt/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallProgram = `
Decl edge(X, Y).
Decl reach(X, Y).
Decl level(X, N).
edge(/a, /b).
edge(/b, /c).
reach(X, Y) :- edge(X, Y).
reach(X, Z) :- edge(X, Y), reach(Y, Z).

#program tagged(k).
level(X, $k) :- reach(/a, X).
`

func newSmallEngine(t *testing.T) *Engine {
	t.Helper()
	fragments, err := SplitProgram(smallProgram)
	require.NoError(t, err)
	e := NewEngine(DefaultConfig())
	for _, f := range fragments {
		require.NoError(t, e.AddFragment(f))
	}
	return e
}

func TestEngineGroundBase(t *testing.T) {
	e := newSmallEngine(t)
	require.NoError(t, e.Ground(NewPart(BaseFragment)))

	facts, err := e.GetFacts("reach")
	require.NoError(t, err)
	assert.Len(t, facts, 3)

	stats := e.GetStats()
	assert.Equal(t, 1, stats.Groundings)
	assert.Equal(t, 1, stats.Parts)
}

func TestEngineGroundIsMonotonic(t *testing.T) {
	e := newSmallEngine(t)
	require.NoError(t, e.Ground(NewPart(BaseFragment)))
	require.NoError(t, e.Ground(NewPart("tagged", 1)))
	require.NoError(t, e.Ground(NewPart("tagged", 2)))

	facts, err := e.GetFacts("level")
	require.NoError(t, err)
	// reach(/a, /b) and reach(/a, /c), once per grounded level.
	assert.Len(t, facts, 4)

	// Re-grounding an identical part changes nothing.
	require.NoError(t, e.Ground(NewPart("tagged", 1)))
	assert.Equal(t, 3, e.GetStats().Parts)
	assert.Equal(t, 3, e.GetStats().Groundings)
}

func TestEngineGroundUnknownFragment(t *testing.T) {
	e := newSmallEngine(t)
	err := e.Ground(NewPart("missing"))
	assert.True(t, errors.Is(err, ErrUnknownFragment))
}

func TestEngineGroundSyntaxErrorKeepsState(t *testing.T) {
	e := newSmallEngine(t)
	require.NoError(t, e.Ground(NewPart(BaseFragment)))
	require.NoError(t, e.AddFragment(Fragment{Name: "broken", Text: "this is not ( mangle"}))

	err := e.Ground(NewPart("broken"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGrounding))

	facts, err := e.GetFacts("reach")
	require.NoError(t, err)
	assert.Len(t, facts, 3, "failed grounding must not discard grounded knowledge")
	assert.Equal(t, 1, e.GetStats().Parts)
}

func TestEngineGroundWrongArity(t *testing.T) {
	e := newSmallEngine(t)
	err := e.Ground(NewPart("tagged"))
	assert.True(t, errors.Is(err, ErrGrounding))
}

func TestEngineAddFragmentConflict(t *testing.T) {
	e := NewEngine(DefaultConfig())
	f := Fragment{Name: "solutionTimeWindow2", Text: "startTime(/j1_o1, 0, 1).\n"}
	require.NoError(t, e.AddFragment(f))
	require.NoError(t, e.AddFragment(f), "identical registration is idempotent")

	err := e.AddFragment(Fragment{Name: "solutionTimeWindow2", Text: "startTime(/j1_o1, 3, 1).\n"})
	assert.True(t, errors.Is(err, ErrFragmentConflict))
	assert.True(t, e.HasFragment("solutionTimeWindow2"))
}

func TestEngineFactLimit(t *testing.T) {
	fragments, err := SplitProgram(smallProgram)
	require.NoError(t, err)
	e := NewEngine(Config{FactLimit: 2})
	for _, f := range fragments {
		require.NoError(t, e.AddFragment(f))
	}
	err = e.Ground(NewPart(BaseFragment))
	assert.True(t, errors.Is(err, ErrGrounding))
}

func TestEngineGetFactsUnknownPredicate(t *testing.T) {
	e := newSmallEngine(t)
	require.NoError(t, e.Ground(NewPart(BaseFragment)))
	facts, err := e.GetFacts("nothing_here")
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestEngineJobShopExample(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "examples", "jobshop.mg"))
	require.NoError(t, err)
	fragments, err := SplitProgram(string(data))
	require.NoError(t, err)

	e := NewEngine(DefaultConfig())
	for _, f := range fragments {
		require.NoError(t, e.AddFragment(f))
	}
	require.NoError(t, e.Ground(NewPart(BaseFragment)))
	require.NoError(t, e.Ground(NewPart("subproblem", 1)))

	ops, err := e.GetFacts("schedule_op")
	require.NoError(t, err)
	// Nine operations in the base pass plus three for window 1.
	assert.Len(t, ops, 12)

	require.NoError(t, e.AddFragment(Fragment{
		Name: "solutionTimeWindow2",
		Text: "startTime(/j1_o1, 2, 1). startTime(/j2_o1, 0, 1). startTime(/j3_o1, 0, 1).\n",
	}))
	require.NoError(t, e.Ground(NewPart("solutionTimeWindow2"), NewPart("subproblem", 2)))

	ready, err := e.GetFacts("schedule_machine_ready")
	require.NoError(t, err)
	want := map[string]int64{"/m1": 5, "/m2": 2}
	got := make(map[string]int64)
	for _, f := range ready {
		w, _ := types.ArgInt64(f, 2)
		if w != 2 {
			continue
		}
		end, _ := types.ArgInt64(f, 1)
		name := types.ArgName(f, 0)
		if end > got[name] {
			got[name] = end
		}
	}
	assert.Equal(t, want, got)
}
