package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), enabled)
	t.Cleanup(func() { SetRoot(nil, nil) })
	return logs
}

func TestCategoryLoggersAreNamed(t *testing.T) {
	logs := observe(t, nil)

	Solver("search started", zap.Int("ops", 4))
	WindowDebug("grounding parts")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "solver", entries[0].LoggerName)
	assert.Equal(t, int64(4), entries[0].ContextMap()["ops"])
	assert.Equal(t, "window", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"ground": false, "solver": true})

	Ground("dropped")
	Solver("kept")

	assert.False(t, IsCategoryEnabled(CategoryGround))
	assert.True(t, IsCategoryEnabled(CategoryOptimizer), "unspecified categories default to enabled")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestWithAddsFieldsToCategories(t *testing.T) {
	logs := observe(t, nil)

	With(zap.String("run_id", "abc"))
	Boot("starting")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["run_id"])
}

func TestTimerLogsElapsed(t *testing.T) {
	logs := observe(t, nil)

	timer := StartTimer(CategoryOptimizer, "solve")
	elapsed := timer.StopWithInfo()

	assert.GreaterOrEqual(t, int64(elapsed), int64(0))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "solve completed", logs.All()[0].Message)
	assert.Contains(t, logs.All()[0].ContextMap(), "elapsed")
}

func TestInitializeRejectsBadInput(t *testing.T) {
	_, err := Initialize(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = Initialize(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestInitializeConsole(t *testing.T) {
	t.Cleanup(func() { SetRoot(nil, nil) })
	logger, err := Initialize(Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
