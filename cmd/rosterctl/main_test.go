package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-roster/internal/config"
)

func TestRequireSharedHistory(t *testing.T) {
	assert.NoError(t, requireSharedHistory(config.EngineConfig{HistoryBackend: "redis"}))

	err := requireSharedHistory(config.EngineConfig{HistoryBackend: "memory"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT_HISTORY_BACKEND=redis")
}

func TestStatsRefusesMemoryHistory(t *testing.T) {
	t.Setenv("CONFLICT_HISTORY_BACKEND", "memory")
	rootCmd.SetArgs([]string{"stats", "--guild", "g1"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per process")
}
