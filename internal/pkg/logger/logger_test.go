package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core))

	log.WithCorrelationID("req-1").Info("Purchase completed", "units", 2, "buyer_id", "alice")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Purchase completed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["correlation_id"])
	assert.Equal(t, int64(2), fields["units"])
	assert.Equal(t, "alice", fields["buyer_id"])
}

func TestLogger_LevelFilter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := New(zap.New(core))

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown")

	assert.Equal(t, 2, logs.Len())
}

func TestNewLoggerWithLevel_FallsBackToInfo(t *testing.T) {
	log := NewLoggerWithLevel("not-a-level")
	assert.NotNil(t, log)
	assert.False(t, log.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.sugar.Desugar().Core().Enabled(zapcore.InfoLevel))
}
