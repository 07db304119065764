package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zap.DebugLevel},
		{level: "info", want: zap.InfoLevel},
		{level: "warn", want: zap.WarnLevel},
		{level: "error", want: zap.ErrorLevel},
		{level: "bogus", want: zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			l, err := New()
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zap.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cl := CronLogger{Logger: zap.New(core)}

	cl.Info("tick", "entry", 1)
	cl.Error(errors.New("boom"), "job failed", "entry", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "job failed", entries[1].Message)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
