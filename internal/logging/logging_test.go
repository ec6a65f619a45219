package logging

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kwai-club/kwai/internal/config"
	"github.com/kwai-club/kwai/internal/web/middleware"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{name: "production", cfg: config.LogConfig{Level: "info"}},
		{name: "development", cfg: config.LogConfig{Level: "debug", Development: true}},
		{name: "invalid level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}

	t.Run("level is applied", func(t *testing.T) {
		logger, err := New(config.LogConfig{Level: "warn"})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel zapcore.Level
	}{
		{status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{status: http.StatusNotFound, wantLevel: zapcore.WarnLevel},
		{status: http.StatusInternalServerError, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			log := RequestLogger(zap.New(core))

			log(middleware.LogEntry{
				RequestID:  "req-1",
				Method:     http.MethodGet,
				Path:       "/api/v1/teams",
				StatusCode: tt.status,
				Duration:   5 * time.Millisecond,
			})

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, "req-1", fields["request_id"])
			assert.Equal(t, "/api/v1/teams", fields["path"])
			assert.EqualValues(t, tt.status, fields["status"])
		})
	}
}

func TestPanicLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	PanicLogger(zap.New(core))(errors.New("boom"), []byte("stack"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}
