// Package logging builds the zap logger shared by the server and the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kwai-club/kwai/internal/config"
	"github.com/kwai-club/kwai/internal/web/middleware"
)

// New creates a logger from the log section of the configuration. Development
// mode uses the console encoder; otherwise output is JSON.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// RequestLogger returns a request logging callback that writes one entry per
// request. Server errors are logged at error level, client errors at warn.
func RequestLogger(logger *zap.Logger) func(middleware.LogEntry) {
	return func(entry middleware.LogEntry) {
		fields := []zap.Field{
			zap.String("request_id", entry.RequestID),
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status", entry.StatusCode),
			zap.Duration("duration", entry.Duration),
			zap.Int("bytes", entry.BytesWritten),
			zap.String("remote_addr", entry.RemoteAddr),
			zap.String("user_agent", entry.UserAgent),
		}
		switch {
		case entry.StatusCode >= 500:
			logger.Error("request", fields...)
		case entry.StatusCode >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// PanicLogger returns a recovery callback that logs the panic with its stack.
func PanicLogger(logger *zap.Logger) func(error, []byte) {
	return func(err error, stack []byte) {
		logger.Error("panic recovered",
			zap.Error(err),
			zap.ByteString("stack", stack),
		)
	}
}

// ShutdownLogger adapts a zap logger to the Printf interface of the server's
// shutdown handler.
type ShutdownLogger struct {
	Logger *zap.Logger
}

func (l ShutdownLogger) Printf(format string, v ...any) {
	l.Logger.Sugar().Infof(format, v...)
}
