package observability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	maxLoggerFieldCapacity int = 6 // Maximum number of context fields to add to logger
)

// Global logger instance - shared across the application.
// This is intentional: loggers should not be stored in context.
//
//nolint:gochecknoglobals // Singleton logger is a standard pattern
var (
	globalLogger *zap.Logger
	loggerMu     sync.RWMutex
)

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// InitLogger initializes the base logger (called once at startup).
func InitLogger(cfg *LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg != nil {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		zcfg.Level = level
		zcfg.Encoding = cfg.Format
		if cfg.Format == "console" {
			zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()

	return logger, nil
}

// getBaseLogger returns the global logger instance.
func getBaseLogger() *zap.Logger {
	loggerMu.RLock()
	logger := globalLogger
	loggerMu.RUnlock()

	if logger == nil {
		// Fallback to production logger if not initialized
		logger, _ = zap.NewProduction()
	}

	return logger
}

// FromContext creates a logger with fields extracted from context.
func FromContext(ctx context.Context) *zap.Logger {
	logger := getBaseLogger()

	fields := make([]zap.Field, 0, maxLoggerFieldCapacity)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	if spanID := GetSpanID(ctx); spanID != "" {
		fields = append(fields, zap.String("span_id", spanID))
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if caller := GetCaller(ctx); caller != "" {
		fields = append(fields, zap.String("caller", caller))
	}

	if service := GetService(ctx); service != "" {
		fields = append(fields, zap.String("service", service))
	}

	if phase := GetPhase(ctx); phase != "" {
		fields = append(fields, zap.String("phase", phase))
	}

	return logger.With(fields...)
}

// SetLogger replaces the base logger, returning the previous one.
func SetLogger(logger *zap.Logger) *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	previous := globalLogger
	globalLogger = logger
	return previous
}
