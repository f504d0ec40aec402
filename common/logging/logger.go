package logging

import (
	"context"
	"log/slog"
)

type contextKey string

// LoggerKey is the context key for a request scoped logger.
const LoggerKey = contextKey("logger")

// Inject returns a context carrying logger.
func Inject(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLoggerFromContext returns the logger carried by ctx, or the default logger.
func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	logger, ok := ctx.Value(LoggerKey).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}
