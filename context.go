package showtrack

import (
	"context"
	"log/slog"
)

// contextKey represents an internal key for adding context fields.
// This is considered best practice as it prevents other packages from
// interfering with our context keys.
type contextKey int

// List of context keys.
// These are used to store request-scoped information.
const (
	// Stores the request-scoped logger in the context.
	loggerContextKey = contextKey(iota + 1)
)

// NewContextWithLogger returns a new context with the given logger.
func NewContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext returns the request logger, or slog.Default() if none was
// set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, _ := ctx.Value(loggerContextKey).(*slog.Logger); logger != nil {
		return logger
	}
	return slog.Default()
}
