// Package logger provides structured logging setup using slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type batchIDKey struct{}

type orderIDKey struct{}

// New creates a structured logger writing to stderr. format is "json" or "text";
// level is one of debug, info, warn, error.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBatchID returns a new context carrying the batch identifier.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, batchID)
}

// BatchIDFromContext extracts the batch identifier from the context.
func BatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(batchIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithOrderID returns a new context carrying the order identifier.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey{}, orderID)
}

// OrderIDFromContext extracts the order identifier from the context.
func OrderIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(orderIDKey{}).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger with context fields (batch and order ID) attached.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	if id := BatchIDFromContext(ctx); id != "" {
		l = l.With("batch_id", id)
	}
	if id := OrderIDFromContext(ctx); id != "" {
		l = l.With("order_id", id)
	}
	return l
}
