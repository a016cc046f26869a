// Package ctxlog carries a slog.Logger through context.Context so that
// deeply nested build code can log without threading a logger argument
// through every call.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from
// other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger has
// been attached, the process-wide default logger is returned, so callers
// never need to nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ForNode returns the context logger scoped to one build node. Every
// engine-originated record carries the node name under the "node" key.
func ForNode(ctx context.Context, name string) *slog.Logger {
	return FromContext(ctx).With("node", name)
}
