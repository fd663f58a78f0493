// Package logging defines the structured logging interface shared by the
// client and server binaries. The slog adapter is the only implementation;
// the interface keeps the rest of the code decoupled from the backend.
package logging

import "context"

// Logger is a leveled, context-aware logger. Variadic args are alternating
// key/value pairs, slog style:
//
//	log.Info(ctx, "cycle finished", "created", n, "conflicts", c)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
