// Package runlog wires zerolog with the ambient run identifier so every
// record emitted along a pipeline run's control flow carries run_id.
package runlog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the process base logger. Console output is human formatted;
// otherwise JSON lines. Debug lowers the level from info.
func New(w io.Writer, console, debug bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithRunID stores the run id on the context. Child goroutines that
// inherit the context inherit the id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, runID)
}

// RunID returns the ambient run id, or "" when none is bound.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ctx returns base with the ambient run id merged in when one is bound.
func Ctx(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := RunID(ctx); id != "" {
		return base.With().Str("run_id", id).Logger()
	}
	return base
}
