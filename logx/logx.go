// Package logx configures structured logging for the contact subsystem on
// top of log/slog. A single shared LevelVar controls verbosity; WithLevel
// gives callers a scoped override that is restored on every exit path, so
// nothing ever manually saves and restores ambient state.
package logx

import (
	"io"
	"log/slog"
	"os"
)

// UserLevel is the verbosity of every logger created by this package.
var UserLevel slog.LevelVar

// Logger returns a text logger on stderr bound to UserLevel.
func Logger() *slog.Logger {
	return New(os.Stderr)
}

// New returns a text logger on w bound to UserLevel.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &UserLevel}))
}

// SetLevel sets the shared verbosity level.
func SetLevel(l slog.Level) {
	UserLevel.Set(l)
}

// WithLevel runs fn with the shared verbosity temporarily set to l. The
// previous level is restored even if fn panics.
func WithLevel(l slog.Level, fn func()) {
	prev := UserLevel.Level()
	UserLevel.Set(l)
	defer UserLevel.Set(prev)
	fn()
}
