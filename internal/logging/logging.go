// Package logging holds the replaceable slog logger shared by the codec
// packages. The zero Logger discards every record.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var discard = slog.New(nopHandler{})

// Discard returns a logger that drops every record.
func Discard() *slog.Logger { return discard }

// Logger is a *slog.Logger that can be swapped while other goroutines log.
type Logger struct {
	p atomic.Pointer[slog.Logger]
}

// Load returns the current logger, never nil.
func (l *Logger) Load() *slog.Logger {
	if lg := l.p.Load(); lg != nil {
		return lg
	}
	return discard
}

// Store replaces the logger. Nil restores the silent default.
func (l *Logger) Store(lg *slog.Logger) {
	if lg == nil {
		lg = discard
	}
	l.p.Store(lg)
}
