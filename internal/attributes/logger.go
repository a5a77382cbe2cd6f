package attributes

import (
	"log/slog"

	"github.com/deepteams/draco/internal/logging"
)

var logger logging.Logger

func slogger() *slog.Logger { return logger.Load() }

// SetLogger updates the package logger. Called when draco.SetLogger
// propagates; nil restores the silent default.
func SetLogger(l *slog.Logger) { logger.Store(l) }
