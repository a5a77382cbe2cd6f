package draco

import (
	"log/slog"

	"github.com/deepteams/draco/internal/attributes"
	"github.com/deepteams/draco/internal/edgebreaker"
	"github.com/deepteams/draco/internal/logging"
)

var logger logging.Logger

// SetLogger sets the logger used by the encoder and decoder, including
// the connectivity and attribute coders. Pass nil to disable logging.
// Records are emitted at debug level only.
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	edgebreaker.SetLogger(l)
	attributes.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Load()
}

func slogger() *slog.Logger { return logger.Load() }
