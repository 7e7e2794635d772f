// Package vnclog provides the structured logger used throughout govncd: one
// process-wide logger plus a per-connection child carrying a correlation ID,
// replacing original_source/vnc_lib/structured_logging.py's hand-rolled
// JSON/contextvar logger with the pack's common zerolog convention.
package vnclog

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New builds the process-wide logger, writing level-tagged JSON lines to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewDefault builds the process-wide logger writing to stderr at info
// level, the convention this module's cmd entrypoint uses absent explicit
// configuration.
func NewDefault() zerolog.Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// ForConnection returns a child logger carrying a fresh correlation ID
// (mirroring the original's correlation_id context variable) and the
// client's remote address, so every log line from one connection's session
// loop can be correlated without threading an ID through every call site.
func ForConnection(base zerolog.Logger, remoteAddr string) zerolog.Logger {
	return base.With().
		Str("correlation_id", uuid.NewString()).
		Str("remote_addr", remoteAddr).
		Logger()
}
