// Package telemetry wires the process-wide structured logger.
package telemetry

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger for the process, honoring LOG_LEVEL.
func New(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName)))
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ForSession returns a logger tagged with a session_id, so every line a
// processor or the orchestrator emits can be correlated back to one peer
// connection without threading the ID through every call signature.
func ForSession(base zerolog.Logger, sessionID string) zerolog.Logger {
	return base.With().Str("session_id", sessionID).Logger()
}
