package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger configured for stdout at info level.
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel returns a stdout logger at the named level.
// Unknown or empty names fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	var parsed zerolog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		parsed = zerolog.TraceLevel
	case "debug":
		parsed = zerolog.DebugLevel
	case "warn", "warning":
		parsed = zerolog.WarnLevel
	case "error":
		parsed = zerolog.ErrorLevel
	case "fatal":
		parsed = zerolog.FatalLevel
	case "panic":
		parsed = zerolog.PanicLevel
	default:
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}
