// Package logging builds the structured zerolog logger shared by every
// tickflow component.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog.Logger configured from level/format strings as
// loaded by internal/config. "pretty" renders a human-readable console
// writer; anything else emits structured JSON.
func New(level, format string) zerolog.Logger {
	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(zlevel)

	var output = os.Stdout
	logger := zerolog.New(output).With().Timestamp().Str("service", "tickflow").Logger()
	if format == "pretty" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("service", "tickflow").Logger()
	}
	return logger
}
