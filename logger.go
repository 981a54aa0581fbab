package petalpress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the application logger. Invalid levels fall back to
// info with a warning on stderr, since the logger itself is not up yet.
func NewLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
		fmt.Fprintf(os.Stderr, "Invalid log level %q, defaulting to 'info'\n", level)
	}

	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	zerolog.DefaultContextLogger = &l
	return l
}
