// Package logging configures the zerolog logger every package pulls a
// component-scoped sublogger from.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global log level and installs a console writer on
// stderr. Call once from cmd before any other package logs.
func Init(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// For returns a sublogger tagged with component, e.g. "planner",
// "pool", "orchestrator".
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// SetOutput redirects the global logger to w, used by tests that need
// to assert on emitted log lines.
func SetOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
