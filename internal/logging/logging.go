// Package logging configures the global zerolog logger for runner step logs.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at a console writer on out and sets the level.
// RUNNER_DEBUG=1, set when a run is re-run with debug logging, forces debug.
func Setup(out io.Writer, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if os.Getenv("RUNNER_DEBUG") == "1" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// the runner prefixes its own timestamps
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         true,
		FormatTimestamp: func(i interface{}) string { return "" },
	}).With().Logger()
	return nil
}

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Newf("invalid log level %q", level)
	}
	return lvl, nil
}
