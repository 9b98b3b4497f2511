// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the level and output format.
type Options struct {
	Level   string
	Console bool
	Output  io.Writer
}

// New returns a logger for the service and installs it as the zerolog global
// so packages that use github.com/rs/zerolog/log share the configuration.
// Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("service", "assetdeskd").Logger()
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return logger
}
