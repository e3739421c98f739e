// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global logger. level is one of zerolog's level
// names ("debug", "info", ...); unknown values fall back to info.
// format is "console" for human-readable output or "json" for
// machine-parseable structured output.
func Init(level, format string) {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && parsed != zerolog.NoLevel {
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = os.Stderr
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	zlog.Logger = zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "pawprint").
		Logger()

	// Route the standard library logger through zerolog so stray
	// log.Printf calls from dependencies keep the same format.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// L returns the global logger.
func L() *zerolog.Logger {
	return &zlog.Logger
}
