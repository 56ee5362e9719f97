// Package logging builds the service's *slog.Logger on top of charmbracelet/log.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// DefaultTimeFormat is used when Config.TimeFormat is empty.
const DefaultTimeFormat = "15:04:05"

// Config controls logger output.
type Config struct {
	Level      string    // debug, info, warn, error
	JSON       bool      // JSON formatter instead of text
	Output     io.Writer // defaults to os.Stderr
	TimeFormat string
}

// New returns a slog.Logger whose handler is a charm logger.
// Unknown levels fall back to info.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultTimeFormat
	}

	handler := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           parseLevel(cfg.Level),
	})
	if cfg.JSON {
		handler.SetFormatter(charmlog.JSONFormatter)
	} else {
		handler.SetFormatter(charmlog.TextFormatter)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return New(Config{Output: io.Discard, Level: "error"})
}

func parseLevel(level string) charmlog.Level {
	parsed, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return charmlog.InfoLevel
	}
	return parsed
}
