// Package logging defines the structured logger used across the service.
// The variadic args are key-value pairs:
//
//	log.Info("cast scheduled", "cast_id", id, "job_id", jobID)
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	charm "github.com/charmbracelet/log"
)

// Logger is a leveled, structured logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// CharmLogger adapts charmbracelet/log to Logger.
type CharmLogger struct {
	l *charm.Logger
}

// New builds a logger writing to w.  level is one of debug/info/warn/error
// and format is text, json or logfmt; unknown values fall back to info/text.
func New(w io.Writer, level, format string) *CharmLogger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := charm.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = charm.InfoLevel
	}
	opts := charm.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charm.TextFormatter,
	}
	switch strings.ToLower(format) {
	case "json":
		opts.Formatter = charm.JSONFormatter
	case "logfmt":
		opts.Formatter = charm.LogfmtFormatter
	}
	return &CharmLogger{l: charm.NewWithOptions(w, opts)}
}

func (c *CharmLogger) Debug(msg string, args ...any) { c.l.Debug(msg, args...) }
func (c *CharmLogger) Info(msg string, args ...any)  { c.l.Info(msg, args...) }
func (c *CharmLogger) Warn(msg string, args ...any)  { c.l.Warn(msg, args...) }
func (c *CharmLogger) Error(msg string, args ...any) { c.l.Error(msg, args...) }

func (c *CharmLogger) With(args ...any) Logger {
	return &CharmLogger{l: c.l.With(args...)}
}

// Nop returns a logger that discards everything; handy in tests.
func Nop() Logger {
	return New(io.Discard, "error", "text")
}
