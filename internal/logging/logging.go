// Package logging builds the leveled logger shared by every command.
package logging

import (
	"crypto/rand"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"
)

// Options configures New.
type Options struct {
	Level     string // debug, info, warn or error
	Verbose   bool
	Quiet     bool
	Format    string // text, json or logfmt
	Timestamp bool
	RunID     string // generated when empty
}

// New returns a logger writing to w with the daynote prefix and a run field.
// Quiet wins over Verbose, and both win over Level.
func New(w io.Writer, opts Options) *log.Logger {
	level := ParseLevel(opts.Level)
	switch {
	case opts.Quiet:
		level = log.WarnLevel
	case opts.Verbose:
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: opts.Timestamp,
		Prefix:          "daynote",
	})
	id := opts.RunID
	if id == "" {
		id = NewRunID()
	}
	return logger.With("run", id)
}

// ParseLevel parses a level name. Unknown names yield info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ValidLevel reports whether level names a known level.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ParseFormatter parses a formatter name. Unknown names yield text.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// ValidFormat reports whether format names a known formatter.
func ValidFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "json", "logfmt":
		return true
	}
	return false
}

// NewRunID returns a fresh ULID identifying one invocation.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
