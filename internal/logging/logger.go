// Package logging builds the structured loggers used across pagetext.
// It wraps Go's log/slog package; every component tags its records with a
// "component" attribute and run-scoped code adds "run_id".
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/markdave123-py/pagetext/internal/core"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Log formats supported by the logger
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w (stderr when nil).
//
// level is one of DEBUG, INFO, WARN, ERROR (case-insensitive, INFO when unknown).
// format is "json" or "text" (text when unknown).
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogSink turns orchestrator events into log records. Background runs use it
// where the CLI renders a console progress line.
type LogSink struct {
	log *slog.Logger
}

var _ core.ProgressSink = (*LogSink)(nil)

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = Discard()
	}
	return &LogSink{log: log}
}

// OnEvent is safe for concurrent use; slog handlers serialize writes.
func (s *LogSink) OnEvent(ev core.Event) {
	args := []any{"event", ev.Kind.String(), "index", ev.Index, "start_page", ev.Start, "end_page", ev.End}

	switch ev.Kind {
	case core.EventStarted:
		s.log.Debug("range started", args...)
	case core.EventProgress:
		s.log.Info("run progress", append(args, "percent", ev.Percent)...)
	case core.EventRateLimited:
		s.log.Warn("range backing off", append(args, "attempt", ev.Attempt, "wait_seconds", ev.Wait, "reason", ev.Message)...)
	case core.EventCompleted:
		s.log.Debug("range completed", append(args, "attempt", ev.Attempt, "chars", ev.Chars)...)
	case core.EventFailed:
		s.log.Error("range failed", append(args, "attempt", ev.Attempt, "reason", ev.Message)...)
	}
}
