package flatskip

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the field names the index uses.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

func (l *Logger) logBuild(records, entries, bytes int, err error) {
	if err != nil {
		l.Error("build failed", "records", records, "error", err)
		return
	}
	l.Debug("build completed", "records", records, "entry_points", entries, "bytes", bytes)
}

func (l *Logger) logDecodeFailure(pos uint32, err error) {
	l.Warn("record decode failed", "position", pos, "error", err)
}

func (l *Logger) logLoad(records int, compression Compression, err error) {
	if err != nil {
		l.Error("snapshot load failed", "error", err)
		return
	}
	l.Debug("snapshot loaded", "records", records, "compression", compression.String())
}
