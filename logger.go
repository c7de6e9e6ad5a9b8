package tigstore

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers for consistent field
// names across operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is nil,
// a text handler to stderr at Info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON logs at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))}
}

// WithTigID tags the logger with a tig identifier.
func (l *Logger) WithTigID(id uint32) *Logger {
	return &Logger{Logger: l.Logger.With("tig", id)}
}

// WithVersion tags the logger with a store version.
func (l *Logger) WithVersion(v uint32) *Logger {
	return &Logger{Logger: l.Logger.With("version", v)}
}

// LogFlush logs a flush of one cached tig to disk.
func (l *Logger) LogFlush(id uint32, version uint32, offset uint64, err error) {
	if err != nil {
		l.Error("flush failed", "tig", id, "version", version, "error", err)
	} else {
		l.Debug("flushed tig", "tig", id, "version", version, "offset", offset)
	}
}

// LogVersionTransition logs a completed version transition.
func (l *Logger) LogVersionTransition(from, to uint32) {
	l.Info("advanced store version", "from", from, "to", to)
}

// LogCompaction logs the outcome of a compaction run.
func (l *Logger) LogCompaction(version uint32, records uint64, reclaimed int64, err error) {
	if err != nil {
		l.Error("compaction failed", "version", version, "error", err)
	} else {
		l.Info("compacted data file", "version", version, "records", records, "reclaimed_bytes", reclaimed)
	}
}
