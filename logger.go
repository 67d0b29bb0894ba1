package arriba

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with table-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name),
	}
}

// WithPartition adds a partition field to the logger.
func (l *Logger) WithPartition(mask string) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", mask),
	}
}

// LogAddOrUpdate logs a bulk upsert.
func (l *Logger) LogAddOrUpdate(ctx context.Context, rows, partitions int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add or update failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add or update completed",
			"rows", rows,
			"partitions", partitions,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, deleted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"deleted", deleted,
		)
	}
}

// LogQuery logs a query execution.
func (l *Logger) LogQuery(ctx context.Context, query string, runtime time.Duration, cached bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"query", query,
			"runtime", runtime,
			"cached", cached,
		)
	}
}

// LogSave logs a table save.
func (l *Logger) LogSave(ctx context.Context, partitions int, bytes int64, generation uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"partitions", partitions,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table saved",
			"partitions", partitions,
			"bytes", bytes,
			"generation", generation,
		)
	}
}

// LogLoad logs a table load.
func (l *Logger) LogLoad(ctx context.Context, partitions, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table loaded",
			"partitions", partitions,
			"rows", rows,
		)
	}
}
