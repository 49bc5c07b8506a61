// Package applog records application events both to structured logs and to
// the system_logs table, tagged with the component that emitted them.
package applog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// Store is the subset of the storage layer the logger needs.
type Store interface {
	InsertSystemLog(ctx context.Context, l model.SystemLog) error
}

// Logger tees log lines to slog and to the database. Database failures
// degrade to slog-only; logging never propagates an error to the caller.
type Logger struct {
	store  Store
	logger *slog.Logger
	source string
}

// New creates a logger tagged with the given source component name.
func New(store Store, logger *slog.Logger, source string) *Logger {
	return &Logger{store: store, logger: logger, source: source}
}

// WithSource returns a logger that records under a different source tag,
// sharing the same store and slog sink.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{store: l.store, logger: l.logger, source: source}
}

// Info records an informational event.
func (l *Logger) Info(ctx context.Context, message string, metadata map[string]any) {
	l.record(ctx, slog.LevelInfo, "INFO", message, metadata)
}

// Warn records a warning.
func (l *Logger) Warn(ctx context.Context, message string, metadata map[string]any) {
	l.record(ctx, slog.LevelWarn, "WARN", message, metadata)
}

// Error records an error event.
func (l *Logger) Error(ctx context.Context, message string, metadata map[string]any) {
	l.record(ctx, slog.LevelError, "ERROR", message, metadata)
}

func (l *Logger) record(ctx context.Context, slogLevel slog.Level, level, message string, metadata map[string]any) {
	attrs := []any{"source", l.source}
	for k, v := range metadata {
		attrs = append(attrs, k, v)
	}
	l.logger.Log(ctx, slogLevel, message, attrs...)

	var raw []byte
	if len(metadata) > 0 {
		raw, _ = json.Marshal(metadata)
	}
	entry := model.SystemLog{
		ID:        uuid.New(),
		Level:     level,
		Message:   message,
		Source:    l.source,
		Metadata:  raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.InsertSystemLog(ctx, entry); err != nil {
		l.logger.Warn("system log persist failed", "source", l.source, "error", err)
	}
}
