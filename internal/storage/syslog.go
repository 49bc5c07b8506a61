package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// InsertSystemLog persists one application log line.
func (db *DB) InsertSystemLog(ctx context.Context, l model.SystemLog) error {
	var metadata any
	if len(l.Metadata) > 0 {
		metadata = string(l.Metadata)
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO system_logs (id, level, message, source, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.Level, l.Message, l.Source, metadata,
		l.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert system log: %w", err)
	}
	return nil
}
