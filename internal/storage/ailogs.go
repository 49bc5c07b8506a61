package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// InsertAiLog records one LLM round-trip. Append-only.
func (db *DB) InsertAiLog(ctx context.Context, log model.AiLog) error {
	var taskID any
	if log.TaskID != uuid.Nil {
		taskID = log.TaskID.String()
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO ai_logs (id, task_id, query, response, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID.String(), taskID, log.Query, log.Response, nullStr(log.Provider),
		log.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert ai log: %w", err)
	}
	return nil
}

// ListAiLogsByTask returns the logs tied to one task, oldest first.
func (db *DB) ListAiLogsByTask(ctx context.Context, taskID uuid.UUID) ([]model.AiLog, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, task_id, query, response, provider, created_at
		 FROM ai_logs WHERE task_id = ? ORDER BY created_at ASC`, taskID.String())
	if err != nil {
		return nil, fmt.Errorf("storage: list ai logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AiLog
	for rows.Next() {
		var (
			l        model.AiLog
			id       string
			task     sql.NullString
			provider sql.NullString
			created  string
		)
		if err := rows.Scan(&id, &task, &l.Query, &l.Response, &provider, &created); err != nil {
			return nil, fmt.Errorf("storage: scan ai log: %w", err)
		}
		l.ID, _ = uuid.Parse(id)
		if task.Valid {
			l.TaskID, _ = uuid.Parse(task.String)
		}
		l.Provider = provider.String
		l.CreatedAt = parseTime(created)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
