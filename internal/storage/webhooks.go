package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// InsertWebhookEvent records one inbound webhook delivery. Append-only.
func (db *DB) InsertWebhookEvent(ctx context.Context, event model.WebhookEvent) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO github_webhooks (id, event, payload, processed, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ID.String(), event.EventType, string(event.Payload),
		boolToInt(event.Processed), event.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert webhook event: %w", err)
	}
	return nil
}

// ListWebhookEvents returns the most recent webhook events, newest first.
func (db *DB) ListWebhookEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, event, payload, processed, created_at
		 FROM github_webhooks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list webhook events: %w", err)
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		var (
			e         model.WebhookEvent
			id        string
			payload   string
			processed int
			created   string
		)
		if err := rows.Scan(&id, &e.EventType, &payload, &processed, &created); err != nil {
			return nil, fmt.Errorf("storage: scan webhook event: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		e.Payload = []byte(payload)
		e.Processed = processed != 0
		e.CreatedAt = parseTime(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountWebhookEvents returns the total number of stored webhook events.
func (db *DB) CountWebhookEvents(ctx context.Context) (int, error) {
	var n int
	if err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM github_webhooks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count webhook events: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
