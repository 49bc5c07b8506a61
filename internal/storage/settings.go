package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// GetSetting looks up a setting value by key. Returns ErrNotFound when the
// key is absent.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.sql.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: get setting %s: %w", key, err)
	}
	return value, nil
}

// UpsertSetting writes a setting, last-write-wins.
func (db *DB) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: upsert setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all settings ordered by key.
func (db *DB) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: list settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var (
			s       model.Setting
			updated string
		)
		if err := rows.Scan(&s.Key, &s.Value, &updated); err != nil {
			return nil, fmt.Errorf("storage: scan setting: %w", err)
		}
		s.UpdatedAt = parseTime(updated)
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
