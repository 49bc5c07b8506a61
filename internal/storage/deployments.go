package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// InsertDeployment creates a deployment-verification row.
func (db *DB) InsertDeployment(ctx context.Context, d model.Deployment) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO deployments (id, repo_name, pr_number, status, verification_status, build_logs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.RepoName, nullInt(d.PRNumber), d.Status,
		d.VerificationStatus, nullStr(d.BuildLogs),
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert deployment: %w", err)
	}
	return nil
}

// FinalizeDeployment records the terminal status of a verification run.
func (db *DB) FinalizeDeployment(ctx context.Context, id uuid.UUID, status, verificationStatus string) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE deployments SET status = ?, verification_status = ? WHERE id = ?`,
		status, verificationStatus, id.String())
	if err != nil {
		return fmt.Errorf("storage: finalize deployment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDeployment fetches a deployment by ID.
func (db *DB) GetDeployment(ctx context.Context, id uuid.UUID) (model.Deployment, error) {
	var (
		d       model.Deployment
		rowID   string
		prNum   sql.NullInt64
		logs    sql.NullString
		created string
	)
	err := db.sql.QueryRowContext(ctx,
		`SELECT id, repo_name, pr_number, status, verification_status, build_logs, created_at
		 FROM deployments WHERE id = ?`, id.String()).
		Scan(&rowID, &d.RepoName, &prNum, &d.Status, &d.VerificationStatus, &logs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Deployment{}, ErrNotFound
	}
	if err != nil {
		return model.Deployment{}, fmt.Errorf("storage: get deployment: %w", err)
	}
	d.ID, _ = uuid.Parse(rowID)
	d.PRNumber = int(prNum.Int64)
	d.BuildLogs = logs.String
	d.CreatedAt = parseTime(created)
	return d, nil
}
