package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/model"
)

// InsertPRCodeComment records a review comment that is about to be dispatched
// to the review agent.
func (db *DB) InsertPRCodeComment(ctx context.Context, c model.PRCodeComment) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO pr_code_comments (id, repo_name, pr_number, comment_id, body, path, line, author, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.RepoName, c.PRNumber, c.CommentID, c.Body,
		nullStr(c.Path), nullInt(c.Line), nullStr(c.Author), c.Status,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert pr comment: %w", err)
	}
	return nil
}

// ListPRCodeComments returns comments for one pull request, newest first.
func (db *DB) ListPRCodeComments(ctx context.Context, repoName string, prNumber int) ([]model.PRCodeComment, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, repo_name, pr_number, comment_id, body, path, line, author, status, created_at
		 FROM pr_code_comments WHERE repo_name = ? AND pr_number = ?
		 ORDER BY created_at DESC`, repoName, prNumber)
	if err != nil {
		return nil, fmt.Errorf("storage: list pr comments: %w", err)
	}
	defer rows.Close()

	var comments []model.PRCodeComment
	for rows.Next() {
		var (
			c       model.PRCodeComment
			id      string
			path    sql.NullString
			line    sql.NullInt64
			author  sql.NullString
			created string
		)
		if err := rows.Scan(&id, &c.RepoName, &c.PRNumber, &c.CommentID, &c.Body,
			&path, &line, &author, &c.Status, &created); err != nil {
			return nil, fmt.Errorf("storage: scan pr comment: %w", err)
		}
		c.ID, _ = uuid.Parse(id)
		c.Path = path.String
		c.Line = int(line.Int64)
		c.Author = author.String
		c.CreatedAt = parseTime(created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CountPRCodeComments returns the number of stored review comments.
func (db *DB) CountPRCodeComments(ctx context.Context) (int, error) {
	var n int
	if err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pr_code_comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count pr comments: %w", err)
	}
	return n, nil
}
