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

// InsertTask creates a new agent task row.
func (db *DB) InsertTask(ctx context.Context, task model.AgentTask) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO agent_tasks
		 (id, prompt, refined_prompt, provider, status, repo_name, pr_number, assignee, result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(), task.Prompt, nullStr(task.RefinedPrompt), task.Provider,
		string(task.Status), nullStr(task.RepoName), nullInt(task.PRNumber),
		nullStr(task.Assignee), nullStr(task.Result),
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		task.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert task: %w", err)
	}
	return nil
}

// GetTask fetches a task by ID.
func (db *DB) GetTask(ctx context.Context, id uuid.UUID) (model.AgentTask, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT id, prompt, refined_prompt, provider, status, repo_name, pr_number, assignee, result, created_at, updated_at
		 FROM agent_tasks WHERE id = ?`, id.String())
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AgentTask{}, ErrNotFound
	}
	if err != nil {
		return model.AgentTask{}, fmt.Errorf("storage: get task: %w", err)
	}
	return task, nil
}

// ListTasks returns the most recent tasks, newest first.
func (db *DB) ListTasks(ctx context.Context, limit int) ([]model.AgentTask, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, prompt, refined_prompt, provider, status, repo_name, pr_number, assignee, result, created_at, updated_at
		 FROM agent_tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.AgentTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus moves a task to a new status and optionally records a
// result. The transition must be forward per model.TaskStatus.CanTransition;
// backward moves return ErrInvalidTransition.
func (db *DB) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus, result string) error {
	task, err := db.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !task.Status.CanTransition(status) {
		return fmt.Errorf("storage: task %s: %s -> %s: %w", id, task.Status, status, ErrInvalidTransition)
	}
	_, err = db.sql.ExecContext(ctx,
		`UPDATE agent_tasks SET status = ?, result = COALESCE(NULLIF(?, ''), result), updated_at = ?
		 WHERE id = ?`,
		string(status), result, time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("storage: update task status: %w", err)
	}
	return nil
}

// UpdateTaskRefinedPrompt records the refined prompt for a task.
func (db *DB) UpdateTaskRefinedPrompt(ctx context.Context, id uuid.UUID, refined string) error {
	_, err := db.sql.ExecContext(ctx,
		`UPDATE agent_tasks SET refined_prompt = ?, updated_at = ? WHERE id = ?`,
		refined, time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("storage: update refined prompt: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.AgentTask, error) {
	var (
		task     model.AgentTask
		id       string
		refined  sql.NullString
		status   string
		repo     sql.NullString
		prNum    sql.NullInt64
		assignee sql.NullString
		result   sql.NullString
		created  string
		updated  string
	)
	err := row.Scan(&id, &task.Prompt, &refined, &task.Provider, &status,
		&repo, &prNum, &assignee, &result, &created, &updated)
	if err != nil {
		return model.AgentTask{}, err
	}
	task.ID, _ = uuid.Parse(id)
	task.RefinedPrompt = refined.String
	task.Status = model.TaskStatus(status)
	task.RepoName = repo.String
	task.PRNumber = int(prNum.Int64)
	task.Assignee = assignee.String
	task.Result = result.String
	task.CreatedAt = parseTime(created)
	task.UpdatedAt = parseTime(updated)
	return task, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
