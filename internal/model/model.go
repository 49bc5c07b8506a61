// Package model defines the persisted entities shared across the service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is an append-only audit record of one inbound webhook delivery.
// Created before classification is attempted and never mutated afterwards.
// The Processed flag is reserved for future de-duplication; nothing reads it.
type WebhookEvent struct {
	ID        uuid.UUID `json:"id"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// PRCodeComment records a pull request review comment that triggered the
// review agent. One row per comment event, written before dispatch.
type PRCodeComment struct {
	ID        uuid.UUID `json:"id"`
	RepoName  string    `json:"repo_name"`
	PRNumber  int       `json:"pr_number"`
	CommentID int64     `json:"comment_id"`
	Body      string    `json:"body"`
	Path      string    `json:"path,omitempty"`
	Line      int       `json:"line,omitempty"`
	Author    string    `json:"author,omitempty"`
	Status    string    `json:"status"` // "open" or "resolved"
	CreatedAt time.Time `json:"created_at"`
}

// TaskStatus is the lifecycle state of an AgentTask.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskRefining   TaskStatus = "refining"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// taskRank orders statuses along the forward-only lifecycle. Terminal states
// share the highest rank so neither can replace the other.
var taskRank = map[TaskStatus]int{
	TaskPending:    0,
	TaskRefining:   1,
	TaskInProgress: 2,
	TaskCompleted:  3,
	TaskFailed:     3,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskRank[s]
	return ok
}

// Terminal reports whether s is a terminal status.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether moving from s to next is a forward transition.
// A task never moves back toward pending and never leaves a terminal state.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return taskRank[next] > taskRank[s]
}

// AgentTask is a unit of work accepted from the dashboard or auto-created by
// the event manager. Owned by the call path that created it.
type AgentTask struct {
	ID            uuid.UUID  `json:"id"`
	Prompt        string     `json:"prompt"`
	RefinedPrompt string     `json:"refined_prompt,omitempty"`
	Provider      string     `json:"provider"`
	Status        TaskStatus `json:"status"`
	RepoName      string     `json:"repo_name,omitempty"`
	PRNumber      int        `json:"pr_number,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	Result        string     `json:"result,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AiLog is an append-only record of one LLM round-trip made while gathering
// documentation context. Many logs may reference one task.
type AiLog struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id,omitempty"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Deployment statuses. A verification run is created pending/scanning and
// finalized exactly once to success/verified or failure/failed.
const (
	DeployPending = "pending"
	DeploySuccess = "success"
	DeployFailure = "failure"

	VerifyScanning = "scanning"
	VerifyVerified = "verified"
	VerifyFailed   = "failed"
)

// Deployment is one deployment-verification attempt.
type Deployment struct {
	ID                 uuid.UUID `json:"id"`
	RepoName           string    `json:"repo_name"`
	PRNumber           int       `json:"pr_number,omitempty"`
	Status             string    `json:"status"`
	VerificationStatus string    `json:"verification_status"`
	BuildLogs          string    `json:"build_logs,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Setting is one process-wide configuration entry, keyed by string.
// Upserts are last-write-wins.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SystemLog is one persisted application log line.
type SystemLog struct {
	ID        uuid.UUID `json:"id"`
	Level     string    `json:"level"` // INFO, WARN, ERROR
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
