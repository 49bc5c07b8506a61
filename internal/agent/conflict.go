package agent

import (
	"context"
	"fmt"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// TaskSubmitter accepts work on the task-submission surface. The conflict
// agent delegates there rather than touching storage directly so that
// auto-created tasks go through the same refinement and delegation pipeline
// as dashboard-submitted ones.
type TaskSubmitter interface {
	Submit(ctx context.Context, prompt, repoName string, prNumber int, assignee, provider string) (model.AgentTask, error)
}

// CodeConflictAgent handles unmergeable pull requests by submitting a
// conflict-resolution task for a coding agent to pick up.
type CodeConflictAgent struct {
	tasks TaskSubmitter
	log   *applog.Logger
}

// NewCodeConflictAgent creates the conflict agent.
func NewCodeConflictAgent(tasks TaskSubmitter, log *applog.Logger) *CodeConflictAgent {
	return &CodeConflictAgent{tasks: tasks, log: log.WithSource("conflict_agent")}
}

// ResolveConflict submits a conflict-resolution task for the given pull
// request.
func (a *CodeConflictAgent) ResolveConflict(ctx context.Context, repoName string, prNumber int) error {
	a.log.Info(ctx, "resolving conflict", map[string]any{"repo": repoName, "pr": prNumber})

	prompt := fmt.Sprintf(
		"Resolve the merge conflicts on pull request #%d in %s. Identify the conflicting hunks, reconcile both sides preserving intent, and produce a mergeable branch.",
		prNumber, repoName)

	task, err := a.tasks.Submit(ctx, prompt, repoName, prNumber, "auto-agent", "")
	if err != nil {
		return fmt.Errorf("agent: submit conflict task: %w", err)
	}
	a.log.Info(ctx, "conflict task submitted", map[string]any{"task_id": task.ID.String()})
	return nil
}
