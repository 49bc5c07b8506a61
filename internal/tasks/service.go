// Package tasks implements the task-submission surface: accepting a prompt,
// refining it best-effort, persisting the task, and delegating it to the
// external coding agent.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// Store is the slice of the storage layer the service uses.
type Store interface {
	InsertTask(ctx context.Context, task model.AgentTask) error
	GetTask(ctx context.Context, id uuid.UUID) (model.AgentTask, error)
	ListTasks(ctx context.Context, limit int) ([]model.AgentTask, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus, result string) error
	UpdateTaskRefinedPrompt(ctx context.Context, id uuid.UUID, refined string) error
}

// Refiner rewrites a raw prompt. Refinement is best-effort; implementations
// return the original prompt on failure.
type Refiner interface {
	Refine(ctx context.Context, rawPrompt, repoName string) string
}

// Delegator hands a task to the external coding agent.
type Delegator interface {
	SubmitTask(ctx context.Context, task, prURL string) error
}

// Service accepts work from the dashboard and from the event manager's
// auto-created tasks.
type Service struct {
	store    Store
	refiner  Refiner
	delegate Delegator // nil means tasks wait in pending for manual pickup
	log      *applog.Logger
}

// NewService creates the task service. refiner and delegate may be nil.
func NewService(store Store, refiner Refiner, delegate Delegator, log *applog.Logger) *Service {
	return &Service{
		store:    store,
		refiner:  refiner,
		delegate: delegate,
		log:      log.WithSource("tasks"),
	}
}

// Submit creates a task in pending, refines the prompt fail-open, and
// delegates it. Delegation failure rolls the row forward to failed so that no
// orphaned pending record survives; delegation success moves it to
// in_progress. Without a configured delegate the task stays pending.
func (s *Service) Submit(ctx context.Context, prompt, repoName string, prNumber int, assignee, provider string) (model.AgentTask, error) {
	if prompt == "" {
		return model.AgentTask{}, fmt.Errorf("tasks: prompt is required")
	}
	if provider == "" {
		provider = "jules"
	}

	now := time.Now().UTC()
	task := model.AgentTask{
		ID:        uuid.New(),
		Prompt:    prompt,
		Provider:  provider,
		Status:    model.TaskPending,
		RepoName:  repoName,
		PRNumber:  prNumber,
		Assignee:  assignee,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return model.AgentTask{}, fmt.Errorf("tasks: create task: %w", err)
	}

	if s.refiner != nil {
		if err := s.store.UpdateTaskStatus(ctx, task.ID, model.TaskRefining, ""); err != nil {
			s.log.Warn(ctx, "refining transition failed", map[string]any{
				"task_id": task.ID.String(), "error": err.Error(),
			})
		}
	}
	task.RefinedPrompt = s.refine(ctx, task)

	if s.delegate == nil {
		return s.current(ctx, task)
	}

	if err := s.delegate.SubmitTask(ctx, task.RefinedPrompt, ""); err != nil {
		s.log.Error(ctx, "task delegation failed", map[string]any{
			"task_id": task.ID.String(), "error": err.Error(),
		})
		if ferr := s.store.UpdateTaskStatus(ctx, task.ID, model.TaskFailed, ""); ferr != nil {
			s.log.Error(ctx, "task rollforward failed", map[string]any{
				"task_id": task.ID.String(), "error": ferr.Error(),
			})
		}
		return model.AgentTask{}, fmt.Errorf("tasks: delegate task: %w", err)
	}

	if err := s.store.UpdateTaskStatus(ctx, task.ID, model.TaskInProgress, ""); err != nil {
		return model.AgentTask{}, fmt.Errorf("tasks: mark in progress: %w", err)
	}
	return s.current(ctx, task)
}

// refine runs the best-effort refinement step. Any failure keeps the original
// prompt; the task keeps moving either way.
func (s *Service) refine(ctx context.Context, task model.AgentTask) string {
	refined := task.Prompt
	if s.refiner == nil {
		return refined
	}

	refined = s.refiner.Refine(ctx, task.Prompt, task.RepoName)
	if refined == "" {
		refined = task.Prompt
	}
	if err := s.store.UpdateTaskRefinedPrompt(ctx, task.ID, refined); err != nil {
		s.log.Warn(ctx, "refined prompt persist failed", map[string]any{
			"task_id": task.ID.String(), "error": err.Error(),
		})
	}
	return refined
}

func (s *Service) current(ctx context.Context, task model.AgentTask) (model.AgentTask, error) {
	got, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return task, nil
	}
	return got, nil
}

// Get returns one task by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.AgentTask, error) {
	return s.store.GetTask(ctx, id)
}

// List returns recent tasks, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]model.AgentTask, error) {
	return s.store.ListTasks(ctx, limit)
}
