package tasks_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
	"github.com/jmbish04/code-review-bot/internal/storage"
	"github.com/jmbish04/code-review-bot/internal/tasks"
)

type staticRefiner struct {
	out string
}

func (r staticRefiner) Refine(_ context.Context, raw, _ string) string {
	if r.out == "" {
		return raw
	}
	return r.out
}

type fakeDelegate struct {
	err       error
	submitted []string
}

func (d *fakeDelegate) SubmitTask(_ context.Context, task, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.submitted = append(d.submitted, task)
	return nil
}

func newService(t *testing.T, refiner tasks.Refiner, delegate tasks.Delegator) (*tasks.Service, *storage.DB) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return tasks.NewService(db, refiner, delegate, applog.New(db, logger, "tasks")), db
}

func TestSubmitDelegatesAndMarksInProgress(t *testing.T) {
	delegate := &fakeDelegate{}
	svc, _ := newService(t, staticRefiner{out: "refined prompt"}, delegate)

	task, err := svc.Submit(context.Background(), "raw prompt", "acme/widgets", 7, "auto-agent", "")
	require.NoError(t, err)

	assert.Equal(t, model.TaskInProgress, task.Status)
	assert.Equal(t, "raw prompt", task.Prompt)
	assert.Equal(t, "refined prompt", task.RefinedPrompt)
	assert.Equal(t, "jules", task.Provider)
	// The delegate received the refined prompt, not the raw one.
	require.Len(t, delegate.submitted, 1)
	assert.Equal(t, "refined prompt", delegate.submitted[0])
}

func TestSubmitDelegationFailureRollsForwardToFailed(t *testing.T) {
	delegate := &fakeDelegate{err: errors.New("jules: status 502")}
	svc, db := newService(t, nil, delegate)

	_, err := svc.Submit(context.Background(), "raw prompt", "acme/widgets", 7, "auto-agent", "")
	require.Error(t, err)

	// No orphaned pending row: the task was rolled forward to failed.
	listed, err := db.ListTasks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.TaskFailed, listed[0].Status)
}

func TestSubmitRefinementFailureIsFailOpen(t *testing.T) {
	delegate := &fakeDelegate{}
	// A refiner that hands back the original simulates a failed refinement.
	svc, _ := newService(t, staticRefiner{}, delegate)

	task, err := svc.Submit(context.Background(), "raw prompt", "acme/widgets", 7, "auto-agent", "gemini-2.0-flash")
	require.NoError(t, err)

	assert.Equal(t, model.TaskInProgress, task.Status)
	assert.Equal(t, "raw prompt", task.RefinedPrompt)
	assert.Equal(t, "gemini-2.0-flash", task.Provider)
}

func TestSubmitWithoutDelegateStaysLocal(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	task, err := svc.Submit(context.Background(), "raw prompt", "acme/widgets", 0, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)
}

func TestSubmitRequiresPrompt(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	_, err := svc.Submit(context.Background(), "", "acme/widgets", 0, "", "")
	require.Error(t, err)
}

func TestGetAndList(t *testing.T) {
	svc, _ := newService(t, nil, nil)

	created, err := svc.Submit(context.Background(), "prompt one", "acme/widgets", 1, "", "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	listed, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
