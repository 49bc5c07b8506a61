package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/cloudflare"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// DeployStore is the slice of the storage layer the verifier writes to.
type DeployStore interface {
	InsertDeployment(ctx context.Context, d model.Deployment) error
	FinalizeDeployment(ctx context.Context, id uuid.UUID, status, verificationStatus string) error
}

// WorkerProbe reports the health of a deployed Worker script.
type WorkerProbe interface {
	CheckWorker(ctx context.Context, scriptName string) cloudflare.WorkerStatus
}

// DeploymentVerifier re-checks a deployment's health proxy a bounded number
// of times and records exactly one terminal outcome. The inter-attempt delay
// is configurable so tests can run the loop flat out.
type DeploymentVerifier struct {
	store       DeployStore
	probe       WorkerProbe
	log         *applog.Logger
	maxAttempts int
	retryDelay  time.Duration
}

// NewDeploymentVerifier creates the verifier. maxAttempts below 1 is clamped
// to 1.
func NewDeploymentVerifier(store DeployStore, probe WorkerProbe, log *applog.Logger, maxAttempts int, retryDelay time.Duration) *DeploymentVerifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DeploymentVerifier{
		store:       store,
		probe:       probe,
		log:         log.WithSource("deployment_verifier"),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Verify creates a pending deployment record, polls the health proxy up to
// the attempt budget, and finalizes the record to success/verified or
// failure/failed. The record never stays pending past the budget.
func (v *DeploymentVerifier) Verify(ctx context.Context, repoName string, prNumber int) error {
	v.log.Info(ctx, "starting deployment verification", map[string]any{
		"repo": repoName, "pr": prNumber,
	})

	record := model.Deployment{
		ID:                 uuid.New(),
		RepoName:           repoName,
		PRNumber:           prNumber,
		Status:             model.DeployPending,
		VerificationStatus: model.VerifyScanning,
		CreatedAt:          time.Now().UTC(),
	}
	if err := v.store.InsertDeployment(ctx, record); err != nil {
		return fmt.Errorf("agent: create deployment record: %w", err)
	}

	workerName := repoName
	if _, repo, ok := splitRepo(repoName); ok {
		workerName = repo
	}

	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		status := v.probe.CheckWorker(ctx, workerName)
		if status.Observability {
			v.log.Info(ctx, "deployment looks healthy", map[string]any{
				"worker": workerName, "attempt": attempt,
			})
			if err := v.store.FinalizeDeployment(ctx, record.ID, model.DeploySuccess, model.VerifyVerified); err != nil {
				return fmt.Errorf("agent: finalize deployment: %w", err)
			}
			return nil
		}
		if attempt < v.maxAttempts {
			if err := v.wait(ctx); err != nil {
				break
			}
		}
	}

	v.log.Warn(ctx, "deployment verification exhausted attempt budget", map[string]any{
		"worker": workerName, "attempts": v.maxAttempts,
	})
	if err := v.store.FinalizeDeployment(ctx, record.ID, model.DeployFailure, model.VerifyFailed); err != nil {
		return fmt.Errorf("agent: finalize deployment: %w", err)
	}
	return nil
}

func (v *DeploymentVerifier) wait(ctx context.Context) error {
	if v.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(v.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
