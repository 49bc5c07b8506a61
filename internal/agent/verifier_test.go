package agent_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/agent"
	"github.com/jmbish04/code-review-bot/internal/cloudflare"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// fakeDeployStore captures deployment writes.
type fakeDeployStore struct {
	inserted  []model.Deployment
	finalized []finalizeCall
}

type finalizeCall struct {
	id                 uuid.UUID
	status             string
	verificationStatus string
}

func (s *fakeDeployStore) InsertDeployment(_ context.Context, d model.Deployment) error {
	s.inserted = append(s.inserted, d)
	return nil
}

func (s *fakeDeployStore) FinalizeDeployment(_ context.Context, id uuid.UUID, status, verificationStatus string) error {
	s.finalized = append(s.finalized, finalizeCall{id: id, status: status, verificationStatus: verificationStatus})
	return nil
}

// scriptedProbe returns observability per call index; extra calls repeat the
// last entry.
type scriptedProbe struct {
	observability []bool
	calls         int
	scripts       []string
}

func (p *scriptedProbe) CheckWorker(_ context.Context, scriptName string) cloudflare.WorkerStatus {
	p.scripts = append(p.scripts, scriptName)
	i := p.calls
	p.calls++
	if i >= len(p.observability) {
		i = len(p.observability) - 1
	}
	return cloudflare.WorkerStatus{ScriptName: scriptName, Healthy: true, Observability: p.observability[i]}
}

func TestVerifySucceedsOnFirstHealthyAttempt(t *testing.T) {
	store := &fakeDeployStore{}
	probe := &scriptedProbe{observability: []bool{false, false, true}}
	v := agent.NewDeploymentVerifier(store, probe, testLogger(), 5, 0)

	require.NoError(t, v.Verify(context.Background(), "acme/widgets", 7))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, model.DeployPending, store.inserted[0].Status)
	assert.Equal(t, model.VerifyScanning, store.inserted[0].VerificationStatus)

	require.Len(t, store.finalized, 1)
	assert.Equal(t, store.inserted[0].ID, store.finalized[0].id)
	assert.Equal(t, model.DeploySuccess, store.finalized[0].status)
	assert.Equal(t, model.VerifyVerified, store.finalized[0].verificationStatus)
	assert.Equal(t, 3, probe.calls)
	// The worker name is the bare repo, not owner/repo.
	assert.Equal(t, "widgets", probe.scripts[0])
}

func TestVerifyExhaustsBudgetAndFails(t *testing.T) {
	store := &fakeDeployStore{}
	probe := &scriptedProbe{observability: []bool{false}}
	v := agent.NewDeploymentVerifier(store, probe, testLogger(), 5, 0)

	require.NoError(t, v.Verify(context.Background(), "acme/widgets", 7))

	assert.Equal(t, 5, probe.calls, "attempt budget is exactly 5")
	require.Len(t, store.finalized, 1)
	assert.Equal(t, model.DeployFailure, store.finalized[0].status)
	assert.Equal(t, model.VerifyFailed, store.finalized[0].verificationStatus)
}

func TestVerifyNeverLeavesPending(t *testing.T) {
	store := &fakeDeployStore{}
	probe := &scriptedProbe{observability: []bool{false}}
	v := agent.NewDeploymentVerifier(store, probe, testLogger(), 1, 0)

	require.NoError(t, v.Verify(context.Background(), "acme/widgets", 7))
	require.Len(t, store.finalized, 1, "every run finalizes exactly once")
}

func TestVerifyCancelledContextStillFinalizes(t *testing.T) {
	store := &fakeDeployStore{}
	probe := &scriptedProbe{observability: []bool{false}}
	v := agent.NewDeploymentVerifier(store, probe, testLogger(), 5, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, v.Verify(ctx, "acme/widgets", 7))

	require.Len(t, store.finalized, 1)
	assert.Equal(t, model.DeployFailure, store.finalized[0].status)
}
