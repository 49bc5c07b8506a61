package cloudflare_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmbish04/code-review-bot/internal/cloudflare"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCheckWorkerHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/workers/scripts/my-worker/settings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result": map[string]any{
				"bindings": []map[string]any{
					{"type": "d1", "name": "DB"},
					{"type": "kv_namespace", "name": "CACHE"},
				},
				"observability": map[string]any{"enabled": true},
			},
		})
	}))
	defer srv.Close()

	p := cloudflare.NewProbe("tok", "acct-1", srv.URL, discard())
	status := p.CheckWorker(context.Background(), "my-worker")
	assert.True(t, status.Healthy)
	assert.True(t, status.Observability)
	assert.Equal(t, []string{"d1:DB", "kv_namespace:CACHE"}, status.Bindings)
}

func TestCheckWorkerAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 10007, "message": "workers.api.error.script_not_found"}},
		})
	}))
	defer srv.Close()

	p := cloudflare.NewProbe("tok", "acct-1", srv.URL, discard())
	status := p.CheckWorker(context.Background(), "missing-worker")
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Detail, "10007")
}

func TestCheckWorkerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := cloudflare.NewProbe("tok", "acct-1", srv.URL, discard())
	status := p.CheckWorker(context.Background(), "my-worker")
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Detail, "403")
}

func TestCheckWorkerTransportFailureAssumesHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := cloudflare.NewProbe("tok", "acct-1", srv.URL, discard())
	status := p.CheckWorker(context.Background(), "my-worker")
	assert.True(t, status.Healthy)
	assert.True(t, status.Observability)
	assert.Contains(t, status.Detail, "assuming healthy")
}
