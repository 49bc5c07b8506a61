package tasks_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/tasks"
)

func TestJulesClientSubmitTask(t *testing.T) {
	var gotBody map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := tasks.NewJulesClient(srv.URL, "key-1")
	err := c.SubmitTask(context.Background(), "resolve the conflict", "https://github.com/acme/widgets/pull/7")
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "resolve the conflict", gotBody["task"])
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", gotBody["pr_url"])
}

func TestJulesClientSubmitTaskUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := tasks.NewJulesClient(srv.URL, "key-1")
	err := c.SubmitTask(context.Background(), "task", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
