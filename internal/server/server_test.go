package server_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
	"github.com/jmbish04/code-review-bot/internal/server"
	"github.com/jmbish04/code-review-bot/internal/storage"
	"github.com/jmbish04/code-review-bot/internal/tasks"
)

const testSecret = "webhook-secret"

type dispatched struct {
	eventType string
	payload   []byte
}

type captureEvents struct {
	ch chan dispatched
}

func (e *captureEvents) HandleEvent(_ context.Context, eventType string, payload []byte) {
	e.ch <- dispatched{eventType: eventType, payload: payload}
}

func newTestServer(t *testing.T) (*server.Server, *captureEvents, *storage.DB) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	events := &captureEvents{ch: make(chan dispatched, 8)}
	taskSvc := tasks.NewService(db, nil, nil, applog.New(db, logger, "tasks"))

	srv := server.New(server.ServerConfig{
		DB:                  db,
		Events:              events,
		TaskSvc:             taskSvc,
		Logger:              logger,
		WebhookSecret:       testSecret,
		Port:                0,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		MaxRequestBodyBytes: 1 << 20,
	})
	return srv, events, db
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookValidSignatureAccepted(t *testing.T) {
	srv, events, _ := newTestServer(t)

	body := []byte(`{"action":"created"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	req.Header.Set("X-GitHub-Event", "pull_request_review_comment")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case d := <-events.ch:
		assert.Equal(t, "pull_request_review_comment", d.eventType)
		assert.Equal(t, body, d.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestWebhookWrongSignatureRejectedBeforeDispatch(t *testing.T) {
	srv, events, _ := newTestServer(t)

	body := []byte(`{"action":"created"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(make([]byte, 32)))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	select {
	case <-events.ch:
		t.Fatal("unsigned delivery must not be dispatched")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMissingEventHeader(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndGetTask(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := []byte(`{"prompt":"fix the login bug","repo_name":"acme/widgets","pr_number":7,"assignee":"dev"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.AgentTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, model.TaskPending, created.Status)
	assert.Equal(t, "jules", created.Provider)

	getReq := httptest.NewRequest(http.MethodGet, "/api/tasks/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got model.AgentTask
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateTaskRequiresPrompt(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader([]byte(`{"repo_name":"acme/widgets"}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/01234567-89ab-cdef-0123-456789abcdef", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)

	put := httptest.NewRequest(http.MethodPut, "/api/settings",
		bytes.NewReader([]byte(`{"key":"AGENT_PROVIDER","value":"gemini-2.0-flash"}`)))
	putRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(putRec, put)
	require.Equal(t, http.StatusOK, putRec.Code)

	list := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	listRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listRec, list)
	require.Equal(t, http.StatusOK, listRec.Code)

	var settings []model.Setting
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &settings))
	require.Len(t, settings, 1)
	assert.Equal(t, "AGENT_PROVIDER", settings[0].Key)
	assert.Equal(t, "gemini-2.0-flash", settings[0].Value)
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRequestIDHeaderSet(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
