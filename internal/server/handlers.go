package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/github"
	"github.com/jmbish04/code-review-bot/internal/model"
	"github.com/jmbish04/code-review-bot/internal/storage"
	"github.com/jmbish04/code-review-bot/internal/tasks"
)

// EventHandler dispatches one webhook delivery. Implementations run the full
// classify-and-dispatch pipeline; the HTTP layer only verifies and acks.
type EventHandler interface {
	HandleEvent(ctx context.Context, eventType string, payload []byte)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	events              EventHandler
	taskSvc             *tasks.Service
	gh                  *github.Client
	logger              *slog.Logger
	webhookSecret       string
	maxRequestBodyBytes int64
	startedAt           time.Time
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): GitHub.
type HandlersDeps struct {
	DB                  *storage.DB
	Events              EventHandler
	TaskSvc             *tasks.Service
	GitHub              *github.Client
	Logger              *slog.Logger
	WebhookSecret       string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		events:              d.Events,
		taskSvc:             d.TaskSvc,
		gh:                  d.GitHub,
		logger:              d.Logger,
		webhookSecret:       d.WebhookSecret,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		startedAt:           time.Now(),
	}
}

// HandleWebhook handles POST /api/webhooks/github. The signature is verified
// over the raw body before any JSON parsing; valid deliveries are acked
// immediately and dispatched in the background.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("invalid webhook signature", "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		writeError(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}

	// Fire and forget: the caller gets a fast ack; outcomes are observable
	// via the persisted task and deployment records.
	go h.events.HandleEvent(context.WithoutCancel(r.Context()), eventType, body)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// verifySignature checks the sha256= HMAC header against the shared secret
// in constant time.
func (h *Handlers) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if h.webhookSecret == "" || !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// HandleCreateTask handles POST /api/tasks.
func (h *Handlers) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		RepoName string `json:"repo_name"`
		PRNumber int    `json:"pr_number"`
		Assignee string `json:"assignee"`
		Provider string `json:"provider"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	task, err := h.taskSvc.Submit(r.Context(), req.Prompt, req.RepoName, req.PRNumber, req.Assignee, req.Provider)
	if err != nil {
		h.logger.Error("task creation failed", "error", err)
		writeError(w, http.StatusBadGateway, "task creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// HandleListTasks handles GET /api/tasks.
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	listed, err := h.taskSvc.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tasks failed")
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

// HandleGetTask handles GET /api/tasks/{task_id}.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := h.taskSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get task failed")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleListSettings handles GET /api/settings.
func (h *Handlers) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.db.ListSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list settings failed")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpsertSetting handles PUT /api/settings.
func (h *Handlers) HandleUpsertSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := h.db.UpsertSetting(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "upsert setting failed")
		return
	}
	writeJSON(w, http.StatusOK, model.Setting{Key: req.Key, Value: req.Value, UpdatedAt: time.Now().UTC()})
}

// HandleListWebhookEvents handles GET /api/webhooks.
func (h *Handlers) HandleListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	listed, err := h.db.ListWebhookEvents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list webhook events failed")
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

// HandleListPRs handles GET /api/prs/{owner}/{repo}.
func (h *Handlers) HandleListPRs(w http.ResponseWriter, r *http.Request) {
	if h.gh == nil {
		writeError(w, http.StatusServiceUnavailable, "github client not configured")
		return
	}
	prs, err := h.gh.ListOpenPullRequests(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	if err != nil {
		h.logger.Error("list pull requests failed", "error", err)
		writeError(w, http.StatusBadGateway, "list pull requests failed")
		return
	}
	writeJSON(w, http.StatusOK, prs)
}

// HandleListPRComments handles GET /api/prs/{owner}/{repo}/{pr_number}/comments.
func (h *Handlers) HandleListPRComments(w http.ResponseWriter, r *http.Request) {
	if h.gh == nil {
		writeError(w, http.StatusServiceUnavailable, "github client not configured")
		return
	}
	number, err := strconv.Atoi(r.PathValue("pr_number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}
	comments, err := h.gh.ListReviewComments(r.Context(), r.PathValue("owner"), r.PathValue("repo"), number)
	if err != nil {
		h.logger.Error("list review comments failed", "error", err)
		writeError(w, http.StatusBadGateway, "list review comments failed")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}
