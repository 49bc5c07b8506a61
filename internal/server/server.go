package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmbish04/code-review-bot/internal/github"
	"github.com/jmbish04/code-review-bot/internal/storage"
	"github.com/jmbish04/code-review-bot/internal/tasks"
)

// Server is the review bot's HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional (nil-safe): GitHub.
type ServerConfig struct {
	DB      *storage.DB
	Events  EventHandler
	TaskSvc *tasks.Service
	GitHub  *github.Client
	Logger  *slog.Logger

	WebhookSecret       string
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Events:              cfg.Events,
		TaskSvc:             cfg.TaskSvc,
		GitHub:              cfg.GitHub,
		Logger:              cfg.Logger,
		WebhookSecret:       cfg.WebhookSecret,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Webhook receiver (HMAC-authenticated, no other auth).
	mux.HandleFunc("POST /api/webhooks/github", h.HandleWebhook)
	mux.HandleFunc("GET /api/webhooks", h.HandleListWebhookEvents)

	// Task surface.
	mux.HandleFunc("POST /api/tasks", h.HandleCreateTask)
	mux.HandleFunc("GET /api/tasks", h.HandleListTasks)
	mux.HandleFunc("GET /api/tasks/{task_id}", h.HandleGetTask)

	// Settings.
	mux.HandleFunc("GET /api/settings", h.HandleListSettings)
	mux.HandleFunc("PUT /api/settings", h.HandleUpsertSetting)

	// Pull request views.
	mux.HandleFunc("GET /api/prs/{owner}/{repo}", h.HandleListPRs)
	mux.HandleFunc("GET /api/prs/{owner}/{repo}/{pr_number}/comments", h.HandleListPRComments)

	// Health (no auth).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
