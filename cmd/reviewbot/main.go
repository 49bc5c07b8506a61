package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jmbish04/code-review-bot/internal/agent"
	"github.com/jmbish04/code-review-bot/internal/ai"
	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/cloudflare"
	"github.com/jmbish04/code-review-bot/internal/config"
	"github.com/jmbish04/code-review-bot/internal/events"
	"github.com/jmbish04/code-review-bot/internal/github"
	"github.com/jmbish04/code-review-bot/internal/server"
	"github.com/jmbish04/code-review-bot/internal/storage"
	"github.com/jmbish04/code-review-bot/internal/tasks"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("REVIEWBOT_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("reviewbot starting", "version", version, "port", cfg.Port)

	db, err := storage.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	gateway := ai.New(ai.Config{
		AnthropicAPIKey:     cfg.AnthropicAPIKey,
		OpenAIAPIKey:        cfg.OpenAIAPIKey,
		GeminiAPIKey:        cfg.GeminiAPIKey,
		CloudflareAPIToken:  cfg.CloudflareAPIToken,
		CloudflareAccountID: cfg.CloudflareAccountID,
		CloudflareBaseURL:   cfg.CloudflareBaseURL,
	})

	gh, err := github.NewClient(cfg.GitHubToken, cfg.GitHubAPIBaseURL)
	if err != nil {
		return fmt.Errorf("github: %w", err)
	}

	probe := cloudflare.NewProbe(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, cfg.CloudflareBaseURL, logger)

	syslog := applog.New(db, logger, "main")

	// Agent model resolution consults the settings table first, then the
	// AGENT_PROVIDER environment value, so each base is constructed against
	// live settings at startup.
	reviewBase := agent.NewBase(ctx, "review_bot", gateway, db, cfg.AgentModel, syslog)
	configBase := agent.NewBase(ctx, "configuration_agent", gateway, db, cfg.AgentModel, syslog)
	improverBase := agent.NewBase(ctx, "prompt_improver", gateway, db, cfg.AgentModel, syslog)

	reviewBot := agent.NewReviewBot(reviewBase, db, gh, cfg.FixProvider)
	configAgent := agent.NewConfigurationAgent(configBase, gh)
	improver := agent.NewPromptImprover(improverBase)
	verifier := agent.NewDeploymentVerifier(db, probe, syslog, cfg.VerifyMaxAttempts, cfg.VerifyRetryDelay)

	// Delegation to the coding-agent proxy is optional; without it, submitted
	// tasks stay queued for manual pickup.
	var delegate tasks.Delegator
	if cfg.JulesBaseURL != "" {
		delegate = tasks.NewJulesClient(cfg.JulesBaseURL, cfg.JulesAPIKey)
		logger.Info("task delegation: jules", "url", cfg.JulesBaseURL)
	} else {
		logger.Info("task delegation: disabled (no JULES_BASE_URL)")
	}
	taskSvc := tasks.NewService(db, improver, delegate, syslog)

	conflictAgent := agent.NewCodeConflictAgent(taskSvc, syslog)

	manager := events.NewManager(events.Config{
		Store:         db,
		Gateway:       gateway,
		ClassifyModel: reviewBase.Model(),
		MentionToken:  cfg.MentionToken,
		Review:        reviewBot,
		Verifier:      verifier,
		ConfigAgent:   configAgent,
		Conflict:      conflictAgent,
		Log:           syslog,
	})

	srv := server.New(server.ServerConfig{
		DB:                  db,
		Events:              manager,
		TaskSvc:             taskSvc,
		GitHub:              gh,
		Logger:              logger,
		WebhookSecret:       cfg.WebhookSecret,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting new deliveries and drain in-flight
	// requests. Background dispatches hold an uncancelled context and finish
	// on their own; their outcomes are already persisted as they happen.
	slog.Info("reviewbot shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("reviewbot stopped")
	return nil
}
