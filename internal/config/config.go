// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database settings.
	DatabasePath string // SQLite database file path.

	// GitHub settings.
	GitHubToken      string
	WebhookSecret    string // HMAC key for webhook signature verification.
	MentionToken     string // Comment prefix that routes a comment to intent classification.
	GitHubAPIBaseURL string // Override for tests; empty means api.github.com.

	// AI provider settings.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AgentModel      string // Default model for review and classification agents.
	FixProvider     string // Provider recorded on generated fix tasks; empty means jules.

	// Cloudflare settings.
	CloudflareAPIToken  string
	CloudflareAccountID string
	CloudflareBaseURL   string // Override for tests; empty means the public API.

	// Task delegation settings.
	JulesBaseURL string // Coding-agent proxy endpoint for delegated fix tasks.
	JulesAPIKey  string

	// Deployment verification settings.
	VerifyMaxAttempts int
	VerifyRetryDelay  time.Duration

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("REVIEWBOT_PORT", 8080),
		ReadTimeout:         envDuration("REVIEWBOT_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("REVIEWBOT_WRITE_TIMEOUT", 30*time.Second),
		DatabasePath:        envStr("REVIEWBOT_DB_PATH", "reviewbot.db"),
		GitHubToken:         envStr("GITHUB_TOKEN", ""),
		WebhookSecret:       envStr("GITHUB_WEBHOOK_SECRET", ""),
		MentionToken:        envStr("REVIEWBOT_MENTION_TOKEN", "@colby-bot"),
		GitHubAPIBaseURL:    envStr("GITHUB_API_BASE_URL", ""),
		AnthropicAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		GeminiAPIKey:        envStr("GEMINI_API_KEY", ""),
		AgentModel:          envStr("AGENT_PROVIDER", ""),
		FixProvider:         envStr("PR_FIX_PROVIDER", ""),
		CloudflareAPIToken:  envStr("CLOUDFLARE_API_TOKEN", ""),
		CloudflareAccountID: envStr("CLOUDFLARE_ACCOUNT_ID", ""),
		CloudflareBaseURL:   envStr("CLOUDFLARE_API_BASE_URL", ""),
		JulesBaseURL:        envStr("JULES_BASE_URL", ""),
		JulesAPIKey:         envStr("JULES_API_KEY", ""),
		VerifyMaxAttempts:   envInt("REVIEWBOT_VERIFY_MAX_ATTEMPTS", 5),
		VerifyRetryDelay:    envDuration("REVIEWBOT_VERIFY_RETRY_DELAY", 2*time.Second),
		LogLevel:            envStr("REVIEWBOT_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("REVIEWBOT_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: REVIEWBOT_DB_PATH is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("config: GITHUB_WEBHOOK_SECRET is required")
	}
	if c.VerifyMaxAttempts <= 0 {
		return fmt.Errorf("config: REVIEWBOT_VERIFY_MAX_ATTEMPTS must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: REVIEWBOT_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
