// Package agent implements the specialized automation agents: code review,
// deployment verification, configuration validation, conflict resolution, and
// prompt refinement. Agents share a fail-soft base so that one agent's model
// failure never crashes the event pipeline that dispatched it.
package agent

import (
	"context"
	"errors"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/storage"
)

// agentModelSettingKey is the settings override consulted before the
// environment default.
const agentModelSettingKey = "AGENT_PROVIDER"

// baseDefaultModel is the last-resort model when neither a settings override
// nor an environment default is present.
const baseDefaultModel = "gpt-5"

// Gateway is the slice of the AI provider gateway the agents call.
type Gateway interface {
	GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error)
	GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error)
}

// SettingsReader looks up process-wide settings overrides.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Base carries the shared agent behavior: a resolved model, fail-soft text
// generation, and a source-tagged logger.
type Base struct {
	gateway Gateway
	log     *applog.Logger
	model   string
}

// NewBase resolves the operating model (settings override, then environment
// default, then the hardcoded default) and returns a base tagged with the
// agent's name for logging.
func NewBase(ctx context.Context, name string, gateway Gateway, settings SettingsReader, envDefault string, log *applog.Logger) Base {
	model := baseDefaultModel
	if envDefault != "" {
		model = envDefault
	}
	if settings != nil {
		if v, err := settings.GetSetting(ctx, agentModelSettingKey); err == nil && v != "" {
			model = v
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Warn(ctx, "settings lookup failed, using default model", map[string]any{"error": err.Error()})
		}
	}
	return Base{
		gateway: gateway,
		log:     log.WithSource(name),
		model:   model,
	}
}

// Model returns the resolved model identifier.
func (b Base) Model() string {
	return b.model
}

// GenerateText delegates to the gateway with the resolved model. Failures are
// captured into the log and converted to a sentinel "Error: ..." string so
// the caller's pipeline keeps moving.
func (b Base) GenerateText(ctx context.Context, prompt, systemPrompt string) string {
	resp, err := b.gateway.GenerateText(ctx, prompt, systemPrompt, b.model)
	if err != nil {
		b.log.Error(ctx, "text generation failed", map[string]any{
			"model": b.model,
			"error": err.Error(),
		})
		return "Error: " + err.Error()
	}
	return resp
}

// Log returns the agent's tagged logger.
func (b Base) Log() *applog.Logger {
	return b.log
}
