// Package ai unifies multiple LLM backends behind one call surface.
// The backend is chosen by a pure prefix match on the model identifier;
// every capability call translates messages, tools, and schemas into the
// chosen backend's wire format.
package ai

import (
	"context"
	"strings"
)

// ResolveProvider maps a model identifier to the backend that serves it.
// Pure and total: every input resolves to exactly one provider, with the
// Workers AI backend as catch-all.
func ResolveProvider(model string) Provider {
	switch {
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(model, "gpt"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "@cf"):
		return ProviderWorkers
	default:
		return ProviderWorkers
	}
}

// Config holds backend credentials and endpoint overrides.
// Empty base URLs fall back to each provider's public endpoint.
type Config struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	GeminiAPIKey string

	CloudflareAPIToken  string
	CloudflareAccountID string
	CloudflareBaseURL   string
}

// Gateway presents one signature per capability regardless of backend.
// It holds no state beyond configured clients; calls have no side effects
// other than the outbound network request.
type Gateway struct {
	anthropic *AnthropicClient
	openai    *OpenAIClient
	google    *GeminiClient
	workers   *WorkersAIClient
}

// New creates a gateway with all four backends configured.
func New(cfg Config) *Gateway {
	return &Gateway{
		anthropic: NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL),
		openai:    NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		google:    NewGeminiClient(cfg.GeminiAPIKey),
		workers:   NewWorkersAIClient(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, cfg.CloudflareBaseURL),
	}
}

func orDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}

// GenerateText produces a plain-text completion.
func (g *Gateway) GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return g.anthropic.GenerateText(ctx, prompt, systemPrompt, m)
	case ProviderGoogle:
		return g.google.GenerateText(ctx, prompt, systemPrompt, m)
	case ProviderOpenAI:
		return g.openai.GenerateText(ctx, prompt, systemPrompt, m)
	default:
		return g.workers.GenerateText(ctx, prompt, systemPrompt, m)
	}
}

// GenerateStructured produces a completion constrained to the given JSON
// Schema and returns the raw JSON for the caller to unmarshal.
func (g *Gateway) GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return nil, &UnsupportedCapabilityError{Provider: ProviderAnthropic, Capability: CapabilityStructured}
	case ProviderGoogle:
		return g.google.GenerateStructured(ctx, prompt, systemPrompt, schema, m)
	case ProviderOpenAI:
		return g.openai.GenerateStructured(ctx, prompt, systemPrompt, schema, m)
	default:
		return g.workers.GenerateStructured(ctx, prompt, systemPrompt, schema, m)
	}
}

// GenerateEmbeddings produces an embedding vector for the given text.
func (g *Gateway) GenerateEmbeddings(ctx context.Context, text, model string) ([]float32, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return nil, &UnsupportedCapabilityError{Provider: ProviderAnthropic, Capability: CapabilityEmbeddings}
	case ProviderGoogle:
		return g.google.GenerateEmbeddings(ctx, text, m)
	case ProviderOpenAI:
		return g.openai.GenerateEmbeddings(ctx, text, m)
	default:
		return g.workers.GenerateEmbeddings(ctx, text, m)
	}
}

// GenerateVision produces a text answer about an image.
func (g *Gateway) GenerateVision(ctx context.Context, image VisionInput, prompt, model string) (string, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return "", &UnsupportedCapabilityError{Provider: ProviderAnthropic, Capability: CapabilityVision}
	case ProviderGoogle:
		return g.google.GenerateVision(ctx, image, prompt, m)
	case ProviderOpenAI:
		return g.openai.GenerateVision(ctx, image, prompt, m)
	default:
		return g.workers.GenerateVision(ctx, image, prompt, m)
	}
}

// GenerateVisionStructured produces a schema-constrained answer about an image.
func (g *Gateway) GenerateVisionStructured(ctx context.Context, image VisionInput, prompt string, schema map[string]any, model string) ([]byte, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return nil, &UnsupportedCapabilityError{Provider: ProviderAnthropic, Capability: CapabilityVisionStructured}
	case ProviderGoogle:
		return g.google.GenerateVisionStructured(ctx, image, prompt, schema, m)
	case ProviderOpenAI:
		return g.openai.GenerateVisionStructured(ctx, image, prompt, schema, m)
	default:
		return g.workers.GenerateVisionStructured(ctx, image, prompt, schema, m)
	}
}

// GenerateWithTools runs a tool-calling turn over a provider-neutral message
// history and tool set.
func (g *Gateway) GenerateWithTools(ctx context.Context, messages []Message, tools []Tool, model string) (ToolResponse, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return g.anthropic.GenerateWithTools(ctx, messages, tools, m)
	case ProviderGoogle:
		return g.google.GenerateWithTools(ctx, messages, tools, m)
	case ProviderOpenAI:
		return g.openai.GenerateWithTools(ctx, messages, tools, m)
	default:
		return g.workers.GenerateWithTools(ctx, messages, tools, m)
	}
}

// GenerateStructuredWithTools runs a tool-calling turn whose final content is
// constrained to the given JSON Schema.
func (g *Gateway) GenerateStructuredWithTools(ctx context.Context, messages []Message, tools []Tool, schema map[string]any, model string) (StructuredToolResponse, error) {
	m := orDefault(model)
	switch ResolveProvider(m) {
	case ProviderAnthropic:
		return StructuredToolResponse{}, &UnsupportedCapabilityError{Provider: ProviderAnthropic, Capability: CapabilityStructuredTools}
	case ProviderGoogle:
		return g.google.GenerateStructuredWithTools(ctx, messages, tools, schema, m)
	case ProviderOpenAI:
		return g.openai.GenerateStructuredWithTools(ctx, messages, tools, schema, m)
	default:
		return g.workers.GenerateStructuredWithTools(ctx, messages, tools, schema, m)
	}
}
