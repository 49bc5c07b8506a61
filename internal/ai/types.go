package ai

import "fmt"

// Provider identifies one LLM backend behind the gateway.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOpenAI    Provider = "openai"
	ProviderWorkers   Provider = "workers"
)

// Capability names one generation surface of the gateway.
type Capability string

const (
	CapabilityText             Capability = "generate_text"
	CapabilityStructured       Capability = "generate_structured"
	CapabilityEmbeddings       Capability = "generate_embeddings"
	CapabilityVision           Capability = "generate_vision"
	CapabilityVisionStructured Capability = "generate_vision_structured"
	CapabilityTools            Capability = "generate_with_tools"
	CapabilityStructuredTools  Capability = "generate_structured_with_tools"
)

// DefaultModel is used when a caller does not name a model.
const DefaultModel = "gemini-2.0-flash"

// UnsupportedCapabilityError reports a capability requested against a backend
// that does not implement it. This surfaces loudly instead of silently
// falling back: it is a programming error, not a transport failure.
type UnsupportedCapabilityError struct {
	Provider   Provider
	Capability Capability
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("ai: %s not implemented for provider %s", e.Capability, e.Provider)
}

// Message is one turn in a provider-neutral conversation. Role is one of
// "system", "user", "assistant", or "tool". Tool turns carry ToolCallID;
// assistant turns that invoked tools carry ToolCalls.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"` // tool name on tool-result turns
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Tool is a provider-neutral tool definition. Parameters is a JSON Schema.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is one tool invocation requested by a model.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResponse is the result of a tool-calling generation: plain content,
// tool invocations, or both.
type ToolResponse struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// StructuredToolResponse pairs a schema-constrained result with any tool
// invocations the model made on the way.
type StructuredToolResponse struct {
	Result    []byte     `json:"result,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// VisionInput is an image payload for vision generation.
type VisionInput struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// cleanSchema strips JSON Schema metadata fields that some backends reject.
// Works on a copy; nested schemas are cleaned recursively.
func cleanSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if k == "$schema" || k == "additionalProperties" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			out[k] = cleanSchema(val)
		case []any:
			items := make([]any, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]any); ok {
					items[i] = cleanSchema(m)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}
