package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const geminiDefaultEmbeddingModel = "text-embedding-004"

// GeminiClient calls the Gemini API through the google.golang.org/genai SDK.
type GeminiClient struct {
	apiKey string

	once   sync.Once
	client *genai.Client
	err    error
}

// NewGeminiClient creates a client for the Google backend. The underlying
// SDK client is initialized lazily on first use.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey}
}

func (c *GeminiClient) get(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", c.err)
	}
	return c.client, nil
}

// GenerateText produces a plain-text completion.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	client, err := c.get(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), geminiConfig(systemPrompt, nil, nil))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStructured produces a completion constrained to the given schema
// and returns the raw JSON.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error) {
	client, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), geminiConfig(systemPrompt, schema, nil))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate structured: %w", err)
	}
	return []byte(resp.Text()), nil
}

// GenerateEmbeddings produces an embedding vector for the given text.
func (c *GeminiClient) GenerateEmbeddings(ctx context.Context, text, model string) ([]float32, error) {
	client, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	// Chat model identifiers route here; embedding calls always use a
	// dedicated embedding model.
	resp, err := client.Models.EmbedContent(ctx, geminiDefaultEmbeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini: empty embeddings response")
	}
	return resp.Embeddings[0].Values, nil
}

// GenerateVision produces a text answer about an image.
func (c *GeminiClient) GenerateVision(ctx context.Context, image VisionInput, prompt, model string) (string, error) {
	client, err := c.get(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, model, geminiVisionContents(image, prompt), geminiConfig("", nil, nil))
	if err != nil {
		return "", fmt.Errorf("gemini: generate vision: %w", err)
	}
	return resp.Text(), nil
}

// GenerateVisionStructured produces a schema-constrained answer about an image.
func (c *GeminiClient) GenerateVisionStructured(ctx context.Context, image VisionInput, prompt string, schema map[string]any, model string) ([]byte, error) {
	client, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(ctx, model, geminiVisionContents(image, prompt), geminiConfig("", schema, nil))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate vision structured: %w", err)
	}
	return []byte(resp.Text()), nil
}

// GenerateWithTools runs a tool-calling turn.
func (c *GeminiClient) GenerateWithTools(ctx context.Context, messages []Message, tools []Tool, model string) (ToolResponse, error) {
	client, err := c.get(ctx)
	if err != nil {
		return ToolResponse{}, err
	}
	system, contents := toGeminiContents(messages)
	resp, err := client.Models.GenerateContent(ctx, model, contents, geminiConfig(system, nil, tools))
	if err != nil {
		return ToolResponse{}, fmt.Errorf("gemini: generate with tools: %w", err)
	}

	out := ToolResponse{Content: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: fc.Args,
		})
	}
	return out, nil
}

// GenerateStructuredWithTools runs a tool-calling turn with a
// schema-constrained final answer.
func (c *GeminiClient) GenerateStructuredWithTools(ctx context.Context, messages []Message, tools []Tool, schema map[string]any, model string) (StructuredToolResponse, error) {
	client, err := c.get(ctx)
	if err != nil {
		return StructuredToolResponse{}, err
	}
	system, contents := toGeminiContents(messages)
	resp, err := client.Models.GenerateContent(ctx, model, contents, geminiConfig(system, schema, tools))
	if err != nil {
		return StructuredToolResponse{}, fmt.Errorf("gemini: generate structured with tools: %w", err)
	}

	out := StructuredToolResponse{Result: []byte(resp.Text())}
	for _, fc := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: fc.Args,
		})
	}
	return out, nil
}

// geminiConfig assembles a GenerateContentConfig from the optional system
// prompt, response schema, and tool set.
func geminiConfig(systemPrompt string, schema map[string]any, tools []Tool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGeminiSchema(schema)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func geminiVisionContents(image VisionInput, prompt string) []*genai.Content {
	return []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}},
		},
	}}
}

// toGeminiContents translates a provider-neutral history. The system prompt
// is extracted and returned separately for the SystemInstruction field; tool
// results become FunctionResponse parts and assistant tool invocations become
// FunctionCall parts.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system string
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "tool":
			name := m.Name
			if name == "" {
				name = m.ToolCallID
			}
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     name,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		case "assistant":
			if len(m.ToolCalls) > 0 {
				parts := make([]*genai.Part, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					parts[i] = &genai.Part{
						FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Arguments},
					}
				}
				out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
				continue
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return system, out
}

// toGeminiSchema converts a JSON Schema map into the SDK's typed Schema.
// Metadata fields the API rejects ($schema, additionalProperties) are
// dropped by omission.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		out.Type = geminiType(t)
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
