package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openaiDefaultBaseURL        = "https://api.openai.com"
	openaiDefaultEmbeddingModel = "text-embedding-3-small"
)

// OpenAIClient calls the OpenAI chat-completions and embeddings APIs.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient creates a client for the OpenAI backend.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type openaiChatRequest struct {
	Model          string           `json:"model"`
	Messages       []map[string]any `json:"messages"`
	Tools          []map[string]any `json:"tools,omitempty"`
	ResponseFormat map[string]any   `json:"response_format,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateText produces a plain-text completion.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:    model,
		Messages: openaiPromptMessages(prompt, systemPrompt),
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured produces a completion constrained to the given schema
// via response_format json_schema and returns the raw JSON.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:          model,
		Messages:       openaiPromptMessages(prompt, systemPrompt),
		ResponseFormat: openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

// GenerateEmbeddings produces an embedding vector for the given text.
func (c *OpenAIClient) GenerateEmbeddings(ctx context.Context, text, model string) ([]float32, error) {
	// The caller's chat model identifier selected this backend; embeddings
	// always use a dedicated embedding model.
	body, err := json.Marshal(map[string]any{
		"model": openaiDefaultEmbeddingModel,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal embeddings request: %w", err)
	}

	raw, err := c.post(ctx, "/v1/embeddings", body)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode embeddings response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: empty embeddings response")
	}
	return resp.Data[0].Embedding, nil
}

// GenerateVision produces a text answer about an image, passed inline as a
// base64 data URL.
func (c *OpenAIClient) GenerateVision(ctx context.Context, image VisionInput, prompt, model string) (string, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:    model,
		Messages: []map[string]any{openaiVisionMessage(image, prompt)},
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateVisionStructured produces a schema-constrained answer about an image.
func (c *OpenAIClient) GenerateVisionStructured(ctx context.Context, image VisionInput, prompt string, schema map[string]any, model string) ([]byte, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:          model,
		Messages:       []map[string]any{openaiVisionMessage(image, prompt)},
		ResponseFormat: openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

// GenerateWithTools runs a tool-calling turn.
func (c *OpenAIClient) GenerateWithTools(ctx context.Context, messages []Message, tools []Tool, model string) (ToolResponse, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	})
	if err != nil {
		return ToolResponse{}, err
	}
	return openaiToolResponse(resp), nil
}

// GenerateStructuredWithTools runs a tool-calling turn with a
// schema-constrained final answer.
func (c *OpenAIClient) GenerateStructuredWithTools(ctx context.Context, messages []Message, tools []Tool, schema map[string]any, model string) (StructuredToolResponse, error) {
	resp, err := c.chat(ctx, openaiChatRequest{
		Model:          model,
		Messages:       toOpenAIMessages(messages),
		Tools:          toOpenAITools(tools),
		ResponseFormat: openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return StructuredToolResponse{}, err
	}
	tr := openaiToolResponse(resp)
	return StructuredToolResponse{
		Result:    []byte(tr.Content),
		ToolCalls: tr.ToolCalls,
	}, nil
}

func (c *OpenAIClient) chat(ctx context.Context, req openaiChatRequest) (openaiChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return openaiChatResponse{}, fmt.Errorf("openai: marshal request: %w", err)
	}
	raw, err := c.post(ctx, "/v1/chat/completions", body)
	if err != nil {
		return openaiChatResponse{}, err
	}
	var resp openaiChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return openaiChatResponse{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if resp.Error != nil {
		return openaiChatResponse{}, fmt.Errorf("openai: %s: %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return openaiChatResponse{}, fmt.Errorf("openai: empty choices")
	}
	return resp, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(raw, 1024))
	}
	return raw, nil
}

func openaiPromptMessages(prompt, systemPrompt string) []map[string]any {
	var messages []map[string]any
	if systemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": systemPrompt})
	}
	return append(messages, map[string]any{"role": "user", "content": prompt})
}

func openaiVisionMessage(image VisionInput, prompt string) map[string]any {
	dataURL := fmt.Sprintf("data:%s;base64,%s", image.MIMEType, base64.StdEncoding.EncodeToString(image.Data))
	return map[string]any{
		"role": "user",
		"content": []map[string]any{
			{"type": "text", "text": prompt},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
		},
	}
}

func openaiJSONSchemaFormat(schema map[string]any) map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "response",
			"schema": schema,
		},
	}
}

func toOpenAIMessages(messages []Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		msg := map[string]any{"role": m.Role, "content": m.Content}
		if m.Role == "tool" && m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				calls[i] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(args),
					},
				}
			}
			msg["tool_calls"] = calls
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []Tool) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, len(tools))
	for i, t := range tools {
		out[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		}
	}
	return out
}

func openaiToolResponse(resp openaiChatResponse) ToolResponse {
	msg := resp.Choices[0].Message
	out := ToolResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
