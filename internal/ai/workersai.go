package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	workersDefaultBaseURL        = "https://api.cloudflare.com/client/v4"
	workersDefaultEmbeddingModel = "@cf/baai/bge-base-en-v1.5"
)

// WorkersAIClient calls the Cloudflare Workers AI inference API. It is the
// catch-all backend: any model identifier not claimed by another provider
// lands here.
type WorkersAIClient struct {
	apiToken   string
	accountID  string
	baseURL    string
	httpClient *http.Client
}

// NewWorkersAIClient creates a client for the Workers AI backend.
func NewWorkersAIClient(apiToken, accountID, baseURL string) *WorkersAIClient {
	if baseURL == "" {
		baseURL = workersDefaultBaseURL
	}
	return &WorkersAIClient{
		apiToken:  apiToken,
		accountID: accountID,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type workersRunResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		Response  string      `json:"response"`
		Data      [][]float32 `json:"data"`
		ToolCalls []struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		} `json:"tool_calls"`
	} `json:"result"`
}

// GenerateText produces a plain-text completion.
func (c *WorkersAIClient) GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"messages": openaiPromptMessages(prompt, systemPrompt),
	})
	if err != nil {
		return "", err
	}
	return resp.Result.Response, nil
}

// GenerateStructured produces a schema-constrained completion and returns
// the raw JSON.
func (c *WorkersAIClient) GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"messages":        openaiPromptMessages(prompt, systemPrompt),
		"response_format": openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Result.Response), nil
}

// GenerateEmbeddings produces an embedding vector for the given text.
func (c *WorkersAIClient) GenerateEmbeddings(ctx context.Context, text, model string) ([]float32, error) {
	// Chat model identifiers route here too; embeddings always run on a
	// dedicated embedding model.
	resp, err := c.run(ctx, workersDefaultEmbeddingModel, map[string]any{
		"text": []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Result.Data) == 0 {
		return nil, fmt.Errorf("workersai: empty embeddings response")
	}
	return resp.Result.Data[0], nil
}

// GenerateVision produces a text answer about an image.
func (c *WorkersAIClient) GenerateVision(ctx context.Context, image VisionInput, prompt, model string) (string, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"prompt": prompt,
		"image":  bytesToInts(image.Data),
	})
	if err != nil {
		return "", err
	}
	return resp.Result.Response, nil
}

// GenerateVisionStructured produces a schema-constrained answer about an image.
func (c *WorkersAIClient) GenerateVisionStructured(ctx context.Context, image VisionInput, prompt string, schema map[string]any, model string) ([]byte, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"prompt":          prompt,
		"image":           bytesToInts(image.Data),
		"response_format": openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Result.Response), nil
}

// GenerateWithTools runs a tool-calling turn.
func (c *WorkersAIClient) GenerateWithTools(ctx context.Context, messages []Message, tools []Tool, model string) (ToolResponse, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"messages": toOpenAIMessages(messages),
		"tools":    toWorkersTools(tools),
	})
	if err != nil {
		return ToolResponse{}, err
	}
	out := ToolResponse{Content: resp.Result.Response}
	for _, tc := range resp.Result.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Name, Arguments: tc.Arguments})
	}
	return out, nil
}

// GenerateStructuredWithTools runs a tool-calling turn with a
// schema-constrained final answer.
func (c *WorkersAIClient) GenerateStructuredWithTools(ctx context.Context, messages []Message, tools []Tool, schema map[string]any, model string) (StructuredToolResponse, error) {
	resp, err := c.run(ctx, model, map[string]any{
		"messages":        toOpenAIMessages(messages),
		"tools":           toWorkersTools(tools),
		"response_format": openaiJSONSchemaFormat(schema),
	})
	if err != nil {
		return StructuredToolResponse{}, err
	}
	out := StructuredToolResponse{Result: []byte(resp.Result.Response)}
	for _, tc := range resp.Result.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Name, Arguments: tc.Arguments})
	}
	return out, nil
}

func (c *WorkersAIClient) run(ctx context.Context, model string, payload map[string]any) (workersRunResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return workersRunResponse{}, fmt.Errorf("workersai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return workersRunResponse{}, fmt.Errorf("workersai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return workersRunResponse{}, fmt.Errorf("workersai: send request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return workersRunResponse{}, fmt.Errorf("workersai: status %d: %s", httpResp.StatusCode, string(msg))
	}

	var resp workersRunResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return workersRunResponse{}, fmt.Errorf("workersai: decode response: %w", err)
	}
	if !resp.Success && len(resp.Errors) > 0 {
		return workersRunResponse{}, fmt.Errorf("workersai: api error %d: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}
	return resp, nil
}

// toWorkersTools flattens tool definitions to the name/description/parameters
// shape Workers AI expects.
func toWorkersTools(tools []Tool) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, len(tools))
	for i, t := range tools {
		out[i] = map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  cleanSchema(t.Parameters),
		}
	}
	return out
}

func bytesToInts(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}
