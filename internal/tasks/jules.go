package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JulesClient proxies task submissions to the Jules coding-agent API.
type JulesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewJulesClient creates a client for the given endpoint.
func NewJulesClient(baseURL, apiKey string) *JulesClient {
	return &JulesClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitTask posts one task to the Jules API. Non-2xx responses are errors.
func (c *JulesClient) SubmitTask(ctx context.Context, task, prURL string) error {
	body, err := json.Marshal(map[string]string{
		"task":   task,
		"pr_url": prURL,
	})
	if err != nil {
		return fmt.Errorf("jules: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("jules: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jules: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("jules: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
