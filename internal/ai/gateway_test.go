package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/ai"
)

func TestResolveProvider(t *testing.T) {
	cases := []struct {
		model string
		want  ai.Provider
	}{
		{"claude-3-5-sonnet-20240620", ai.ProviderAnthropic},
		{"claude", ai.ProviderAnthropic},
		{"gemini-2.0-flash", ai.ProviderGoogle},
		{"gemini", ai.ProviderGoogle},
		{"gpt-4o-mini", ai.ProviderOpenAI},
		{"gpt-5", ai.ProviderOpenAI},
		{"@cf/meta/llama-3.1-8b-instruct", ai.ProviderWorkers},
		{"mistral-large", ai.ProviderWorkers},
		{"", ai.ProviderWorkers},
		{"GPT-4", ai.ProviderWorkers}, // prefix match is case-sensitive
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ai.ResolveProvider(tc.model), "model %q", tc.model)
	}
}

func TestResolveProviderIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, ai.ProviderAnthropic, ai.ResolveProvider("claude-x"))
	}
}

func TestGatewayUnsupportedCapabilities(t *testing.T) {
	ctx := context.Background()
	g := ai.New(ai.Config{})

	_, err := g.GenerateStructured(ctx, "p", "", map[string]any{"type": "object"}, "claude-3-5-sonnet-20240620")
	var unsupported *ai.UnsupportedCapabilityError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ai.ProviderAnthropic, unsupported.Provider)
	assert.Equal(t, ai.CapabilityStructured, unsupported.Capability)

	_, err = g.GenerateEmbeddings(ctx, "text", "claude-3-5-sonnet-20240620")
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ai.CapabilityEmbeddings, unsupported.Capability)

	_, err = g.GenerateVision(ctx, ai.VisionInput{}, "p", "claude-3-5-sonnet-20240620")
	require.ErrorAs(t, err, &unsupported)

	_, err = g.GenerateStructuredWithTools(ctx, nil, nil, nil, "claude-3-5-sonnet-20240620")
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ai.CapabilityStructuredTools, unsupported.Capability)
}

func TestGenerateTextOpenAI(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello from gpt"}},
			},
		})
	}))
	defer srv.Close()

	g := ai.New(ai.Config{OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL})
	got, err := g.GenerateText(context.Background(), "hi", "be brief", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", got)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestGenerateTextDefaultsToWorkersForUnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/accounts/acct-1/ai/run/")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]any{"response": "llama says hi"},
		})
	}))
	defer srv.Close()

	g := ai.New(ai.Config{CloudflareAPIToken: "t", CloudflareAccountID: "acct-1", CloudflareBaseURL: srv.URL})
	got, err := g.GenerateText(context.Background(), "hi", "", "@cf/meta/llama-3.1-8b-instruct")
	require.NoError(t, err)
	assert.Equal(t, "llama says hi", got)
}

func TestGenerateWithToolsAnthropicTranslation(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_1", "name": "lookup", "input": map[string]any{"q": "x"}},
			},
		})
	}))
	defer srv.Close()

	g := ai.New(ai.Config{AnthropicAPIKey: "k", AnthropicBaseURL: srv.URL})
	messages := []ai.Message{
		{Role: "system", Content: "you are helpful"},
		{Role: "user", Content: "look up x"},
		{Role: "assistant", ToolCalls: []ai.ToolCall{{ID: "tu_0", Name: "lookup", Arguments: map[string]any{"q": "y"}}}},
		{Role: "tool", ToolCallID: "tu_0", Content: "found y"},
	}
	tools := []ai.Tool{{
		Name:        "lookup",
		Description: "look things up",
		Parameters: map[string]any{
			"$schema":              "http://json-schema.org/draft-07/schema#",
			"type":                 "object",
			"additionalProperties": false,
			"properties":           map[string]any{"q": map[string]any{"type": "string"}},
		},
	}}

	resp, err := g.GenerateWithTools(context.Background(), messages, tools, "claude-3-5-sonnet-20240620")
	require.NoError(t, err)
	assert.Equal(t, "let me check", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.ToolCalls[0].Name)
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)

	// System prompt was extracted out-of-band, not left in the message list.
	assert.Equal(t, "you are helpful", gotBody["system"])
	sentMessages := gotBody["messages"].([]any)
	require.Len(t, sentMessages, 3)
	for _, m := range sentMessages {
		assert.NotEqual(t, "system", m.(map[string]any)["role"])
	}

	// Assistant tool calls became tool_use blocks; tool result became a user
	// message carrying a tool_result block.
	assistant := sentMessages[1].(map[string]any)
	blocks := assistant["content"].([]any)
	assert.Equal(t, "tool_use", blocks[0].(map[string]any)["type"])
	toolResult := sentMessages[2].(map[string]any)
	assert.Equal(t, "user", toolResult["role"])
	resultBlocks := toolResult["content"].([]any)
	assert.Equal(t, "tool_result", resultBlocks[0].(map[string]any)["type"])
	assert.Equal(t, "tu_0", resultBlocks[0].(map[string]any)["tool_use_id"])

	// Schema metadata stripped for Anthropic.
	sentTools := gotBody["tools"].([]any)
	schema := sentTools[0].(map[string]any)["input_schema"].(map[string]any)
	_, hasMeta := schema["$schema"]
	assert.False(t, hasMeta)
	_, hasAdditional := schema["additionalProperties"]
	assert.False(t, hasAdditional)
}

func TestGenerateStructuredOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rf := body["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", rf["type"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"intent":"fix_code","reasoning":"bug report"}`}},
			},
		})
	}))
	defer srv.Close()

	g := ai.New(ai.Config{OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL})
	raw, err := g.GenerateStructured(context.Background(), "classify", "", map[string]any{"type": "object"}, "gpt-4o-mini")
	require.NoError(t, err)

	var out struct {
		Intent    string `json:"intent"`
		Reasoning string `json:"reasoning"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "fix_code", out.Intent)
}

func TestGenerateTextTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := ai.New(ai.Config{OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL})
	_, err := g.GenerateText(context.Background(), "hi", "", "gpt-4o-mini")
	require.Error(t, err)
	var unsupported *ai.UnsupportedCapabilityError
	assert.False(t, errors.As(err, &unsupported), "transport errors are not capability errors")
}
