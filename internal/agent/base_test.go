package agent_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmbish04/code-review-bot/internal/agent"
	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
	"github.com/jmbish04/code-review-bot/internal/storage"
)

// fakeGateway scripts responses per prompt substring and records calls.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]string // substring of prompt -> response
	fallback  string
	err       error
	calls     []string
}

func (g *fakeGateway) GenerateText(_ context.Context, prompt, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, prompt)
	if g.err != nil {
		return "", g.err
	}
	for substr, resp := range g.responses {
		if substr != "" && strings.Contains(prompt, substr) {
			return resp, nil
		}
	}
	return g.fallback, nil
}

func (g *fakeGateway) GenerateStructured(_ context.Context, prompt, _ string, _ map[string]any, _ string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, prompt)
	if g.err != nil {
		return nil, g.err
	}
	return []byte(g.fallback), nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// fakeSettings is a fixed key-value map behind the settings interface.
type fakeSettings map[string]string

func (s fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", storage.ErrNotFound
}

type noopSyslog struct{}

func (noopSyslog) InsertSystemLog(context.Context, model.SystemLog) error { return nil }

func testLogger() *applog.Logger {
	return applog.New(noopSyslog{}, slog.New(slog.DiscardHandler), "test")
}

func TestBaseModelResolutionSettingsOverride(t *testing.T) {
	b := agent.NewBase(context.Background(), "review_bot", &fakeGateway{},
		fakeSettings{"AGENT_PROVIDER": "claude-3-5-sonnet-20240620"}, "gemini-2.0-flash", testLogger())
	assert.Equal(t, "claude-3-5-sonnet-20240620", b.Model())
}

func TestBaseModelResolutionEnvDefault(t *testing.T) {
	b := agent.NewBase(context.Background(), "review_bot", &fakeGateway{},
		fakeSettings{}, "gemini-2.0-flash", testLogger())
	assert.Equal(t, "gemini-2.0-flash", b.Model())
}

func TestBaseModelResolutionHardcodedDefault(t *testing.T) {
	b := agent.NewBase(context.Background(), "review_bot", &fakeGateway{},
		fakeSettings{}, "", testLogger())
	assert.Equal(t, "gpt-5", b.Model())
}

func TestBaseGenerateTextFailSoft(t *testing.T) {
	gw := &fakeGateway{err: errors.New("provider unreachable")}
	b := agent.NewBase(context.Background(), "review_bot", gw, fakeSettings{}, "", testLogger())

	got := b.GenerateText(context.Background(), "prompt", "")
	assert.Equal(t, "Error: provider unreachable", got)
}
