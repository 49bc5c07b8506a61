package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbish04/code-review-bot/internal/ai"
)

func TestExtractJSONArray(t *testing.T) {
	fallback := []string{"a", "b"}

	t.Run("strict parse", func(t *testing.T) {
		got := ai.ExtractJSONArray(`["one","two"]`, fallback)
		assert.Equal(t, []string{"one", "two"}, got)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		got := ai.ExtractJSONArray("Here are the questions:\n[\"q1\", \"q2\"]\nHope that helps!", fallback)
		assert.Equal(t, []string{"q1", "q2"}, got)
	})

	t.Run("fenced code block", func(t *testing.T) {
		got := ai.ExtractJSONArray("```json\n[\"q1\"]\n```", fallback)
		assert.Equal(t, []string{"q1"}, got)
	})

	t.Run("no array returns fallback", func(t *testing.T) {
		got := ai.ExtractJSONArray("I could not produce a list.", fallback)
		assert.Equal(t, fallback, got)
	})

	t.Run("malformed bracketed text returns fallback", func(t *testing.T) {
		got := ai.ExtractJSONArray(`["unterminated`, fallback)
		assert.Equal(t, fallback, got)
	})
}

func TestExtractJSONObject(t *testing.T) {
	type intent struct {
		Intent string `json:"intent"`
	}

	t.Run("strict parse", func(t *testing.T) {
		var out intent
		require.True(t, ai.ExtractJSONObject(`{"intent":"fix_code"}`, &out))
		assert.Equal(t, "fix_code", out.Intent)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		var out intent
		require.True(t, ai.ExtractJSONObject("The classification is {\"intent\": \"check_status\"} as requested.", &out))
		assert.Equal(t, "check_status", out.Intent)
	})

	t.Run("no object", func(t *testing.T) {
		var out intent
		assert.False(t, ai.ExtractJSONObject("no json here", &out))
		assert.Empty(t, out.Intent)
	})
}
