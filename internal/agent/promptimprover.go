package agent

import (
	"context"
	"fmt"
	"strings"
)

// PromptImprover rewrites a raw task prompt into a sharper instruction for a
// coding agent. It is a best-effort step: callers treat a sentinel error
// response as "keep the original prompt".
type PromptImprover struct {
	Base
}

// NewPromptImprover creates the prompt refinement agent.
func NewPromptImprover(base Base) *PromptImprover {
	return &PromptImprover{Base: base}
}

// Refine returns the improved prompt, or the original when refinement fails.
func (a *PromptImprover) Refine(ctx context.Context, rawPrompt, repoName string) string {
	systemPrompt := fmt.Sprintf(`You are an expert AI prompt engineer.
Your goal is to improve the user's raw prompt for a coding agent.
The agent will be working on the repository: %s.

Enhance the prompt by:
1. Adding specific context about best practices.
2. Structuring the request clearly.
3. Ensuring the agent checks for existing patterns.

Return ONLY the improved prompt.`, repoName)

	improved := a.GenerateText(ctx, rawPrompt, systemPrompt)
	if strings.HasPrefix(improved, "Error:") || strings.TrimSpace(improved) == "" {
		a.Log().Warn(ctx, "prompt refinement failed, keeping original", map[string]any{"repo": repoName})
		return rawPrompt
	}
	return improved
}
