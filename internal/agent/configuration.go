package agent

import (
	"context"
	"fmt"
)

// ConfigurationAgent validates the infrastructure bindings declared in a
// repository's Worker configuration file.
type ConfigurationAgent struct {
	Base
	files FileFetcher
}

// NewConfigurationAgent creates the configuration agent.
func NewConfigurationAgent(base Base, files FileFetcher) *ConfigurationAgent {
	return &ConfigurationAgent{Base: base, files: files}
}

// ValidateBindings fetches the repository's Worker configuration
// (wrangler.jsonc preferred, wrangler.toml fallback) and asks the model to
// judge the critical bindings. A repository without either file exits
// cleanly; the model's response is logged verbatim rather than strictly
// parsed.
func (a *ConfigurationAgent) ValidateBindings(ctx context.Context, repoName, ref string) error {
	if ref == "" {
		ref = "main"
	}
	a.Log().Info(ctx, "validating configuration", map[string]any{"repo": repoName, "ref": ref})

	owner, repo, ok := splitRepo(repoName)
	if !ok {
		return fmt.Errorf("agent: malformed repo name %q", repoName)
	}

	var content, filename string
	for _, candidate := range []string{"wrangler.jsonc", "wrangler.toml"} {
		c, err := a.files.FileContent(ctx, owner, repo, candidate, ref)
		if err == nil {
			content, filename = c, candidate
			break
		}
	}
	if content == "" {
		a.Log().Info(ctx, "no wrangler configuration found", map[string]any{"repo": repoName})
		return nil
	}

	prompt := fmt.Sprintf(`Analyze the following Cloudflare Workers configuration file (%s):

`+"```"+`
%s
`+"```"+`

Check for the following critical bindings:
1. A D1 database binding (likely named 'DB').
2. An AI binding (likely named 'AI').

Return a JSON object: { "valid": boolean, "issues": string[] }`, filename, content)

	response := a.GenerateText(ctx, prompt, "")
	a.Log().Info(ctx, "configuration check result", map[string]any{
		"repo": repoName, "file": filename, "result": response,
	})
	return nil
}
