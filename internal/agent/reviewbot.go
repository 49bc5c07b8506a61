package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmbish04/code-review-bot/internal/ai"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// docsQueryFallback stands in when the model fails to produce a well-formed
// question list.
var docsQueryFallback = []string{
	"Cloudflare Workers security",
	"Cloudflare Workers optimization",
}

const (
	excerptRadius    = 10   // lines around the commented line
	excerptMaxPrefix = 1000 // bytes when no line is given
)

// ReviewStore is the slice of the storage layer the review bot writes to.
type ReviewStore interface {
	InsertTask(ctx context.Context, task model.AgentTask) error
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus, result string) error
	InsertAiLog(ctx context.Context, log model.AiLog) error
}

// FileFetcher fetches repository file content at a ref.
type FileFetcher interface {
	FileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// ReviewBot turns a review comment into a generated code fix. Augmentation
// steps (file context, worker detection, documentation lookups) are all
// best-effort; only the fix generation itself is the primary unit of work.
type ReviewBot struct {
	Base
	store       ReviewStore
	files       FileFetcher
	fixProvider string
}

// NewReviewBot creates the review agent. fixProvider names the provider
// recorded on generated tasks; empty defaults to "jules".
func NewReviewBot(base Base, store ReviewStore, files FileFetcher, fixProvider string) *ReviewBot {
	if fixProvider == "" {
		fixProvider = "jules"
	}
	return &ReviewBot{Base: base, store: store, files: files, fixProvider: fixProvider}
}

// ProcessComment handles one review comment: gathers context, creates a task,
// generates a fix, and completes the task with the raw model output.
func (r *ReviewBot) ProcessComment(ctx context.Context, repoName string, prNumber int, body, path string, line int) error {
	r.Log().Info(ctx, "processing review comment", map[string]any{
		"repo": repoName, "pr": prNumber, "path": path,
	})

	owner, repo, ok := splitRepo(repoName)
	if !ok {
		return fmt.Errorf("agent: malformed repo name %q", repoName)
	}

	// File context degrades to empty on any fetch failure.
	var fileContext string
	if path != "" {
		content, err := r.files.FileContent(ctx, owner, repo, path, fmt.Sprintf("refs/pull/%d/head", prNumber))
		if err != nil {
			r.Log().Warn(ctx, "file context fetch failed", map[string]any{
				"path": path, "error": err.Error(),
			})
		} else {
			fileContext = content
		}
	}

	var docsContext string
	if r.isCloudflareWorker(ctx, owner, repo) {
		r.Log().Info(ctx, "detected Cloudflare Worker repository", map[string]any{"repo": repoName})
		docsContext = r.gatherDocsContext(ctx, body, fileContext)
	}

	prompt := r.buildFixPrompt(repoName, path, line, body, fileContext, docsContext)

	now := time.Now().UTC()
	task := model.AgentTask{
		ID:        uuid.New(),
		Prompt:    prompt,
		Provider:  r.fixProvider,
		Status:    model.TaskPending,
		RepoName:  repoName,
		PRNumber:  prNumber,
		Assignee:  "auto-agent",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.InsertTask(ctx, task); err != nil {
		return fmt.Errorf("agent: create review task: %w", err)
	}

	fix := r.GenerateText(ctx, prompt, "")
	if err := r.store.UpdateTaskStatus(ctx, task.ID, model.TaskCompleted, fix); err != nil {
		return fmt.Errorf("agent: complete review task: %w", err)
	}

	r.Log().Info(ctx, "fix generated", map[string]any{"task_id": task.ID.String()})
	return nil
}

// isCloudflareWorker races content probes for the two well-known config
// filenames; the first hit wins and both missing is simply "not detected".
func (r *ReviewBot) isCloudflareWorker(ctx context.Context, owner, repo string) bool {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan bool, 2)
	for _, path := range []string{"wrangler.toml", "wrangler.jsonc"} {
		go func() {
			_, err := r.files.FileContent(probeCtx, owner, repo, path, "")
			results <- err == nil
		}()
	}
	for i := 0; i < 2; i++ {
		if <-results {
			return true
		}
	}
	return false
}

// gatherDocsContext asks the model for three documentation questions, then
// resolves them concurrently, logging every round-trip.
func (r *ReviewBot) gatherDocsContext(ctx context.Context, comment, code string) string {
	codeSnippet := code
	if len(codeSnippet) > 500 {
		codeSnippet = codeSnippet[:500]
	}
	listPrompt := fmt.Sprintf(`Based on this code review comment: %q
And this code context: %q

Generate 3 specific questions to ask the Cloudflare Documentation to ensure best practices are met.
Return as a JSON array of strings.`, comment, codeSnippet)

	queries := ai.ExtractJSONArray(r.GenerateText(ctx, listPrompt, ""), docsQueryFallback)

	answers := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			answer := r.GenerateText(gctx,
				"Answer this question specifically about Cloudflare Workers best practices: "+query,
				"You are a Cloudflare expert. Provide concise, technical answers.")
			answers[i] = answer

			if err := r.store.InsertAiLog(gctx, model.AiLog{
				ID:        uuid.New(),
				Query:     query,
				Response:  answer,
				Provider:  r.Model(),
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				r.Log().Warn(gctx, "ai log persist failed", map[string]any{"error": err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	for i, query := range queries {
		fmt.Fprintf(&sb, "\n\nContext for %q:\n%s", query, answers[i])
	}
	return sb.String()
}

func (r *ReviewBot) buildFixPrompt(repoName, path string, line int, comment, fileContext, docsContext string) string {
	pathLabel := path
	if pathLabel == "" {
		pathLabel = "N/A"
	}
	lineLabel := "N/A"
	if line > 0 {
		lineLabel = fmt.Sprintf("%d", line)
	}

	var sb strings.Builder
	sb.WriteString("You are an expert code reviewer and developer.\n\n")
	fmt.Fprintf(&sb, "Repo: %s\nFile: %s\nLine: %s\n\n", repoName, pathLabel, lineLabel)
	fmt.Fprintf(&sb, "User Comment: %q\n", comment)
	if fileContext != "" {
		fmt.Fprintf(&sb, "\nFile Content Snippet:\n```\n%s\n```\n", excerpt(fileContext, line))
	}
	if docsContext != "" {
		sb.WriteString(docsContext)
		sb.WriteString("\n")
	}
	sb.WriteString(`
Task:
1. Analyze the comment and the code.
2. Provide a specific code fix (patch) to address the comment.
3. If this is a Cloudflare Worker, apply the best practices found in the context.

Output only the code block for the fix and a brief explanation.`)
	return sb.String()
}

// excerpt returns a window of lines centered on the reported line, or a fixed
// prefix when no line is given.
func excerpt(content string, line int) string {
	if line <= 0 {
		if len(content) > excerptMaxPrefix {
			return content[:excerptMaxPrefix]
		}
		return content
	}
	lines := strings.Split(content, "\n")
	start := max(0, line-excerptRadius)
	end := min(len(lines), line+excerptRadius)
	if start >= len(lines) {
		start = max(0, len(lines)-1)
	}
	return strings.Join(lines[start:end], "\n")
}

func splitRepo(repoName string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(repoName, "/")
	if !found || owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
