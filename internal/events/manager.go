// Package events receives classified webhook deliveries, persists the audit
// trail, and dispatches work to the specialized agents. Classification runs
// in fixed priority order; dispatch failures are logged and swallowed so a
// crashed agent never crashes webhook processing.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmbish04/code-review-bot/internal/applog"
	"github.com/jmbish04/code-review-bot/internal/model"
)

// Intents the mention classifier may return.
const (
	IntentFixCode         = "fix_code"
	IntentResolveConflict = "resolve_conflict"
	IntentCheckStatus     = "check_status"
	IntentUnknown         = "unknown"
)

// The two configuration filenames a push is scanned for.
var configFilenames = []string{"wrangler.toml", "wrangler.jsonc"}

// Store is the slice of the storage layer the manager writes to.
type Store interface {
	InsertWebhookEvent(ctx context.Context, event model.WebhookEvent) error
	InsertPRCodeComment(ctx context.Context, c model.PRCodeComment) error
}

// Gateway is the structured-generation surface used for intent
// classification.
type Gateway interface {
	GenerateStructured(ctx context.Context, prompt, systemPrompt string, schema map[string]any, model string) ([]byte, error)
}

// ReviewAgent handles review comments.
type ReviewAgent interface {
	ProcessComment(ctx context.Context, repoName string, prNumber int, body, path string, line int) error
}

// VerifyAgent verifies deployments.
type VerifyAgent interface {
	Verify(ctx context.Context, repoName string, prNumber int) error
}

// ConfigAgent validates Worker configuration.
type ConfigAgent interface {
	ValidateBindings(ctx context.Context, repoName, ref string) error
}

// ConflictAgent resolves unmergeable pull requests.
type ConflictAgent interface {
	ResolveConflict(ctx context.Context, repoName string, prNumber int) error
}

// Manager is the event dispatcher. One instance serves all deliveries; it
// holds no per-event state.
type Manager struct {
	store        Store
	gateway      Gateway
	classifyWith string
	mentionToken string
	review       ReviewAgent
	verifier     VerifyAgent
	config       ConfigAgent
	conflict     ConflictAgent
	log          *applog.Logger
}

// Config wires the manager's collaborators.
type Config struct {
	Store         Store
	Gateway       Gateway
	ClassifyModel string // model used for intent classification
	MentionToken  string // e.g. "@colby-bot"
	Review        ReviewAgent
	Verifier      VerifyAgent
	ConfigAgent   ConfigAgent
	Conflict      ConflictAgent
	Log           *applog.Logger
}

// NewManager creates the event manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		store:        cfg.Store,
		gateway:      cfg.Gateway,
		classifyWith: cfg.ClassifyModel,
		mentionToken: cfg.MentionToken,
		review:       cfg.Review,
		verifier:     cfg.Verifier,
		config:       cfg.ConfigAgent,
		conflict:     cfg.Conflict,
		log:          cfg.Log.WithSource("event_manager"),
	}
}

// eventPayload is the loosely-typed union of the webhook shapes the manager
// inspects. Unknown fields are ignored.
type eventPayload struct {
	Action      string `json:"action"`
	PullRequest *struct {
		Number    int    `json:"number"`
		Merged    bool   `json:"merged"`
		Mergeable *bool  `json:"mergeable"`
		HTMLURL   string `json:"html_url"`
		Head      struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Comment *struct {
		ID           int64  `json:"id"`
		Body         string `json:"body"`
		Path         string `json:"path"`
		Line         int    `json:"line"`
		OriginalLine int    `json:"original_line"`
		User         struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	Issue *struct {
		Number      int `json:"number"`
		PullRequest *struct {
			URL string `json:"url"`
		} `json:"pull_request"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Ref     string `json:"ref"`
	Commits []struct {
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
	} `json:"commits"`
}

// HandleEvent runs one delivery through received → logged → classified →
// dispatched. The webhook row is persisted before anything else so the audit
// trail survives classification and dispatch failures.
func (m *Manager) HandleEvent(ctx context.Context, eventType string, rawPayload []byte) {
	m.log.Info(ctx, "received event", map[string]any{"event": eventType})

	if err := m.store.InsertWebhookEvent(ctx, model.WebhookEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   rawPayload,
		Processed: false,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		m.log.Error(ctx, "webhook audit persist failed", map[string]any{"error": err.Error()})
	}

	var p eventPayload
	if err := json.Unmarshal(rawPayload, &p); err != nil {
		m.log.Error(ctx, "payload parse failed", map[string]any{"error": err.Error()})
		return
	}

	// First match wins; payloads can satisfy multiple shapes only
	// incidentally, so the order is fixed.
	switch {
	case eventType == "pull_request_review_comment" && p.Action == "created" && p.Comment != nil && p.PullRequest != nil:
		m.handleReviewComment(ctx, p)
	case eventType == "pull_request" && p.Action == "closed" && p.PullRequest != nil && p.PullRequest.Merged:
		m.dispatch(ctx, "deployment verification", func() error {
			return m.verifier.Verify(ctx, p.Repository.FullName, p.PullRequest.Number)
		})
	case eventType == "push":
		m.handlePush(ctx, p)
	case eventType == "issue_comment" && p.Action == "created" && p.Comment != nil:
		m.handleIssueComment(ctx, p)
	case eventType == "pull_request" && (p.Action == "opened" || p.Action == "synchronize" || p.Action == "reopened") && p.PullRequest != nil:
		m.handlePROpened(ctx, p)
	default:
		m.log.Info(ctx, "unhandled event", map[string]any{"event": eventType, "action": p.Action})
	}
}

func (m *Manager) handleReviewComment(ctx context.Context, p eventPayload) {
	repoName := p.Repository.FullName
	prNumber := p.PullRequest.Number
	line := p.Comment.Line
	if line == 0 {
		line = p.Comment.OriginalLine
	}

	// The comment row is persisted before dispatch, matching the webhook
	// audit guarantee.
	if err := m.store.InsertPRCodeComment(ctx, model.PRCodeComment{
		ID:        uuid.New(),
		RepoName:  repoName,
		PRNumber:  prNumber,
		CommentID: p.Comment.ID,
		Body:      p.Comment.Body,
		Path:      p.Comment.Path,
		Line:      line,
		Author:    p.Comment.User.Login,
		Status:    "open",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		m.log.Error(ctx, "comment persist failed", map[string]any{"error": err.Error()})
	}

	if m.hasMention(p.Comment.Body) {
		m.classifyAndDispatch(ctx, repoName, prNumber, p.Comment.Body)
		return
	}
	m.dispatch(ctx, "review comment", func() error {
		return m.review.ProcessComment(ctx, repoName, prNumber, p.Comment.Body, p.Comment.Path, line)
	})
}

func (m *Manager) handleIssueComment(ctx context.Context, p eventPayload) {
	if p.Issue == nil || p.Issue.PullRequest == nil {
		m.log.Info(ctx, "issue comment outside a pull request, ignoring", nil)
		return
	}
	if !m.hasMention(p.Comment.Body) {
		m.log.Info(ctx, "issue comment without mention, ignoring", nil)
		return
	}
	m.classifyAndDispatch(ctx, p.Repository.FullName, p.Issue.Number, p.Comment.Body)
}

func (m *Manager) handlePush(ctx context.Context, p eventPayload) {
	branch := strings.TrimPrefix(p.Ref, "refs/heads/")

	touched := make(map[string]bool)
	for _, c := range p.Commits {
		for _, f := range c.Added {
			touched[f] = true
		}
		for _, f := range c.Modified {
			touched[f] = true
		}
	}
	for _, name := range configFilenames {
		if touched[name] {
			m.dispatch(ctx, "configuration validation", func() error {
				return m.config.ValidateBindings(ctx, p.Repository.FullName, branch)
			})
			return
		}
	}
	m.log.Info(ctx, "push without configuration changes", map[string]any{"branch": branch})
}

// handlePROpened acknowledges the event and auto-creates a conflict task when
// GitHub already knows the PR is unmergeable.
func (m *Manager) handlePROpened(ctx context.Context, p eventPayload) {
	m.log.Info(ctx, "pull request activity", map[string]any{
		"repo": p.Repository.FullName, "pr": p.PullRequest.Number, "action": p.Action,
	})
	if p.PullRequest.Mergeable != nil && !*p.PullRequest.Mergeable {
		m.dispatch(ctx, "conflict resolution", func() error {
			return m.conflict.ResolveConflict(ctx, p.Repository.FullName, p.PullRequest.Number)
		})
	}
}

// intentSchema constrains the classifier's response to the closed intent set.
var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []any{IntentFixCode, IntentResolveConflict, IntentCheckStatus, IntentUnknown},
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required": []any{"intent"},
}

// classifyAndDispatch routes a mention comment through schema-constrained
// intent classification. Unknown intents and classification failures are
// logged no-ops.
func (m *Manager) classifyAndDispatch(ctx context.Context, repoName string, prNumber int, body string) {
	prompt := strings.TrimSpace(strings.ReplaceAll(body, m.mentionToken, ""))

	raw, err := m.gateway.GenerateStructured(ctx,
		"Classify this request from a pull request comment: "+prompt,
		"You route code-review bot commands. Classify the user's intent as fix_code, resolve_conflict, check_status, or unknown, and explain your reasoning briefly.",
		intentSchema, m.classifyWith)
	if err != nil {
		m.log.Warn(ctx, "intent classification failed", map[string]any{"error": err.Error()})
		return
	}

	var out struct {
		Intent    string `json:"intent"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		m.log.Warn(ctx, "intent response parse failed", map[string]any{"error": err.Error()})
		return
	}

	m.log.Info(ctx, "intent classified", map[string]any{
		"intent": out.Intent, "reasoning": out.Reasoning,
	})

	switch out.Intent {
	case IntentFixCode:
		m.dispatch(ctx, "review comment", func() error {
			return m.review.ProcessComment(ctx, repoName, prNumber, body, "", 0)
		})
	case IntentResolveConflict:
		m.dispatch(ctx, "conflict resolution", func() error {
			return m.conflict.ResolveConflict(ctx, repoName, prNumber)
		})
	case IntentCheckStatus:
		m.dispatch(ctx, "deployment verification", func() error {
			return m.verifier.Verify(ctx, repoName, prNumber)
		})
	default:
		m.log.Info(ctx, "unknown intent, no dispatch", nil)
	}
}

func (m *Manager) hasMention(body string) bool {
	return m.mentionToken != "" && strings.Contains(body, m.mentionToken)
}

// dispatch runs one agent invocation, converting any failure into a log
// entry. Webhook processing never fails because an agent did.
func (m *Manager) dispatch(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		m.log.Error(ctx, "dispatch failed", map[string]any{"what": what, "error": err.Error()})
	}
}
