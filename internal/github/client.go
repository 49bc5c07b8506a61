// Package github wraps the GitHub REST API behind the read surface the agents
// need: file content at a ref, pull request metadata, changed files, and
// review comments.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
)

// Client is a read-only GitHub API client scoped to the operations the agents
// perform. It never mutates repository state.
type Client struct {
	gh *github.Client
}

// NewClient creates a client authenticated with the given token. An empty
// baseURL targets api.github.com; tests point it at a local server.
func NewClient(token, baseURL string) (*Client, error) {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("github: parse base url: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

// PullRequest is the subset of PR metadata the agents act on.
type PullRequest struct {
	Number    int
	Title     string
	State     string
	Merged    bool
	Mergeable *bool // nil while GitHub is still computing mergeability
	HeadRef   string
	HeadSHA   string
	BaseRef   string
	HTMLURL   string
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// ReviewComment is one inline review comment on a pull request.
type ReviewComment struct {
	ID       int64
	Path     string
	Line     int
	Body     string
	Author   string
	CommitID string
}

// FileContent fetches the decoded content of a file at the given ref.
// Returns an error when the path does not exist at that ref or resolves to a
// directory.
func (c *Client) FileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("github: get contents %s@%s: %w", path, ref, err)
	}
	if file == nil {
		return "", fmt.Errorf("github: %s@%s is a directory", path, ref)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("github: decode contents %s@%s: %w", path, ref, err)
	}
	return content, nil
}

// GetPullRequest fetches PR metadata including mergeability.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return PullRequest{}, fmt.Errorf("github: get pull request #%d: %w", number, err)
	}
	return toPullRequest(pr), nil
}

// ListChangedFiles lists the files touched by a pull request.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var out []ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list files for #%d: %w", number, err)
		}
		for _, f := range files {
			out = append(out, ChangedFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListReviewComments lists the inline review comments on a pull request.
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]ReviewComment, error) {
	var out []ReviewComment
	opts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list review comments for #%d: %w", number, err)
		}
		for _, cm := range comments {
			out = append(out, ReviewComment{
				ID:       cm.GetID(),
				Path:     cm.GetPath(),
				Line:     cm.GetLine(),
				Body:     cm.GetBody(),
				Author:   cm.GetUser().GetLogin(),
				CommitID: cm.GetCommitID(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListOpenPullRequests lists the open pull requests on a repository.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	var out []PullRequest
	opts := &github.PullRequestListOptions{State: "open", ListOptions: github.ListOptions{PerPage: 100}}
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list open pull requests: %w", err)
		}
		for _, pr := range prs {
			out = append(out, toPullRequest(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func toPullRequest(pr *github.PullRequest) PullRequest {
	out := PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		State:   pr.GetState(),
		Merged:  pr.GetMerged(),
		HeadRef: pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
		BaseRef: pr.GetBase().GetRef(),
		HTMLURL: pr.GetHTMLURL(),
	}
	if pr.Mergeable != nil {
		out.Mergeable = pr.Mergeable
	}
	return out
}
