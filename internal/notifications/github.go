package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const githubAPI = "https://api.github.com"

// GitHubIssues files issues in one repository
type GitHubIssues struct {
	token   string
	owner   string
	repo    string
	client  *resty.Client
	baseURL string
}

type githubIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type githubIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// NewGitHubIssues creates an issue client for "owner/name"
func NewGitHubIssues(token, repository string) *GitHubIssues {
	g := &GitHubIssues{
		token: token,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/vnd.github+json").
			SetHeader("X-GitHub-Api-Version", "2022-11-28"),
		baseURL: githubAPI,
	}

	if owner, repo, ok := strings.Cut(repository, "/"); ok {
		g.owner, g.repo = owner, repo
	}

	return g
}

func (g *GitHubIssues) IsConfigured() bool {
	return g.token != "" && g.owner != "" && g.repo != ""
}

// CreateIssue opens an issue and returns its URL
func (g *GitHubIssues) CreateIssue(ctx context.Context, title, body string, labels []string) (string, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.token).
		SetBody(githubIssueRequest{Title: title, Body: body, Labels: labels}).
		Post(fmt.Sprintf("%s/repos/%s/%s/issues", g.baseURL, g.owner, g.repo))

	if err != nil {
		return "", fmt.Errorf("failed to create GitHub issue: %w", err)
	}

	if resp.StatusCode() != 201 {
		return "", fmt.Errorf("github returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var issue githubIssueResponse
	if err := json.Unmarshal(resp.Body(), &issue); err != nil {
		return "", fmt.Errorf("failed to parse GitHub response: %w", err)
	}

	return issue.HTMLURL, nil
}
