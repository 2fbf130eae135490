package identity

import (
	"context"
	"fmt"

	"github.com/google/go-github/v62/github"

	"github.com/clahub/clahub/internal/clerrors"
)

// GitHubClient implements GitHubResolver against the GitHub REST API.
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a GitHubResolver. An empty token yields an
// unauthenticated client subject to stricter rate limits.
func NewGitHubClient(token string) *GitHubClient {
	c := github.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &GitHubClient{client: c}
}

// UsernameByID resolves a numeric GitHub user ID to its login.
func (g *GitHubClient) UsernameByID(ctx context.Context, id int64) (string, error) {
	u, _, err := g.client.Users.GetByID(ctx, id)
	if err != nil {
		return "", &clerrors.ProviderError{Provider: "github", Op: fmt.Sprintf("get user by id %d", id), Err: err}
	}
	return u.GetLogin(), nil
}

// UserID resolves a GitHub login to its numeric ID.
func (g *GitHubClient) UserID(ctx context.Context, username string) (int64, error) {
	u, _, err := g.client.Users.Get(ctx, username)
	if err != nil {
		return 0, &clerrors.ProviderError{Provider: "github", Op: "get user " + username, Err: err}
	}
	return u.GetID(), nil
}

// Organizations lists the organization logins a user publicly belongs to.
func (g *GitHubClient) Organizations(ctx context.Context, username string) ([]string, error) {
	opt := &github.ListOptions{PerPage: 100}
	var logins []string
	for {
		orgs, resp, err := g.client.Organizations.List(ctx, username, opt)
		if err != nil {
			return nil, &clerrors.ProviderError{Provider: "github", Op: "list orgs for " + username, Err: err}
		}
		for _, o := range orgs {
			logins = append(logins, o.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return logins, nil
}
