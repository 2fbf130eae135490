package identity

import (
	"context"
	"fmt"

	gitlab "github.com/xanzy/go-gitlab"

	"github.com/clahub/clahub/internal/clerrors"
)

// GitLabClient implements GitLabResolver against the GitLab REST API.
type GitLabClient struct {
	client *gitlab.Client
}

// NewGitLabClient creates a GitLabResolver. baseURL may be empty for
// gitlab.com.
func NewGitLabClient(token, baseURL string) (*GitLabClient, error) {
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	c, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLabClient{client: c}, nil
}

// UsernameByID resolves a numeric GitLab user ID to its username.
func (g *GitLabClient) UsernameByID(ctx context.Context, id int64) (string, error) {
	u, _, err := g.client.Users.GetUser(int(id), gitlab.GetUsersOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return "", &clerrors.ProviderError{Provider: "gitlab", Op: fmt.Sprintf("get user by id %d", id), Err: err}
	}
	return u.Username, nil
}

// UserID resolves a GitLab username to its numeric ID.
func (g *GitLabClient) UserID(ctx context.Context, username string) (int64, error) {
	users, _, err := g.client.Users.ListUsers(&gitlab.ListUsersOptions{
		Username: gitlab.Ptr(username),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return 0, &clerrors.ProviderError{Provider: "gitlab", Op: "get user " + username, Err: err}
	}
	if len(users) == 0 {
		return 0, &clerrors.ProviderError{Provider: "gitlab", Op: "get user " + username, Err: fmt.Errorf("no user named %q", username)}
	}
	return int64(users[0].ID), nil
}

// Groups lists the names of the groups a user belongs to.
func (g *GitLabClient) Groups(ctx context.Context, userID int64) ([]string, error) {
	opt := &gitlab.GetUserMembershipOptions{
		Type:        gitlab.Ptr("Namespace"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var names []string
	for {
		memberships, resp, err := g.client.Users.GetUserMemberships(int(userID), opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, &clerrors.ProviderError{Provider: "gitlab", Op: fmt.Sprintf("list memberships for %d", userID), Err: err}
		}
		for _, m := range memberships {
			names = append(names, m.SourceName)
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return names, nil
}
