package scm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"

	"github.com/clahub/clahub/internal/clerrors"
)

const statusContext = "cla/signed"

// GitHubUpdater implements ChangeRequestUpdater by setting a commit status
// on the pull request's head commit.
type GitHubUpdater struct {
	client *github.Client
}

// NewGitHubUpdater creates a ChangeRequestUpdater for GitHub.
func NewGitHubUpdater(token string) *GitHubUpdater {
	c := github.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &GitHubUpdater{client: c}
}

// UpdateChangeRequestStatus sets a success or failure status on the pull
// request identified by repoID and changeRequestID.
func (g *GitHubUpdater) UpdateChangeRequestStatus(ctx context.Context, installationID, repoID int64, changeRequestID int, authorized bool) error {
	repo, _, err := g.client.Repositories.GetByID(ctx, repoID)
	if err != nil {
		return &clerrors.ProviderError{Provider: "github", Op: fmt.Sprintf("get repository %d", repoID), Err: err}
	}

	parts := strings.SplitN(repo.GetFullName(), "/", 2)
	if len(parts) != 2 {
		return &clerrors.ProviderError{
			Provider: "github",
			Op:       fmt.Sprintf("get repository %d", repoID),
			Err:      fmt.Errorf("unexpected repository name %q", repo.GetFullName()),
		}
	}
	owner, name := parts[0], parts[1]

	pr, _, err := g.client.PullRequests.Get(ctx, owner, name, changeRequestID)
	if err != nil {
		return &clerrors.ProviderError{Provider: "github", Op: fmt.Sprintf("get pull request %d", changeRequestID), Err: err}
	}

	state, description := "failure", "Missing CLA authorization."
	if authorized {
		state, description = "success", "CLA signed and authorized."
	}

	status := &github.RepoStatus{
		State:       github.String(state),
		Description: github.String(description),
		Context:     github.String(statusContext),
	}
	_, _, err = g.client.Repositories.CreateStatus(ctx, owner, name, pr.GetHead().GetSHA(), status)
	if err != nil {
		return &clerrors.ProviderError{Provider: "github", Op: fmt.Sprintf("set status on pull request %d", changeRequestID), Err: err}
	}
	return nil
}
