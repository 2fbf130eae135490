// Package identity resolves contributor identities against GitHub and
// GitLab: username by numeric ID and organization/group membership. The
// approval matcher consumes these through small interfaces so tests can
// substitute fakes.
package identity

import "context"

// GitHubResolver resolves GitHub identities.
type GitHubResolver interface {
	// UsernameByID resolves a numeric GitHub user ID to its login.
	UsernameByID(ctx context.Context, id int64) (string, error)
	// UserID resolves a GitHub login to its numeric ID.
	UserID(ctx context.Context, username string) (int64, error)
	// Organizations lists the organization logins a user belongs to.
	Organizations(ctx context.Context, username string) ([]string, error)
}

// GitLabResolver resolves GitLab identities.
type GitLabResolver interface {
	// UsernameByID resolves a numeric GitLab user ID to its username.
	UsernameByID(ctx context.Context, id int64) (string, error)
	// UserID resolves a GitLab username to its numeric ID.
	UserID(ctx context.Context, username string) (int64, error)
	// Groups lists the group names a user belongs to.
	Groups(ctx context.Context, userID int64) ([]string, error)
}
