package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a row in the users table: the identity aggregate for a
// contributor. A user may carry several verified emails plus optional
// GitHub/GitLab identities and a company link.
type User struct {
	ID             uuid.UUID
	Username       string
	Name           string
	Emails         []string
	GitHubUsername *string
	GitHubID       *int64
	GitLabUsername *string
	GitLabID       *int64
	CompanyID      *uuid.UUID
	ApiKeyPrefix   *string
	ApiKeyHash     *string
	IsAdmin        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasEmail reports whether email is among the user's verified emails,
// case-insensitively.
func (u *User) HasEmail(email string) bool {
	for _, e := range u.Emails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// PrimaryEmail returns the first verified email, or "" if none exist.
func (u *User) PrimaryEmail() string {
	if len(u.Emails) == 0 {
		return ""
	}
	return u.Emails[0]
}
