// Package approval decides whether a contributor is covered by a corporate
// signature's approval lists, and computes list deltas for change
// notifications.
package approval

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/clahub/clahub/internal/identity"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/user"
)

// Matcher evaluates approval lists against a contributor's identities.
// GitHub/GitLab resolvers and the user repository are optional; when absent
// the corresponding checks are skipped. Cache writes of resolved usernames
// never affect the match result.
type Matcher struct {
	github identity.GitHubResolver
	gitlab identity.GitLabResolver
	users  user.Repository
}

// NewMatcher creates a Matcher. Any collaborator may be nil.
func NewMatcher(github identity.GitHubResolver, gitlab identity.GitLabResolver, users user.Repository) *Matcher {
	return &Matcher{github: github, gitlab: gitlab, users: users}
}

// IsApproved reports whether the contributor is on any of the approval
// lists. Checks run in a fixed order and short-circuit on the first match:
// emails, email domains, GitHub username, GitHub organizations, GitLab
// username, GitLab groups. Returns false when no list matches or none are
// configured.
func (m *Matcher) IsApproved(ctx context.Context, u *user.User, lists signature.ApprovalLists) bool {
	if matchEmails(u.Emails, lists.Emails) {
		return true
	}
	if matchDomains(u.Emails, lists.Domains) {
		return true
	}
	if m.matchGitHubUsername(ctx, u, lists.GitHubUsernames) {
		return true
	}
	if m.matchGitHubOrgs(ctx, u, lists.GitHubOrgs) {
		return true
	}
	if m.matchGitLabUsername(ctx, u, lists.GitLabUsernames) {
		return true
	}
	if m.matchGitLabGroups(ctx, u, lists.GitLabOrgs) {
		return true
	}
	return false
}

func matchEmails(emails, list []string) bool {
	for _, entry := range list {
		for _, email := range emails {
			if strings.EqualFold(email, entry) {
				return true
			}
		}
	}
	return false
}

// domainPattern rewrites an approval-list domain entry into an anchored
// regex over the full email. A pattern prefixed with "*.", "*" or "." covers
// the domain and its subdomains; a bare domain covers only that exact
// domain.
func domainPattern(entry string) (*regexp.Regexp, error) {
	domain := entry
	wildcard := false
	switch {
	case strings.HasPrefix(domain, "*."):
		domain = domain[2:]
		wildcard = true
	case strings.HasPrefix(domain, "*"):
		domain = strings.TrimPrefix(domain[1:], ".")
		wildcard = true
	case strings.HasPrefix(domain, "."):
		domain = domain[1:]
		wildcard = true
	}

	expr := `(?i)^[^@]+@`
	if wildcard {
		expr += `([^@]+\.)?`
	}
	expr += regexp.QuoteMeta(domain) + `$`
	return regexp.Compile(expr)
}

func matchDomains(emails, list []string) bool {
	for _, entry := range list {
		re, err := domainPattern(entry)
		if err != nil {
			slog.Warn("invalid domain approval entry", "entry", entry, "error", err)
			continue
		}
		for _, email := range emails {
			if re.MatchString(email) {
				return true
			}
		}
	}
	return false
}

// resolveGitHubUsername returns the contributor's GitHub login, resolving it
// from the numeric ID when unknown and caching the result on the user
// record. A cache-write failure is logged and ignored.
func (m *Matcher) resolveGitHubUsername(ctx context.Context, u *user.User) string {
	if u.GitHubUsername != nil && *u.GitHubUsername != "" {
		return *u.GitHubUsername
	}
	if u.GitHubID == nil || m.github == nil {
		return ""
	}
	username, err := m.github.UsernameByID(ctx, *u.GitHubID)
	if err != nil {
		slog.Warn("resolving github username failed", "userId", u.ID, "githubId", *u.GitHubID, "error", err)
		return ""
	}
	u.GitHubUsername = &username
	if m.users != nil {
		if err := m.users.Update(ctx, u); err != nil {
			slog.Warn("caching github username failed", "userId", u.ID, "error", err)
		}
	}
	return username
}

func (m *Matcher) matchGitHubUsername(ctx context.Context, u *user.User, list []string) bool {
	if len(list) == 0 {
		return false
	}
	username := m.resolveGitHubUsername(ctx, u)
	if username == "" {
		return false
	}
	for _, entry := range list {
		if strings.EqualFold(username, entry) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchGitHubOrgs(ctx context.Context, u *user.User, list []string) bool {
	if len(list) == 0 || m.github == nil {
		return false
	}
	username := m.resolveGitHubUsername(ctx, u)
	if username == "" {
		return false
	}
	orgs, err := m.github.Organizations(ctx, username)
	if err != nil {
		slog.Warn("listing github organizations failed", "username", username, "error", err)
		return false
	}
	for _, entry := range list {
		for _, org := range orgs {
			if strings.EqualFold(org, entry) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) resolveGitLabUsername(ctx context.Context, u *user.User) string {
	if u.GitLabUsername != nil && *u.GitLabUsername != "" {
		return *u.GitLabUsername
	}
	if u.GitLabID == nil || m.gitlab == nil {
		return ""
	}
	username, err := m.gitlab.UsernameByID(ctx, *u.GitLabID)
	if err != nil {
		slog.Warn("resolving gitlab username failed", "userId", u.ID, "gitlabId", *u.GitLabID, "error", err)
		return ""
	}
	u.GitLabUsername = &username
	if m.users != nil {
		if err := m.users.Update(ctx, u); err != nil {
			slog.Warn("caching gitlab username failed", "userId", u.ID, "error", err)
		}
	}
	return username
}

func (m *Matcher) matchGitLabUsername(ctx context.Context, u *user.User, list []string) bool {
	if len(list) == 0 {
		return false
	}
	username := m.resolveGitLabUsername(ctx, u)
	if username == "" {
		return false
	}
	for _, entry := range list {
		if strings.EqualFold(username, entry) {
			return true
		}
	}
	return false
}

func (m *Matcher) resolveGitLabID(ctx context.Context, u *user.User) *int64 {
	if u.GitLabID != nil {
		return u.GitLabID
	}
	if u.GitLabUsername == nil || *u.GitLabUsername == "" || m.gitlab == nil {
		return nil
	}
	id, err := m.gitlab.UserID(ctx, *u.GitLabUsername)
	if err != nil {
		slog.Warn("resolving gitlab id failed", "userId", u.ID, "gitlabUsername", *u.GitLabUsername, "error", err)
		return nil
	}
	u.GitLabID = &id
	if m.users != nil {
		if err := m.users.Update(ctx, u); err != nil {
			slog.Warn("caching gitlab id failed", "userId", u.ID, "error", err)
		}
	}
	return u.GitLabID
}

func (m *Matcher) matchGitLabGroups(ctx context.Context, u *user.User, list []string) bool {
	if len(list) == 0 || m.gitlab == nil {
		return false
	}
	id := m.resolveGitLabID(ctx, u)
	if id == nil {
		return false
	}
	groups, err := m.gitlab.Groups(ctx, *id)
	if err != nil {
		slog.Warn("listing gitlab groups failed", "gitlabId", *id, "error", err)
		return false
	}
	for _, entry := range list {
		for _, group := range groups {
			if strings.EqualFold(group, entry) {
				return true
			}
		}
	}
	return false
}
