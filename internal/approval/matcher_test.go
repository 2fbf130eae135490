package approval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahub/clahub/internal/approval"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/user"
)

// --- Mock Resolvers ---

type mockGitHub struct {
	usernameByIDFn  func(ctx context.Context, id int64) (string, error)
	userIDFn        func(ctx context.Context, username string) (int64, error)
	organizationsFn func(ctx context.Context, username string) ([]string, error)
}

func (m *mockGitHub) UsernameByID(ctx context.Context, id int64) (string, error) {
	if m.usernameByIDFn != nil {
		return m.usernameByIDFn(ctx, id)
	}
	return "", errors.New("not configured")
}

func (m *mockGitHub) UserID(ctx context.Context, username string) (int64, error) {
	if m.userIDFn != nil {
		return m.userIDFn(ctx, username)
	}
	return 0, errors.New("not configured")
}

func (m *mockGitHub) Organizations(ctx context.Context, username string) ([]string, error) {
	if m.organizationsFn != nil {
		return m.organizationsFn(ctx, username)
	}
	return nil, errors.New("not configured")
}

type mockGitLab struct {
	usernameByIDFn func(ctx context.Context, id int64) (string, error)
	userIDFn       func(ctx context.Context, username string) (int64, error)
	groupsFn       func(ctx context.Context, id int64) ([]string, error)
}

func (m *mockGitLab) UsernameByID(ctx context.Context, id int64) (string, error) {
	if m.usernameByIDFn != nil {
		return m.usernameByIDFn(ctx, id)
	}
	return "", errors.New("not configured")
}

func (m *mockGitLab) UserID(ctx context.Context, username string) (int64, error) {
	if m.userIDFn != nil {
		return m.userIDFn(ctx, username)
	}
	return 0, errors.New("not configured")
}

func (m *mockGitLab) Groups(ctx context.Context, id int64) ([]string, error) {
	if m.groupsFn != nil {
		return m.groupsFn(ctx, id)
	}
	return nil, errors.New("not configured")
}

type mockUserRepo struct {
	updateFn func(ctx context.Context, u *user.User) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *user.User) error { return nil }
func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) GetByGitHubUsername(ctx context.Context, username string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}
func (m *mockUserRepo) Update(ctx context.Context, u *user.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, u)
	}
	return nil
}
func (m *mockUserRepo) FindByKeyPrefix(ctx context.Context, prefix string) ([]user.User, error) {
	return nil, nil
}

func testUser(emails ...string) *user.User {
	return &user.User{
		ID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Username: "jdoe",
		Name:     "Jane Doe",
		Emails:   emails,
	}
}

func strPtr(s string) *string { return &s }
func i64Ptr(i int64) *int64   { return &i }

// --- Email Matching ---

func TestIsApproved_EmailExactMatch(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser("jane@acme.com")
	lists := signature.ApprovalLists{Emails: []string{"jane@acme.com"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_EmailCaseInsensitive(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser("Jane@Acme.COM")
	lists := signature.ApprovalLists{Emails: []string{"jane@acme.com"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_EmailNoMatch(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser("jane@other.com")
	lists := signature.ApprovalLists{Emails: []string{"jane@acme.com"}}

	assert.False(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_EmptyListsRejects(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser("jane@acme.com")

	assert.False(t, m.IsApproved(context.Background(), u, signature.ApprovalLists{}))
}

// --- Domain Matching ---

func TestIsApproved_BareDomainExactOnly(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	lists := signature.ApprovalLists{Domains: []string{"acme.com"}}

	assert.True(t, m.IsApproved(context.Background(), testUser("dev@acme.com"), lists))
	assert.False(t, m.IsApproved(context.Background(), testUser("dev@corp.acme.com"), lists),
		"bare domain must not cover subdomains")
	assert.False(t, m.IsApproved(context.Background(), testUser("dev@notacme.com"), lists))
	assert.False(t, m.IsApproved(context.Background(), testUser("dev@acme.com.evil.org"), lists),
		"domain must anchor at the end of the address")
}

func TestIsApproved_WildcardDomainCoversSubdomains(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)

	for _, entry := range []string{"*.acme.com", "*acme.com", ".acme.com"} {
		lists := signature.ApprovalLists{Domains: []string{entry}}
		assert.True(t, m.IsApproved(context.Background(), testUser("dev@acme.com"), lists),
			"entry %q should cover the bare domain", entry)
		assert.True(t, m.IsApproved(context.Background(), testUser("dev@corp.acme.com"), lists),
			"entry %q should cover subdomains", entry)
		assert.False(t, m.IsApproved(context.Background(), testUser("dev@acme.org"), lists),
			"entry %q must not cover other domains", entry)
	}
}

func TestIsApproved_DomainCaseInsensitive(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	lists := signature.ApprovalLists{Domains: []string{"*.Acme.Com"}}

	assert.True(t, m.IsApproved(context.Background(), testUser("Dev@CORP.ACME.COM"), lists))
}

func TestIsApproved_DomainDotsNotWildcards(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	lists := signature.ApprovalLists{Domains: []string{"acme.com"}}

	// The dot in the entry is a literal, not a regex any-char.
	assert.False(t, m.IsApproved(context.Background(), testUser("dev@acmeXcom"), lists))
}

func TestIsApproved_InvalidDomainEntrySkipped(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	lists := signature.ApprovalLists{Domains: []string{"acme.com"}}
	u := testUser("dev@acme.com")

	// A second malformed entry must not prevent the valid one from matching.
	lists.Domains = append([]string{"["}, lists.Domains...)
	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

// --- GitHub Matching ---

func TestIsApproved_GitHubUsernameDirect(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser()
	u.GitHubUsername = strPtr("janedoe")
	lists := signature.ApprovalLists{GitHubUsernames: []string{"JaneDoe"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_GitHubUsernameResolvedFromID(t *testing.T) {
	gh := &mockGitHub{
		usernameByIDFn: func(_ context.Context, id int64) (string, error) {
			assert.Equal(t, int64(4242), id)
			return "janedoe", nil
		},
	}
	updated := false
	users := &mockUserRepo{updateFn: func(_ context.Context, u *user.User) error {
		updated = true
		return nil
	}}
	m := approval.NewMatcher(gh, nil, users)

	u := testUser()
	u.GitHubID = i64Ptr(4242)
	lists := signature.ApprovalLists{GitHubUsernames: []string{"janedoe"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
	assert.True(t, updated, "resolved username should be cached on the user record")
	assert.Equal(t, "janedoe", *u.GitHubUsername)
}

func TestIsApproved_CacheWriteFailureDoesNotAffectResult(t *testing.T) {
	gh := &mockGitHub{
		usernameByIDFn: func(context.Context, int64) (string, error) { return "janedoe", nil },
	}
	users := &mockUserRepo{updateFn: func(context.Context, *user.User) error {
		return errors.New("db down")
	}}
	m := approval.NewMatcher(gh, nil, users)

	u := testUser()
	u.GitHubID = i64Ptr(4242)
	lists := signature.ApprovalLists{GitHubUsernames: []string{"janedoe"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_GitHubResolutionFailureRejects(t *testing.T) {
	gh := &mockGitHub{
		usernameByIDFn: func(context.Context, int64) (string, error) {
			return "", errors.New("api unavailable")
		},
	}
	m := approval.NewMatcher(gh, nil, nil)

	u := testUser()
	u.GitHubID = i64Ptr(4242)
	lists := signature.ApprovalLists{GitHubUsernames: []string{"janedoe"}}

	assert.False(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_GitHubOrgMembership(t *testing.T) {
	gh := &mockGitHub{
		organizationsFn: func(_ context.Context, username string) ([]string, error) {
			assert.Equal(t, "janedoe", username)
			return []string{"acme-inc", "oss-stuff"}, nil
		},
	}
	m := approval.NewMatcher(gh, nil, nil)

	u := testUser()
	u.GitHubUsername = strPtr("janedoe")
	lists := signature.ApprovalLists{GitHubOrgs: []string{"Acme-Inc"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_NilResolverSkipsGitHubChecks(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)

	u := testUser()
	u.GitHubID = i64Ptr(4242)
	lists := signature.ApprovalLists{
		GitHubUsernames: []string{"janedoe"},
		GitHubOrgs:      []string{"acme-inc"},
	}

	assert.False(t, m.IsApproved(context.Background(), u, lists))
}

// --- GitLab Matching ---

func TestIsApproved_GitLabUsernameResolvedFromID(t *testing.T) {
	gl := &mockGitLab{
		usernameByIDFn: func(context.Context, int64) (string, error) { return "jdoe", nil },
	}
	m := approval.NewMatcher(nil, gl, nil)

	u := testUser()
	u.GitLabID = i64Ptr(99)
	lists := signature.ApprovalLists{GitLabUsernames: []string{"jdoe"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_GitLabGroupMembership(t *testing.T) {
	gl := &mockGitLab{
		groupsFn: func(_ context.Context, id int64) ([]string, error) {
			assert.Equal(t, int64(99), id)
			return []string{"acme-group"}, nil
		},
	}
	m := approval.NewMatcher(nil, gl, nil)

	u := testUser()
	u.GitLabID = i64Ptr(99)
	lists := signature.ApprovalLists{GitLabOrgs: []string{"acme-group"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_GitLabGroupResolvesIDFromUsername(t *testing.T) {
	var cached bool
	gl := &mockGitLab{
		userIDFn: func(_ context.Context, username string) (int64, error) {
			assert.Equal(t, "jdoe", username)
			return 77, nil
		},
		groupsFn: func(_ context.Context, id int64) ([]string, error) {
			assert.Equal(t, int64(77), id)
			return []string{"acme-group"}, nil
		},
	}
	users := &mockUserRepo{
		updateFn: func(_ context.Context, u *user.User) error {
			require.NotNil(t, u.GitLabID)
			assert.Equal(t, int64(77), *u.GitLabID)
			cached = true
			return nil
		},
	}
	m := approval.NewMatcher(nil, gl, users)

	u := testUser()
	u.GitLabUsername = strPtr("jdoe")
	lists := signature.ApprovalLists{GitLabOrgs: []string{"acme-group"}}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
	assert.True(t, cached, "resolved id must be written back to the user record")
}

func TestIsApproved_GitLabGroupIDResolutionFailureRejects(t *testing.T) {
	gl := &mockGitLab{
		userIDFn: func(context.Context, string) (int64, error) {
			return 0, errors.New("gitlab unavailable")
		},
	}
	m := approval.NewMatcher(nil, gl, nil)

	u := testUser()
	u.GitLabUsername = strPtr("jdoe")
	lists := signature.ApprovalLists{GitLabOrgs: []string{"acme-group"}}

	assert.False(t, m.IsApproved(context.Background(), u, lists))
}

// --- Ordering ---

func TestIsApproved_EmailMatchShortCircuitsResolvers(t *testing.T) {
	gh := &mockGitHub{
		usernameByIDFn: func(context.Context, int64) (string, error) {
			t.Fatal("resolver must not be called when an email already matched")
			return "", nil
		},
	}
	m := approval.NewMatcher(gh, nil, nil)

	u := testUser("jane@acme.com")
	u.GitHubID = i64Ptr(4242)
	lists := signature.ApprovalLists{
		Emails:          []string{"jane@acme.com"},
		GitHubUsernames: []string{"janedoe"},
	}

	assert.True(t, m.IsApproved(context.Background(), u, lists))
}

func TestIsApproved_Deterministic(t *testing.T) {
	m := approval.NewMatcher(nil, nil, nil)
	u := testUser("dev@corp.acme.com")
	lists := signature.ApprovalLists{Domains: []string{"*.acme.com"}}

	for i := 0; i < 10; i++ {
		assert.True(t, m.IsApproved(context.Background(), u, lists))
	}
}
