// Package notifier turns approval-list deltas into per-contributor and
// CLA-manager notifications. Dispatch is independent per recipient: one
// failed delivery never blocks the others, and errors are collected rather
// than raised.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clahub/clahub/internal/approval"
	"github.com/clahub/clahub/internal/email"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/user"
)

// Notifier dispatches approval-list change notifications.
type Notifier struct {
	users  user.Repository
	sender email.Sender
}

// NewNotifier creates a Notifier.
func NewNotifier(users user.Repository, sender email.Sender) *Notifier {
	return &Notifier{users: users, sender: sender}
}

// NotifyApprovalListChange sends individual added/removed notices to every
// entry of the delta that resolves to a known contributor, plus one combined
// summary to the signature's CLA managers. The returned error joins all
// per-recipient failures; callers log it and move on.
func (n *Notifier) NotifyApprovalListChange(ctx context.Context, sig *signature.Signature, companyName, projectName string, delta approval.ListDelta) error {
	if delta.Empty() {
		return nil
	}

	var errs []error

	notify := func(u *user.User, added bool) {
		to := u.PrimaryEmail()
		if to == "" {
			return
		}
		msg := email.ApprovalListRemoved(to, companyName, projectName)
		if added {
			msg = email.ApprovalListAdded(to, companyName, projectName)
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notifying %s: %w", to, err))
		}
	}

	for _, entry := range delta.Emails.Added {
		if u := n.byEmail(ctx, entry); u != nil {
			notify(u, true)
		}
	}
	for _, entry := range delta.Emails.Removed {
		if u := n.byEmail(ctx, entry); u != nil {
			notify(u, false)
		}
	}
	for _, entry := range delta.GitHubUsernames.Added {
		if u := n.byGitHub(ctx, entry); u != nil {
			notify(u, true)
		}
	}
	for _, entry := range delta.GitHubUsernames.Removed {
		if u := n.byGitHub(ctx, entry); u != nil {
			notify(u, false)
		}
	}

	if summaryTo := n.managerEmails(ctx, sig); len(summaryTo) > 0 {
		msg := email.ApprovalListSummary(summaryTo, companyName, projectName, summarize(delta))
		if err := n.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notifying CLA managers: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) byEmail(ctx context.Context, entry string) *user.User {
	u, err := n.users.GetByEmail(ctx, entry)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Warn("resolving approval entry by email failed", "entry", entry, "error", err)
		}
		return nil
	}
	return u
}

func (n *Notifier) byGitHub(ctx context.Context, entry string) *user.User {
	u, err := n.users.GetByGitHubUsername(ctx, entry)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			slog.Warn("resolving approval entry by github username failed", "entry", entry, "error", err)
		}
		return nil
	}
	return u
}

// managerEmails resolves the signature's ACL usernames to email addresses.
func (n *Notifier) managerEmails(ctx context.Context, sig *signature.Signature) []string {
	var to []string
	for _, username := range sig.ACL {
		u, err := n.users.GetByUsername(ctx, username)
		if err != nil {
			if !errors.Is(err, user.ErrUserNotFound) {
				slog.Warn("resolving CLA manager failed", "username", username, "error", err)
			}
			continue
		}
		if addr := u.PrimaryEmail(); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}

func summarize(delta approval.ListDelta) string {
	var b strings.Builder
	section := func(name string, d approval.Delta) {
		if len(d.Added) == 0 && len(d.Removed) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\r\n", name)
		if len(d.Added) > 0 {
			fmt.Fprintf(&b, "  added: %s\r\n", strings.Join(d.Added, ", "))
		}
		if len(d.Removed) > 0 {
			fmt.Fprintf(&b, "  removed: %s\r\n", strings.Join(d.Removed, ", "))
		}
	}
	section("Emails", delta.Emails)
	section("Domains", delta.Domains)
	section("GitHub usernames", delta.GitHubUsernames)
	section("GitHub organizations", delta.GitHubOrgs)
	section("GitLab usernames", delta.GitLabUsernames)
	section("GitLab groups", delta.GitLabOrgs)
	return b.String()
}
