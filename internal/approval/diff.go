package approval

import (
	"strings"

	"github.com/clahub/clahub/internal/signature"
)

// Delta holds the entries added to and removed from one approval list.
type Delta struct {
	Added   []string
	Removed []string
}

// ListDelta holds per-list deltas between two approval-list snapshots.
type ListDelta struct {
	Emails          Delta
	Domains         Delta
	GitHubUsernames Delta
	GitHubOrgs      Delta
	GitLabUsernames Delta
	GitLabOrgs      Delta
}

// Empty reports whether no list changed.
func (d ListDelta) Empty() bool {
	for _, delta := range []Delta{
		d.Emails, d.Domains, d.GitHubUsernames,
		d.GitHubOrgs, d.GitLabUsernames, d.GitLabOrgs,
	} {
		if len(delta.Added) > 0 || len(delta.Removed) > 0 {
			return false
		}
	}
	return true
}

// DiffLists computes per-list added/removed entries between two snapshots.
// Comparison is case-insensitive; entry order within each delta follows the
// order of the source list.
func DiffLists(old, updated signature.ApprovalLists) ListDelta {
	return ListDelta{
		Emails:          diffEntries(old.Emails, updated.Emails),
		Domains:         diffEntries(old.Domains, updated.Domains),
		GitHubUsernames: diffEntries(old.GitHubUsernames, updated.GitHubUsernames),
		GitHubOrgs:      diffEntries(old.GitHubOrgs, updated.GitHubOrgs),
		GitLabUsernames: diffEntries(old.GitLabUsernames, updated.GitLabUsernames),
		GitLabOrgs:      diffEntries(old.GitLabOrgs, updated.GitLabOrgs),
	}
}

func diffEntries(old, updated []string) Delta {
	oldSet := toSet(old)
	newSet := toSet(updated)

	var d Delta
	for _, entry := range updated {
		if _, ok := oldSet[strings.ToLower(entry)]; !ok {
			d.Added = append(d.Added, entry)
		}
	}
	for _, entry := range old {
		if _, ok := newSet[strings.ToLower(entry)]; !ok {
			d.Removed = append(d.Removed, entry)
		}
	}
	return d
}

func toSet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}
