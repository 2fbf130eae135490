// Package scm notifies source-control providers about a contributor's
// authorization so blocked pull or merge requests can proceed.
package scm

import "context"

// ChangeRequestUpdater reflects a contributor's CLA status onto a pending
// change request.
type ChangeRequestUpdater interface {
	UpdateChangeRequestStatus(ctx context.Context, installationID, repoID int64, changeRequestID int, authorized bool) error
}

// NoopUpdater ignores all updates. Used when no SCM integration is
// configured.
type NoopUpdater struct{}

func (NoopUpdater) UpdateChangeRequestStatus(context.Context, int64, int64, int, bool) error {
	return nil
}
