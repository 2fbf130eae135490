// Package envelope binds CLA document templates to signing sessions: it
// resolves the acting signer, voids superseded envelopes, requests new ones
// from the e-signature provider, and persists the resulting sign URL.
package envelope

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/clerrors"
	"github.com/clahub/clahub/internal/docusign"
	"github.com/clahub/clahub/internal/project"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/user"
)

// Orchestrator drives envelope creation for a signature.
type Orchestrator struct {
	provider docusign.Provider
	sigs     signature.Repository
	projects project.Repository
	users    user.Repository
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(provider docusign.Provider, sigs signature.Repository, projects project.Repository, users user.Repository) *Orchestrator {
	return &Orchestrator{provider: provider, sigs: sigs, projects: projects, users: users}
}

// SignRequest carries per-request signing parameters.
type SignRequest struct {
	ReturnURL   string
	CallbackURL string
	// SendAsEmail routes the envelope through provider email delivery; no
	// embedded sign URL is generated.
	SendAsEmail bool
	// Explicit signatory for corporate signatures; takes precedence over
	// the requesting user's profile.
	SignatoryName  string
	SignatoryEmail string
	// RequestingUserID is the fallback acting party for corporate
	// signatures and ignored for individual ones.
	RequestingUserID uuid.UUID
	// DefaultFields seeds the document field bindings; computed
	// acting-party values override on label collision.
	DefaultFields map[string]string
}

// PopulateSignURL creates a signing envelope for the signature and records
// the envelope ID, plus the embedded sign URL unless SendAsEmail is set.
// Failures before any provider call abort without side effects; a failure to
// void a prior envelope is logged and swallowed since the new envelope
// supersedes it.
func (o *Orchestrator) PopulateSignURL(ctx context.Context, sig *signature.Signature, req SignRequest) error {
	signerName, signerEmail, err := o.resolveActingParty(ctx, sig, req)
	if err != nil {
		return err
	}

	proj, err := o.projects.GetByID(ctx, sig.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", sig.ProjectID, err)
	}
	doc := proj.CurrentDocument(sig.Type == signature.TypeCorporate)
	if doc == nil {
		return &clerrors.PreconditionError{
			Code:    clerrors.CodeMissingTemplate,
			Message: fmt.Sprintf("project %s has no %s document template", proj.Name, sig.Type),
		}
	}

	if sig.EnvelopeID != nil && *sig.EnvelopeID != "" {
		reason := fmt.Sprintf("Superseded by a new signing request for signature %s", sig.ID)
		if err := o.provider.VoidEnvelope(ctx, *sig.EnvelopeID, reason); err != nil {
			slog.Warn("voiding stale envelope failed",
				"signatureId", sig.ID, "envelopeId", *sig.EnvelopeID, "error", err)
		}
	}

	fields := make(map[string]string, len(req.DefaultFields)+2)
	for k, v := range req.DefaultFields {
		fields[k] = v
	}
	fields["signatory_name"] = signerName
	fields["signatory_email"] = signerEmail

	signer := docusign.Signer{
		Name:         signerName,
		Email:        signerEmail,
		ClientUserID: sig.ID.String(),
	}

	envelopeID, err := o.provider.CreateEnvelope(ctx, docusign.EnvelopeRequest{
		TemplateID:  doc.TemplateID,
		Signer:      signer,
		SendAsEmail: req.SendAsEmail,
		CallbackURL: req.CallbackURL,
		Fields:      fields,
	})
	if err != nil {
		slog.Error("creating envelope failed",
			"signatureId", sig.ID, "projectId", sig.ProjectID, "template", doc.TemplateID, "error", err)
		return err
	}

	sig.EnvelopeID = &envelopeID
	sig.DocumentMajorVersion = doc.MajorVersion
	sig.DocumentMinorVersion = doc.MinorVersion
	if req.ReturnURL != "" {
		sig.ReturnURL = &req.ReturnURL
	}
	if req.CallbackURL != "" {
		sig.CallbackURL = &req.CallbackURL
	}

	if req.SendAsEmail {
		// The provider emails the signer directly; there is no embedded
		// sign URL to record.
		sig.SignURL = nil
		return o.sigs.Update(ctx, sig)
	}

	signURL, err := o.provider.GetEmbeddedSignURL(ctx, envelopeID, signer, req.ReturnURL)
	if err != nil {
		slog.Error("fetching embedded sign url failed",
			"signatureId", sig.ID, "envelopeId", envelopeID, "error", err)
		return err
	}

	sig.SignURL = &signURL
	return o.sigs.Update(ctx, sig)
}

// resolveActingParty determines who signs. For corporate signatures an
// explicitly named signatory wins, then the requesting user's profile; for
// individual signatures it is always the user the signature covers.
func (o *Orchestrator) resolveActingParty(ctx context.Context, sig *signature.Signature, req SignRequest) (name, email string, err error) {
	if sig.ReferenceType == signature.ReferenceCompany {
		if req.SignatoryName != "" && req.SignatoryEmail != "" {
			return req.SignatoryName, req.SignatoryEmail, nil
		}
		if req.RequestingUserID == uuid.Nil {
			return "", "", &clerrors.PreconditionError{
				Code:    clerrors.CodeNotFound,
				Message: "corporate signing requires a signatory or a requesting user",
			}
		}
		u, err := o.users.GetByID(ctx, req.RequestingUserID)
		if err != nil {
			return "", "", fmt.Errorf("loading requesting user %s: %w", req.RequestingUserID, err)
		}
		return u.Name, u.PrimaryEmail(), nil
	}

	u, err := o.users.GetByID(ctx, sig.ReferenceID)
	if err != nil {
		return "", "", fmt.Errorf("loading signing user %s: %w", sig.ReferenceID, err)
	}
	return u.Name, u.PrimaryEmail(), nil
}
