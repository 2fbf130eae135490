// Package signing drives a signature through its lifecycle: individual,
// corporate and employee-acknowledgement flows, idempotent provider callback
// processing, and the decoupled approval transition.
package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/approval"
	"github.com/clahub/clahub/internal/clerrors"
	"github.com/clahub/clahub/internal/company"
	"github.com/clahub/clahub/internal/docusign"
	"github.com/clahub/clahub/internal/email"
	"github.com/clahub/clahub/internal/envelope"
	"github.com/clahub/clahub/internal/identity"
	"github.com/clahub/clahub/internal/metrics"
	"github.com/clahub/clahub/internal/notifier"
	"github.com/clahub/clahub/internal/project"
	"github.com/clahub/clahub/internal/scm"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/storage"
	"github.com/clahub/clahub/internal/user"
)

// Tab labels used to round-trip change-request context through the
// provider: values set on envelope creation come back as form fields on the
// callback.
const (
	fieldInstallationID  = "scm_installation_id"
	fieldRepositoryID    = "scm_repository_id"
	fieldChangeRequestID = "scm_change_request_id"
	fieldSigningEntity   = "signing_entity_name"
)

// EnvelopePopulator is the envelope-orchestration capability the state
// machine depends on.
type EnvelopePopulator interface {
	PopulateSignURL(ctx context.Context, sig *signature.Signature, req envelope.SignRequest) error
}

// Service is the signature lifecycle state machine. All collaborators are
// injected at construction; the service itself holds no mutable state.
type Service struct {
	sigs      signature.Repository
	users     user.Repository
	companies company.Repository
	projects  project.Repository
	matcher   *approval.Matcher
	github    identity.GitHubResolver
	envelopes EnvelopePopulator
	provider  docusign.Provider
	updater   scm.ChangeRequestUpdater
	sender    email.Sender
	docs      storage.DocumentStore
	notifier  *notifier.Notifier
	metrics   *metrics.Metrics

	callbackBaseURL string
}

// Deps bundles the collaborators for NewService.
type Deps struct {
	Signatures signature.Repository
	Users      user.Repository
	Companies  company.Repository
	Projects   project.Repository
	Matcher    *approval.Matcher
	GitHub     identity.GitHubResolver
	Envelopes  EnvelopePopulator
	Provider   docusign.Provider
	Updater    scm.ChangeRequestUpdater
	Sender     email.Sender
	Documents  storage.DocumentStore
	Notifier   *notifier.Notifier
	Metrics    *metrics.Metrics

	CallbackBaseURL string
}

// NewService creates the lifecycle service.
func NewService(d Deps) *Service {
	return &Service{
		sigs:            d.Signatures,
		users:           d.Users,
		companies:       d.Companies,
		projects:        d.Projects,
		matcher:         d.Matcher,
		github:          d.GitHub,
		envelopes:       d.Envelopes,
		provider:        d.Provider,
		updater:         d.Updater,
		sender:          d.Sender,
		docs:            d.Documents,
		notifier:        d.Notifier,
		metrics:         d.Metrics,
		callbackBaseURL: d.CallbackBaseURL,
	}
}

// ChangeRequestRef identifies a pending pull or merge request blocked on
// CLA authorization.
type ChangeRequestRef struct {
	InstallationID  int64
	RepositoryID    int64
	ChangeRequestID int
}

// IndividualSignatureRequest is the input for the ICLA flow.
type IndividualSignatureRequest struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	ReturnURL string
	// ChangeRequest, when set, is round-tripped through the envelope so
	// the callback can unblock it after signing.
	ChangeRequest *ChangeRequestRef
}

// RequestIndividualSignature starts or resumes an ICLA signing session. An
// existing signature pinned to the project's current major document version
// is reused: a signed one is returned as-is, an unsigned one gets a fresh
// sign URL.
func (s *Service) RequestIndividualSignature(ctx context.Context, req IndividualSignatureRequest) (*signature.Signature, error) {
	sig, err := s.requestIndividual(ctx, req)
	s.countRequest("individual", err)
	return sig, err
}

func (s *Service) requestIndividual(ctx context.Context, req IndividualSignatureRequest) (*signature.Signature, error) {
	proj, err := s.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, s.mapNotFound(err, "project", req.ProjectID)
	}
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, s.mapNotFound(err, "user", req.UserID)
	}
	doc := proj.CurrentDocument(false)
	if doc == nil {
		return nil, &clerrors.PreconditionError{
			Code:    clerrors.CodeMissingTemplate,
			Message: fmt.Sprintf("project %s has no individual document template", proj.Name),
		}
	}

	sig, err := s.sigs.GetIndividualSignature(ctx, proj.ID, u.ID)
	switch {
	case err == nil && sig.Signed && sig.DocumentMajorVersion == doc.MajorVersion:
		slog.Info("individual signature already signed for current version",
			"signatureId", sig.ID, "userId", u.ID, "projectId", proj.ID)
		return sig, nil
	case err == nil && !sig.Signed:
		// Reuse any unsigned record with a fresh signing session rather
		// than creating a duplicate. PopulateSignURL re-pins it to the
		// current document version, so records left on a stale or
		// never-populated version recover here.
	case err == nil || errors.Is(err, signature.ErrSignatureNotFound):
		// Signed against an older major version, or no record at all.
		sig = &signature.Signature{
			ID:            uuid.New(),
			ProjectID:     proj.ID,
			Type:          signature.TypeIndividual,
			ReferenceType: signature.ReferenceUser,
			ReferenceID:   u.ID,
			ACL:           []string{aclIdentifier(u)},
		}
		if err := s.sigs.Create(ctx, sig); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	signReq := envelope.SignRequest{
		ReturnURL:     req.ReturnURL,
		CallbackURL:   s.callbackBaseURL + "/v1/signed/individual/" + sig.ID.String(),
		DefaultFields: changeRequestFields(req.ChangeRequest),
	}
	if err := s.envelopes.PopulateSignURL(ctx, sig, signReq); err != nil {
		return nil, err
	}
	return sig, nil
}

// HasActiveIndividualSignature reports whether the user holds an ICLA for
// the project signed against its current major document version.
func (s *Service) HasActiveIndividualSignature(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	proj, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return false, s.mapNotFound(err, "project", projectID)
	}
	doc := proj.CurrentDocument(false)
	if doc == nil {
		return false, nil
	}
	sig, err := s.sigs.GetIndividualSignature(ctx, projectID, userID)
	if errors.Is(err, signature.ErrSignatureNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sig.Signed && sig.DocumentMajorVersion == doc.MajorVersion, nil
}

// CorporateSignatureRequest is the input for the CCLA flow.
type CorporateSignatureRequest struct {
	ProjectID        uuid.UUID
	CompanyID        uuid.UUID
	RequestingUserID uuid.UUID
	// Explicit third-party signatory; used when the requesting CLA
	// manager is not authorized to sign.
	SignatoryName  string
	SignatoryEmail string
	SendAsEmail    bool
	ReturnURL      string
}

// RequestCorporateSignature starts a CCLA signing session. A company that
// already holds a signed CCLA for the project is rejected with a conflict;
// an existing unsigned record is reused.
func (s *Service) RequestCorporateSignature(ctx context.Context, req CorporateSignatureRequest) (*signature.Signature, error) {
	sig, err := s.requestCorporate(ctx, req)
	s.countRequest("corporate", err)
	return sig, err
}

func (s *Service) requestCorporate(ctx context.Context, req CorporateSignatureRequest) (*signature.Signature, error) {
	proj, err := s.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, s.mapNotFound(err, "project", req.ProjectID)
	}
	comp, err := s.companies.GetByID(ctx, req.CompanyID)
	if err != nil {
		return nil, s.mapNotFound(err, "company", req.CompanyID)
	}

	signed, err := s.hasSignedCorporate(ctx, comp.ID, proj.ID)
	if err != nil {
		return nil, err
	}
	if signed {
		return nil, &clerrors.ConflictError{
			Code:    clerrors.CodeCCLAAlreadySigned,
			Message: fmt.Sprintf("company %s already holds a signed corporate agreement for project %s", comp.Name, proj.Name),
		}
	}

	sig, count, err := s.sigs.GetLatestUnsignedCorporate(ctx, comp.ID, proj.ID)
	switch {
	case err == nil:
		if count > 1 {
			slog.Warn("multiple unsigned corporate signatures; using most recent",
				"companyId", comp.ID, "projectId", proj.ID, "count", count, "signatureId", sig.ID)
		}
	case errors.Is(err, signature.ErrSignatureNotFound):
		requester, err := s.users.GetByID(ctx, req.RequestingUserID)
		if err != nil {
			return nil, s.mapNotFound(err, "user", req.RequestingUserID)
		}
		sig = &signature.Signature{
			ID:            uuid.New(),
			ProjectID:     proj.ID,
			Type:          signature.TypeCorporate,
			ReferenceType: signature.ReferenceCompany,
			ReferenceID:   comp.ID,
			ACL:           []string{requester.Username},
		}
		if err := s.sigs.Create(ctx, sig); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	signReq := envelope.SignRequest{
		ReturnURL:        req.ReturnURL,
		CallbackURL:      fmt.Sprintf("%s/v1/signed/corporate/%s/%s", s.callbackBaseURL, proj.ID, comp.ID),
		SendAsEmail:      req.SendAsEmail,
		SignatoryName:    req.SignatoryName,
		SignatoryEmail:   req.SignatoryEmail,
		RequestingUserID: req.RequestingUserID,
		DefaultFields: map[string]string{
			fieldSigningEntity: comp.SigningName(),
			"company_name":     comp.Name,
		},
	}
	if err := s.envelopes.PopulateSignURL(ctx, sig, signReq); err != nil {
		return nil, err
	}
	return sig, nil
}

// hasSignedCorporate reports whether any signed corporate signature exists
// for the company and project, approved or not.
func (s *Service) hasSignedCorporate(ctx context.Context, companyID, projectID uuid.UUID) (bool, error) {
	signedTrue := true
	sigs, err := s.sigs.ListByReference(ctx, companyID, signature.ReferenceCompany, signature.ListFilter{
		Signed: &signedTrue,
	})
	if err != nil {
		return false, err
	}
	for i := range sigs {
		if sigs[i].ProjectID == projectID && sigs[i].Type == signature.TypeCorporate {
			return true, nil
		}
	}
	return false, nil
}

// EmployeeSignatureRequest is the input for the employee CCLA
// acknowledgement flow.
type EmployeeSignatureRequest struct {
	ProjectID     uuid.UUID
	CompanyID     uuid.UUID
	UserID        uuid.UUID
	ChangeRequest *ChangeRequestRef
}

// RequestEmployeeSignature records that a user agrees to contribute under
// their employer's signed CCLA. There is no external signing step: the
// acknowledgement is created signed and approved, and the pending change
// request is unblocked unless the project also requires an ICLA.
func (s *Service) RequestEmployeeSignature(ctx context.Context, req EmployeeSignatureRequest) (*signature.Signature, error) {
	sig, err := s.requestEmployee(ctx, req)
	s.countRequest("employee", err)
	return sig, err
}

func (s *Service) requestEmployee(ctx context.Context, req EmployeeSignatureRequest) (*signature.Signature, error) {
	proj, err := s.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, s.mapNotFound(err, "project", req.ProjectID)
	}
	comp, err := s.companies.GetByID(ctx, req.CompanyID)
	if err != nil {
		return nil, s.mapNotFound(err, "company", req.CompanyID)
	}
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, s.mapNotFound(err, "user", req.UserID)
	}

	ccla, count, err := s.sigs.GetActiveCCLA(ctx, comp.ID, proj.ID)
	if err != nil {
		if errors.Is(err, signature.ErrSignatureNotFound) {
			return nil, &clerrors.PreconditionError{
				Code:    clerrors.CodeMissingCCLA,
				Message: fmt.Sprintf("company %s has no signed and approved corporate agreement for project %s", comp.Name, proj.Name),
			}
		}
		return nil, err
	}
	if count > 1 {
		slog.Warn("multiple active corporate signatures; using most recent document version",
			"companyId", comp.ID, "projectId", proj.ID, "count", count, "signatureId", ccla.ID)
	}

	if !s.matcher.IsApproved(ctx, u, ccla.ApprovalLists) {
		s.countApproval(false)
		return nil, &clerrors.PreconditionError{
			Code:    clerrors.CodeNotOnApprovalList,
			Message: fmt.Sprintf("user %s is not on the approval list of %s", u.Username, comp.Name),
		}
	}
	s.countApproval(true)

	s.associateWithCompany(ctx, u, comp.ID)
	s.fillGitHubIdentity(ctx, u)

	sig, err := s.sigs.GetEmployeeSignature(ctx, proj.ID, u.ID, comp.ID)
	switch {
	case err == nil:
		slog.Info("employee acknowledgement already recorded",
			"signatureId", sig.ID, "userId", u.ID, "companyId", comp.ID)
	case errors.Is(err, signature.ErrSignatureNotFound):
		companyID := comp.ID
		sig = &signature.Signature{
			ID:                   uuid.New(),
			ProjectID:            proj.ID,
			Type:                 signature.TypeIndividual,
			ReferenceType:        signature.ReferenceUser,
			ReferenceID:          u.ID,
			DocumentMajorVersion: ccla.DocumentMajorVersion,
			DocumentMinorVersion: ccla.DocumentMinorVersion,
			Signed:               true,
			Approved:             true,
			EmbargoAcked:         true,
			UserCCLACompanyID:    &companyID,
			ACL:                  []string{aclIdentifier(u)},
		}
		if err := s.sigs.Create(ctx, sig); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if !proj.CCLARequiresICLA && req.ChangeRequest != nil {
		s.unblockChangeRequest(ctx, sig.ID, req.ChangeRequest)
	}

	return sig, nil
}

// HandleIndividualCallback processes a provider callback for an individual
// signing session. The signature route parameter is validated against the
// recipient identity carried in the payload.
func (s *Service) HandleIndividualCallback(ctx context.Context, raw []byte, signatureID uuid.UUID) error {
	event, err := docusign.ParseCallback(raw)
	if err != nil {
		s.countCallback("error")
		return err
	}
	if event.SignatureID != signatureID {
		s.countCallback("error")
		return fmt.Errorf("callback route %s does not match recipient signature %s", signatureID, event.SignatureID)
	}
	sig, err := s.sigs.GetByID(ctx, signatureID)
	if err != nil {
		s.countCallback("error")
		return s.mapNotFound(err, "signature", signatureID)
	}
	return s.processCallback(ctx, sig, event)
}

// HandleCorporateCallback processes a provider callback for a corporate
// signing session. The project and company route parameters are validated
// against the loaded signature.
func (s *Service) HandleCorporateCallback(ctx context.Context, raw []byte, projectID, companyID uuid.UUID) error {
	event, err := docusign.ParseCallback(raw)
	if err != nil {
		s.countCallback("error")
		return err
	}
	sig, err := s.sigs.GetByID(ctx, event.SignatureID)
	if err != nil {
		s.countCallback("error")
		return s.mapNotFound(err, "signature", event.SignatureID)
	}
	if sig.ProjectID != projectID || sig.ReferenceID != companyID {
		s.countCallback("error")
		return fmt.Errorf("callback route (%s, %s) does not match signature %s", projectID, companyID, sig.ID)
	}
	return s.processCallback(ctx, sig, event)
}

// processCallback commits a completed signing exactly once. Duplicate
// deliveries and interim statuses return without side effects. Side effects
// after the commit are independent: a failure in one is logged and never
// rolls back the signed state.
func (s *Service) processCallback(ctx context.Context, sig *signature.Signature, event *docusign.CallbackEvent) error {
	if sig.Signed {
		slog.Info("duplicate callback ignored", "signatureId", sig.ID, "envelopeId", event.EnvelopeID)
		s.countCallback("duplicate")
		return nil
	}
	if !event.Completed {
		slog.Debug("interim callback ignored", "signatureId", sig.ID, "envelopeId", event.EnvelopeID)
		s.countCallback("ignored")
		return nil
	}

	if sig.EnvelopeID != nil && *sig.EnvelopeID != event.EnvelopeID {
		slog.Warn("callback envelope does not match stored envelope",
			"signatureId", sig.ID, "stored", *sig.EnvelopeID, "callback", event.EnvelopeID)
	}

	sig.Signed = true
	sig.EmbargoAcked = true
	if event.SignatoryName != "" {
		sig.SignatoryName = &event.SignatoryName
	}
	if entity := event.Fields[fieldSigningEntity]; entity != "" {
		sig.SigningEntityName = &entity
	}
	sig.SignedOn = event.SignedOn
	sig.RawCallback = event.Raw

	if err := s.sigs.Update(ctx, sig); err != nil {
		s.countCallback("error")
		return err
	}
	s.countCallback("completed")

	slog.Info("signature signed",
		"signatureId", sig.ID, "type", sig.Type, "referenceType", sig.ReferenceType,
		"referenceId", sig.ReferenceID, "projectId", sig.ProjectID, "envelopeId", event.EnvelopeID)

	if ref := changeRequestFromFields(event.Fields); ref != nil {
		s.unblockChangeRequest(ctx, sig.ID, ref)
	}
	s.deliverSignedDocument(ctx, sig, event.EnvelopeID)

	return nil
}

// deliverSignedDocument fetches the signed PDF once and fans it out to the
// contributor's inbox and the document store. Each leg fails independently.
func (s *Service) deliverSignedDocument(ctx context.Context, sig *signature.Signature, envelopeID string) {
	pdf, err := s.provider.GetSignedDocument(ctx, envelopeID)
	if err != nil {
		slog.Error("fetching signed document failed",
			"signatureId", sig.ID, "envelopeId", envelopeID, "error", err)
		return
	}

	if sig.ReferenceType == signature.ReferenceUser {
		if u, err := s.users.GetByID(ctx, sig.ReferenceID); err == nil && u.PrimaryEmail() != "" {
			projName := sig.ProjectID.String()
			if proj, err := s.projects.GetByID(ctx, sig.ProjectID); err == nil {
				projName = proj.Name
			}
			if err := s.sender.Send(ctx, email.SignedDocument(u.PrimaryEmail(), projName, pdf)); err != nil {
				slog.Error("emailing signed document failed", "signatureId", sig.ID, "error", err)
			}
		}
	}

	if s.docs != nil {
		err := s.docs.UploadSignedDocument(ctx, sig.ProjectID, sig.Type, sig.ReferenceID, sig.ID, pdf)
		if err != nil {
			slog.Error("uploading signed document failed", "signatureId", sig.ID, "error", err)
		}
	}
}

// SetApproved flips the approved flag. The false-to-true transition sends
// the approval email exactly once; repeated sets are no-ops.
func (s *Service) SetApproved(ctx context.Context, sigID uuid.UUID, approved bool) (*signature.Signature, error) {
	sig, err := s.sigs.GetByID(ctx, sigID)
	if err != nil {
		return nil, s.mapNotFound(err, "signature", sigID)
	}
	if sig.Approved == approved {
		return sig, nil
	}

	sig.Approved = approved
	if err := s.sigs.Update(ctx, sig); err != nil {
		return nil, err
	}

	if approved {
		s.sendApprovalEmail(ctx, sig)
	}
	return sig, nil
}

// UpdateApprovalLists replaces a corporate signature's approval lists. The
// record is re-read immediately before diffing to narrow lost-update
// windows; notification failures are logged, not returned.
func (s *Service) UpdateApprovalLists(ctx context.Context, sigID uuid.UUID, lists signature.ApprovalLists) (*signature.Signature, error) {
	sig, err := s.sigs.GetByID(ctx, sigID)
	if err != nil {
		return nil, s.mapNotFound(err, "signature", sigID)
	}
	if !sig.IsCorporate() {
		return nil, &clerrors.PreconditionError{
			Code:    clerrors.CodeNotFound,
			Message: "approval lists apply only to corporate signatures",
		}
	}

	old := sig.ApprovalLists
	sig.ApprovalLists = lists
	if err := s.sigs.Update(ctx, sig); err != nil {
		return nil, err
	}

	delta := approval.DiffLists(old, lists)
	if delta.Empty() || s.notifier == nil {
		return sig, nil
	}

	companyName := sig.ReferenceID.String()
	if comp, err := s.companies.GetByID(ctx, sig.ReferenceID); err == nil {
		companyName = comp.Name
	}
	projectName := sig.ProjectID.String()
	if proj, err := s.projects.GetByID(ctx, sig.ProjectID); err == nil {
		projectName = proj.Name
	}
	if err := s.notifier.NotifyApprovalListChange(ctx, sig, companyName, projectName, delta); err != nil {
		slog.Warn("approval list notifications partially failed", "signatureId", sig.ID, "error", err)
	}
	return sig, nil
}

// AddACLMember adds a CLA manager to the signature's ACL.
func (s *Service) AddACLMember(ctx context.Context, sigID uuid.UUID, username string) (*signature.Signature, error) {
	sig, err := s.sigs.GetByID(ctx, sigID)
	if err != nil {
		return nil, s.mapNotFound(err, "signature", sigID)
	}
	if sig.HasACLMember(username) {
		return sig, nil
	}
	sig.AddACLMember(username)
	if err := s.sigs.Update(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// RemoveACLMember removes a CLA manager from the signature's ACL. Removing
// the last member is rejected.
func (s *Service) RemoveACLMember(ctx context.Context, sigID uuid.UUID, username string) (*signature.Signature, error) {
	sig, err := s.sigs.GetByID(ctx, sigID)
	if err != nil {
		return nil, s.mapNotFound(err, "signature", sigID)
	}
	if err := sig.RemoveACLMember(username); err != nil {
		return nil, &clerrors.PreconditionError{
			Code:    clerrors.CodeEmptyACL,
			Message: fmt.Sprintf("signature %s must retain at least one CLA manager", sigID),
		}
	}
	if err := s.sigs.Update(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// DeleteSignature removes a signature permanently. Deleting a corporate
// signature with recorded approval lists is destructive and logged with the
// acting user for audit.
func (s *Service) DeleteSignature(ctx context.Context, sigID uuid.UUID, actor string) error {
	sig, err := s.sigs.GetByID(ctx, sigID)
	if err != nil {
		return s.mapNotFound(err, "signature", sigID)
	}
	if sig.IsCorporate() {
		slog.Warn("deleting corporate signature",
			"signatureId", sig.ID, "companyId", sig.ReferenceID, "projectId", sig.ProjectID,
			"actor", actor, "approvalEntries", countEntries(sig.ApprovalLists))
	}
	return s.sigs.Delete(ctx, sigID)
}

func (s *Service) sendApprovalEmail(ctx context.Context, sig *signature.Signature) {
	if sig.ReferenceType != signature.ReferenceUser {
		return
	}
	u, err := s.users.GetByID(ctx, sig.ReferenceID)
	if err != nil || u.PrimaryEmail() == "" {
		return
	}
	projName := sig.ProjectID.String()
	if proj, err := s.projects.GetByID(ctx, sig.ProjectID); err == nil {
		projName = proj.Name
	}
	if err := s.sender.Send(ctx, email.SignatureApproved(u.PrimaryEmail(), projName)); err != nil {
		slog.Error("sending approval email failed", "signatureId", sig.ID, "error", err)
	}
}

// associateWithCompany links the user to the company if not already linked.
// A failed link is logged; the acknowledgement proceeds regardless.
func (s *Service) associateWithCompany(ctx context.Context, u *user.User, companyID uuid.UUID) {
	if u.CompanyID != nil && *u.CompanyID == companyID {
		return
	}
	u.CompanyID = &companyID
	if err := s.users.Update(ctx, u); err != nil {
		slog.Warn("associating user with company failed", "userId", u.ID, "companyId", companyID, "error", err)
	}
}

// fillGitHubIdentity backfills the numeric GitHub ID when only the username
// is known. Best effort; the matcher handles the reverse direction.
func (s *Service) fillGitHubIdentity(ctx context.Context, u *user.User) {
	if u.GitHubUsername == nil || *u.GitHubUsername == "" || u.GitHubID != nil {
		return
	}
	if s.github == nil {
		return
	}
	id, err := s.github.UserID(ctx, *u.GitHubUsername)
	if err != nil {
		slog.Warn("resolving github id failed", "username", *u.GitHubUsername, "error", err)
		return
	}
	u.GitHubID = &id
	if err := s.users.Update(ctx, u); err != nil {
		slog.Warn("caching github id failed", "userId", u.ID, "error", err)
	}
}

func (s *Service) unblockChangeRequest(ctx context.Context, sigID uuid.UUID, ref *ChangeRequestRef) {
	err := s.updater.UpdateChangeRequestStatus(ctx, ref.InstallationID, ref.RepositoryID, ref.ChangeRequestID, true)
	if err != nil {
		slog.Error("unblocking change request failed",
			"signatureId", sigID, "repositoryId", ref.RepositoryID,
			"changeRequestId", ref.ChangeRequestID, "error", err)
		return
	}
	slog.Info("change request unblocked",
		"signatureId", sigID, "repositoryId", ref.RepositoryID, "changeRequestId", ref.ChangeRequestID)
}

func (s *Service) mapNotFound(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, signature.ErrSignatureNotFound) ||
		errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, company.ErrCompanyNotFound) ||
		errors.Is(err, project.ErrProjectNotFound) {
		return clerrors.NewNotFound(resource, id.String())
	}
	return err
}

func (s *Service) countRequest(flow string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.SignatureRequestsTotal.WithLabelValues(flow, outcome).Inc()
}

func (s *Service) countCallback(result string) {
	if s.metrics != nil {
		s.metrics.CallbacksTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countApproval(approved bool) {
	if s.metrics == nil {
		return
	}
	result := "rejected"
	if approved {
		result = "approved"
	}
	s.metrics.ApprovalChecksTotal.WithLabelValues(result).Inc()
}

func countEntries(lists signature.ApprovalLists) int {
	return len(lists.Emails) + len(lists.Domains) +
		len(lists.GitHubUsernames) + len(lists.GitHubOrgs) +
		len(lists.GitLabUsernames) + len(lists.GitLabOrgs)
}

// aclIdentifier picks the identity under which a user manages their own
// signature: the source-provider login when known, the internal username
// otherwise.
func aclIdentifier(u *user.User) string {
	if u.GitHubUsername != nil && *u.GitHubUsername != "" {
		return *u.GitHubUsername
	}
	if u.GitLabUsername != nil && *u.GitLabUsername != "" {
		return *u.GitLabUsername
	}
	return u.Username
}

func changeRequestFields(ref *ChangeRequestRef) map[string]string {
	if ref == nil {
		return nil
	}
	return map[string]string{
		fieldInstallationID:  strconv.FormatInt(ref.InstallationID, 10),
		fieldRepositoryID:    strconv.FormatInt(ref.RepositoryID, 10),
		fieldChangeRequestID: strconv.Itoa(ref.ChangeRequestID),
	}
}

func changeRequestFromFields(fields map[string]string) *ChangeRequestRef {
	repoID, err := strconv.ParseInt(fields[fieldRepositoryID], 10, 64)
	if err != nil {
		return nil
	}
	prID, err := strconv.Atoi(fields[fieldChangeRequestID])
	if err != nil {
		return nil
	}
	installID, _ := strconv.ParseInt(fields[fieldInstallationID], 10, 64)
	return &ChangeRequestRef{
		InstallationID:  installID,
		RepositoryID:    repoID,
		ChangeRequestID: prID,
	}
}
