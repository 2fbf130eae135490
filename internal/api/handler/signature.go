package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/api/middleware"
	"github.com/clahub/clahub/internal/api/response"
	"github.com/clahub/clahub/internal/api/validation"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/signing"
)

// SignatureService is the lifecycle capability the handler depends on.
type SignatureService interface {
	RequestIndividualSignature(ctx context.Context, req signing.IndividualSignatureRequest) (*signature.Signature, error)
	RequestCorporateSignature(ctx context.Context, req signing.CorporateSignatureRequest) (*signature.Signature, error)
	RequestEmployeeSignature(ctx context.Context, req signing.EmployeeSignatureRequest) (*signature.Signature, error)
	HasActiveIndividualSignature(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	SetApproved(ctx context.Context, sigID uuid.UUID, approved bool) (*signature.Signature, error)
	UpdateApprovalLists(ctx context.Context, sigID uuid.UUID, lists signature.ApprovalLists) (*signature.Signature, error)
	AddACLMember(ctx context.Context, sigID uuid.UUID, username string) (*signature.Signature, error)
	RemoveACLMember(ctx context.Context, sigID uuid.UUID, username string) (*signature.Signature, error)
	DeleteSignature(ctx context.Context, sigID uuid.UUID, actor string) error
}

// SignatureReader is the read-only repository slice used for lookups that
// bypass the lifecycle service.
type SignatureReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*signature.Signature, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, filter signature.ListFilter) ([]signature.Signature, error)
}

// changeRequestBody identifies a pending pull/merge request in a signing
// request body.
type changeRequestBody struct {
	InstallationID  int64 `json:"installationId"`
	RepositoryID    int64 `json:"repositoryId"`
	ChangeRequestID int   `json:"changeRequestId"`
}

func (c *changeRequestBody) toRef() *signing.ChangeRequestRef {
	if c == nil {
		return nil
	}
	return &signing.ChangeRequestRef{
		InstallationID:  c.InstallationID,
		RepositoryID:    c.RepositoryID,
		ChangeRequestID: c.ChangeRequestID,
	}
}

// approvalListsBody is the request/response shape of approval lists.
type approvalListsBody struct {
	Emails          []string `json:"emails"`
	Domains         []string `json:"domains"`
	GitHubUsernames []string `json:"githubUsernames"`
	GitHubOrgs      []string `json:"githubOrgs"`
	GitLabUsernames []string `json:"gitlabUsernames"`
	GitLabOrgs      []string `json:"gitlabOrgs"`
}

func (b approvalListsBody) toModel() signature.ApprovalLists {
	return signature.ApprovalLists{
		Emails:          b.Emails,
		Domains:         b.Domains,
		GitHubUsernames: b.GitHubUsernames,
		GitHubOrgs:      b.GitHubOrgs,
		GitLabUsernames: b.GitLabUsernames,
		GitLabOrgs:      b.GitLabOrgs,
	}
}

// signatureResponse is the API representation of a signature. The raw
// callback payload is audit-only and never exposed.
type signatureResponse struct {
	ID                   string             `json:"id"`
	ProjectID            string             `json:"projectId"`
	Type                 string             `json:"type"`
	ReferenceType        string             `json:"referenceType"`
	ReferenceID          string             `json:"referenceId"`
	DocumentMajorVersion int                `json:"documentMajorVersion"`
	DocumentMinorVersion int                `json:"documentMinorVersion"`
	Signed               bool               `json:"signed"`
	Approved             bool               `json:"approved"`
	EmbargoAcked         bool               `json:"embargoAcked"`
	SignURL              *string            `json:"signUrl,omitempty"`
	ACL                  []string           `json:"acl"`
	ApprovalLists        *approvalListsBody `json:"approvalLists,omitempty"`
	UserCCLACompanyID    *string            `json:"userCclaCompanyId,omitempty"`
	SignatoryName        *string            `json:"signatoryName,omitempty"`
	SigningEntityName    *string            `json:"signingEntityName,omitempty"`
	SignedOn             *string            `json:"signedOn,omitempty"`
	CreatedAt            string             `json:"createdAt"`
	UpdatedAt            string             `json:"updatedAt"`
}

func toSignatureResponse(s *signature.Signature) signatureResponse {
	resp := signatureResponse{
		ID:                   s.ID.String(),
		ProjectID:            s.ProjectID.String(),
		Type:                 string(s.Type),
		ReferenceType:        string(s.ReferenceType),
		ReferenceID:          s.ReferenceID.String(),
		DocumentMajorVersion: s.DocumentMajorVersion,
		DocumentMinorVersion: s.DocumentMinorVersion,
		Signed:               s.Signed,
		Approved:             s.Approved,
		EmbargoAcked:         s.EmbargoAcked,
		SignURL:              s.SignURL,
		ACL:                  s.ACL,
		SignatoryName:        s.SignatoryName,
		SigningEntityName:    s.SigningEntityName,
		CreatedAt:            s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.IsCorporate() {
		resp.ApprovalLists = &approvalListsBody{
			Emails:          s.ApprovalLists.Emails,
			Domains:         s.ApprovalLists.Domains,
			GitHubUsernames: s.ApprovalLists.GitHubUsernames,
			GitHubOrgs:      s.ApprovalLists.GitHubOrgs,
			GitLabUsernames: s.ApprovalLists.GitLabUsernames,
			GitLabOrgs:      s.ApprovalLists.GitLabOrgs,
		}
	}
	if s.UserCCLACompanyID != nil {
		id := s.UserCCLACompanyID.String()
		resp.UserCCLACompanyID = &id
	}
	if s.SignedOn != nil {
		signed := s.SignedOn.UTC().Format(time.RFC3339)
		resp.SignedOn = &signed
	}
	return resp
}

// SignatureHandler handles signature lifecycle endpoints.
type SignatureHandler struct {
	service SignatureService
	repo    SignatureReader
}

// NewSignatureHandler creates a new SignatureHandler.
func NewSignatureHandler(service SignatureService, repo SignatureReader) *SignatureHandler {
	return &SignatureHandler{service: service, repo: repo}
}

// RequestIndividual handles POST /signatures/individual.
func (h *SignatureHandler) RequestIndividual(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		ProjectID     string             `json:"projectId"`
		UserID        string             `json:"userId"`
		ReturnURL     string             `json:"returnUrl"`
		ChangeRequest *changeRequestBody `json:"changeRequest,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateIndividualRequest(validation.IndividualSignatureRequest{
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		ReturnURL: req.ReturnURL,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	projectID, ok := parseUUID(w, req.ProjectID, "projectId", requestID)
	if !ok {
		return
	}
	userID, ok := parseUUID(w, req.UserID, "userId", requestID)
	if !ok {
		return
	}

	sig, err := h.service.RequestIndividualSignature(r.Context(), signing.IndividualSignatureRequest{
		ProjectID:     projectID,
		UserID:        userID,
		ReturnURL:     req.ReturnURL,
		ChangeRequest: req.ChangeRequest.toRef(),
	})
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// RequestCorporate handles POST /signatures/corporate.
func (h *SignatureHandler) RequestCorporate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		ProjectID      string `json:"projectId"`
		CompanyID      string `json:"companyId"`
		SignatoryName  string `json:"signatoryName"`
		SignatoryEmail string `json:"signatoryEmail"`
		SendAsEmail    bool   `json:"sendAsEmail"`
		ReturnURL      string `json:"returnUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCorporateRequest(validation.CorporateSignatureRequest{
		ProjectID:      req.ProjectID,
		CompanyID:      req.CompanyID,
		SignatoryName:  req.SignatoryName,
		SignatoryEmail: req.SignatoryEmail,
		SendAsEmail:    req.SendAsEmail,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	projectID, ok := parseUUID(w, req.ProjectID, "projectId", requestID)
	if !ok {
		return
	}
	companyID, ok := parseUUID(w, req.CompanyID, "companyId", requestID)
	if !ok {
		return
	}

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
		return
	}

	sig, err := h.service.RequestCorporateSignature(r.Context(), signing.CorporateSignatureRequest{
		ProjectID:        projectID,
		CompanyID:        companyID,
		RequestingUserID: identity.UserID,
		SignatoryName:    strings.TrimSpace(req.SignatoryName),
		SignatoryEmail:   strings.TrimSpace(req.SignatoryEmail),
		SendAsEmail:      req.SendAsEmail,
		ReturnURL:        req.ReturnURL,
	})
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// RequestEmployee handles POST /signatures/employee.
func (h *SignatureHandler) RequestEmployee(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		ProjectID     string             `json:"projectId"`
		CompanyID     string             `json:"companyId"`
		UserID        string             `json:"userId"`
		ChangeRequest *changeRequestBody `json:"changeRequest,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateEmployeeRequest(validation.EmployeeSignatureRequest{
		ProjectID: req.ProjectID,
		CompanyID: req.CompanyID,
		UserID:    req.UserID,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	projectID, ok := parseUUID(w, req.ProjectID, "projectId", requestID)
	if !ok {
		return
	}
	companyID, ok := parseUUID(w, req.CompanyID, "companyId", requestID)
	if !ok {
		return
	}
	userID, ok := parseUUID(w, req.UserID, "userId", requestID)
	if !ok {
		return
	}

	sig, err := h.service.RequestEmployeeSignature(r.Context(), signing.EmployeeSignatureRequest{
		ProjectID:     projectID,
		CompanyID:     companyID,
		UserID:        userID,
		ChangeRequest: req.ChangeRequest.toRef(),
	})
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// GetByID handles GET /signatures/{id}.
func (h *SignatureHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	sig, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if err == signature.ErrSignatureNotFound {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Signature not found", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// ListByProject handles GET /projects/{projectId}/signatures.
func (h *SignatureHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projectID, ok := parseUUID(w, chi.URLParam(r, "projectId"), "projectId", requestID)
	if !ok {
		return
	}

	filter := signature.ListFilter{}
	if v := r.URL.Query().Get("type"); v != "" {
		t := signature.Type(v)
		filter.Type = &t
	}
	if v := r.URL.Query().Get("signed"); v != "" {
		signed := v == "true"
		filter.Signed = &signed
	}
	if v := r.URL.Query().Get("approved"); v != "" {
		approved := v == "true"
		filter.Approved = &approved
	}

	sigs, err := h.repo.ListByProject(r.Context(), projectID, filter)
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	out := make([]signatureResponse, 0, len(sigs))
	for i := range sigs {
		out = append(out, toSignatureResponse(&sigs[i]))
	}
	response.Success(w, http.StatusOK, out, requestID)
}

// SetApproved handles PUT /signatures/{id}/approved.
func (h *SignatureHandler) SetApproved(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	sig, err := h.service.SetApproved(r.Context(), id, req.Approved)
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// UpdateApprovalLists handles PUT /signatures/{id}/approval-list.
func (h *SignatureHandler) UpdateApprovalLists(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	var req approvalListsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	var fieldErrors []validation.FieldError
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("emails", req.Emails)...)
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("domains", req.Domains)...)
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("githubUsernames", req.GitHubUsernames)...)
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("githubOrgs", req.GitHubOrgs)...)
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("gitlabUsernames", req.GitLabUsernames)...)
	fieldErrors = append(fieldErrors, validation.ValidateApprovalEntries("gitlabOrgs", req.GitLabOrgs)...)
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	sig, err := h.service.UpdateApprovalLists(r.Context(), id, req.toModel())
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// AddACLMember handles POST /signatures/{id}/acl.
func (h *SignatureHandler) AddACLMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "username is required", requestID)
		return
	}

	sig, err := h.service.AddACLMember(r.Context(), id, strings.TrimSpace(req.Username))
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// RemoveACLMember handles DELETE /signatures/{id}/acl/{username}.
func (h *SignatureHandler) RemoveACLMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	sig, err := h.service.RemoveACLMember(r.Context(), id, chi.URLParam(r, "username"))
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toSignatureResponse(sig), requestID)
}

// Delete handles DELETE /signatures/{id}. Admin only.
func (h *SignatureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.IsAdmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Deleting signatures requires admin access", requestID)
		return
	}

	id, ok := parseUUID(w, chi.URLParam(r, "id"), "id", requestID)
	if !ok {
		return
	}

	if err := h.service.DeleteSignature(r.Context(), id, identity.Username); err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.NoContent(w)
}

// GetIndividualActive handles
// GET /signatures/individual/{userId}/{projectId}/active: whether the user
// holds an ICLA signed against the project's current major document version.
func (h *SignatureHandler) GetIndividualActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	userID, ok := parseUUID(w, chi.URLParam(r, "userId"), "userId", requestID)
	if !ok {
		return
	}
	projectID, ok := parseUUID(w, chi.URLParam(r, "projectId"), "projectId", requestID)
	if !ok {
		return
	}

	active, err := h.service.HasActiveIndividualSignature(r.Context(), projectID, userID)
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"active": active}, requestID)
}

func parseUUID(w http.ResponseWriter, raw, field, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", field+" must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}
