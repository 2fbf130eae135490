package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/api/middleware"
	"github.com/clahub/clahub/internal/api/response"
	"github.com/clahub/clahub/internal/company"
)

type companyResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	SigningEntityName *string `json:"signingEntityName,omitempty"`
	ExternalOrgID     *string `json:"externalOrgId,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:                c.ID.String(),
		Name:              c.Name,
		SigningEntityName: c.SigningEntityName,
		ExternalOrgID:     c.ExternalOrgID,
		CreatedAt:         c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// CompanyHandler handles company directory endpoints.
type CompanyHandler struct {
	repo company.Repository
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(repo company.Repository) *CompanyHandler {
	return &CompanyHandler{repo: repo}
}

// Create handles POST /companies. Admin only.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.IsAdmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Creating companies requires admin access", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Name              string  `json:"name"`
		SigningEntityName *string `json:"signingEntityName,omitempty"`
		ExternalOrgID     *string `json:"externalOrgId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", requestID)
		return
	}

	c := &company.Company{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(req.Name),
		SigningEntityName: req.SigningEntityName,
		ExternalOrgID:     req.ExternalOrgID,
	}
	if err := h.repo.Create(r.Context(), c); err != nil {
		if errors.Is(err, company.ErrDuplicateCompanyName) {
			response.Err(w, http.StatusConflict, "DUPLICATE_COMPANY_NAME", "A company with that name already exists", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toCompanyResponse(c), requestID)
}

// GetByID handles GET /companies/{companyId}.
func (h *CompanyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "companyId"), "companyId", requestID)
	if !ok {
		return
	}

	c, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, company.ErrCompanyNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Company not found", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}

// List handles GET /companies. A "name" query parameter narrows the listing
// to the exact-named company.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		c, err := h.repo.GetByName(r.Context(), name)
		if err != nil {
			if errors.Is(err, company.ErrCompanyNotFound) {
				response.Success(w, http.StatusOK, []companyResponse{}, requestID)
				return
			}
			response.DomainErr(w, err, requestID)
			return
		}
		response.Success(w, http.StatusOK, []companyResponse{toCompanyResponse(c)}, requestID)
		return
	}

	companies, err := h.repo.List(r.Context())
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	out := make([]companyResponse, 0, len(companies))
	for i := range companies {
		out = append(out, toCompanyResponse(&companies[i]))
	}
	response.Success(w, http.StatusOK, out, requestID)
}
