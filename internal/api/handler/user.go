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
	"github.com/clahub/clahub/internal/user"
)

// KeyIssuer mints API keys for CLA managers and admins.
type KeyIssuer interface {
	GenerateKey() (rawKey, prefix, hash string, err error)
}

// userResponse is the API representation of a user. Key material is
// write-only: only the prefix ever leaves the service after issuance.
type userResponse struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Name           string   `json:"name"`
	Emails         []string `json:"emails"`
	GitHubUsername *string  `json:"githubUsername,omitempty"`
	GitHubID       *int64   `json:"githubId,omitempty"`
	GitLabUsername *string  `json:"gitlabUsername,omitempty"`
	GitLabID       *int64   `json:"gitlabId,omitempty"`
	CompanyID      *string  `json:"companyId,omitempty"`
	ApiKeyPrefix   *string  `json:"apiKeyPrefix,omitempty"`
	IsAdmin        bool     `json:"isAdmin"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

func toUserResponse(u *user.User) userResponse {
	resp := userResponse{
		ID:             u.ID.String(),
		Username:       u.Username,
		Name:           u.Name,
		Emails:         u.Emails,
		GitHubUsername: u.GitHubUsername,
		GitHubID:       u.GitHubID,
		GitLabUsername: u.GitLabUsername,
		GitLabID:       u.GitLabID,
		ApiKeyPrefix:   u.ApiKeyPrefix,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.CompanyID != nil {
		id := u.CompanyID.String()
		resp.CompanyID = &id
	}
	return resp
}

// UserHandler handles contributor identity endpoints.
type UserHandler struct {
	repo user.Repository
	keys KeyIssuer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(repo user.Repository, keys KeyIssuer) *UserHandler {
	return &UserHandler{repo: repo, keys: keys}
}

// Create handles POST /users. Admin only.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.IsAdmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Creating users requires admin access", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Username       string   `json:"username"`
		Name           string   `json:"name"`
		Emails         []string `json:"emails"`
		GitHubUsername *string  `json:"githubUsername,omitempty"`
		GitHubID       *int64   `json:"githubId,omitempty"`
		GitLabUsername *string  `json:"gitlabUsername,omitempty"`
		GitLabID       *int64   `json:"gitlabId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "username is required", requestID)
		return
	}

	u := &user.User{
		ID:             uuid.New(),
		Username:       strings.TrimSpace(req.Username),
		Name:           strings.TrimSpace(req.Name),
		Emails:         req.Emails,
		GitHubUsername: req.GitHubUsername,
		GitHubID:       req.GitHubID,
		GitLabUsername: req.GitLabUsername,
		GitLabID:       req.GitLabID,
	}
	if err := h.repo.Create(r.Context(), u); err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// GetByID handles GET /users/{userId}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUID(w, chi.URLParam(r, "userId"), "userId", requestID)
	if !ok {
		return
	}

	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// IssueKey handles POST /users/{userId}/api-key. Admin only. Rotating a
// key revokes the previous one; the raw key is returned exactly once.
func (h *UserHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil || !identity.IsAdmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Issuing API keys requires admin access", requestID)
		return
	}

	id, ok := parseUUID(w, chi.URLParam(r, "userId"), "userId", requestID)
	if !ok {
		return
	}

	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		response.DomainErr(w, err, requestID)
		return
	}

	rawKey, prefix, hash, err := h.keys.GenerateKey()
	if err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	u.ApiKeyPrefix = &prefix
	u.ApiKeyHash = &hash
	if err := h.repo.Update(r.Context(), u); err != nil {
		response.DomainErr(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, map[string]string{"apiKey": rawKey}, requestID)
}
