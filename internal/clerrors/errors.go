// Package clerrors defines the error taxonomy shared by the signing engine:
// not-found, precondition, conflict and provider errors. Callers branch on
// these with errors.As; reason codes are stable strings suitable for API
// responses.
package clerrors

import "fmt"

// Reason codes returned to API clients.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeMissingCCLA       = "MISSING_CCLA"
	CodeNotOnApprovalList = "NOT_ON_APPROVAL_LIST"
	CodeMissingTemplate   = "MISSING_TEMPLATE"
	CodeEmptyACL          = "EMPTY_ACL"
	CodeCCLAAlreadySigned = "CCLA_ALREADY_SIGNED"
	CodeProviderFailure   = "PROVIDER_FAILURE"
)

// NotFoundError reports an entity load miss: which field was looked up and
// with which value.
type NotFoundError struct {
	Resource string
	Field    string
	Value    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found by %s=%s", e.Resource, e.Field, e.Value)
}

// NewNotFound builds a NotFoundError for a lookup by ID.
func NewNotFound(resource, value string) *NotFoundError {
	return &NotFoundError{Resource: resource, Field: "id", Value: value}
}

// PreconditionError reports a failed business precondition. Not retryable.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed (%s): %s", e.Code, e.Message)
}

// ConflictError reports a state conflict, e.g. a second signed CCLA for the
// same company and project. Distinct from PreconditionError so callers can
// branch UI behavior.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Code, e.Message)
}

// ProviderError wraps a failed call to an external collaborator. Safe to
// retry unless it follows a successful state mutation.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
