package validation

import (
	"strings"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// IndividualSignatureRequest mirrors the fields needed for ICLA request
// validation.
type IndividualSignatureRequest struct {
	ProjectID string
	UserID    string
	ReturnURL string
}

// ValidateIndividualRequest validates an ICLA signing request.
// Returns a slice of field errors; empty slice means valid.
func ValidateIndividualRequest(req IndividualSignatureRequest) []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "projectId", req.ProjectID)
	errs = appendRequired(errs, "userId", req.UserID)
	errs = appendRequired(errs, "returnUrl", req.ReturnURL)
	return errs
}

// CorporateSignatureRequest mirrors the fields needed for CCLA request
// validation.
type CorporateSignatureRequest struct {
	ProjectID      string
	CompanyID      string
	SignatoryName  string
	SignatoryEmail string
	SendAsEmail    bool
}

// ValidateCorporateRequest validates a CCLA signing request. An explicit
// signatory must carry both name and email; email delivery requires an
// explicit signatory.
func ValidateCorporateRequest(req CorporateSignatureRequest) []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "projectId", req.ProjectID)
	errs = appendRequired(errs, "companyId", req.CompanyID)

	hasName := strings.TrimSpace(req.SignatoryName) != ""
	hasEmail := strings.TrimSpace(req.SignatoryEmail) != ""
	if hasName != hasEmail {
		errs = append(errs, FieldError{
			Field:   "signatoryEmail",
			Message: "signatoryName and signatoryEmail must be provided together",
		})
	}
	if req.SendAsEmail && !hasEmail {
		errs = append(errs, FieldError{
			Field:   "sendAsEmail",
			Message: "email delivery requires an explicit signatory",
		})
	}
	return errs
}

// EmployeeSignatureRequest mirrors the fields needed for employee
// acknowledgement validation.
type EmployeeSignatureRequest struct {
	ProjectID string
	CompanyID string
	UserID    string
}

// ValidateEmployeeRequest validates an employee acknowledgement request.
func ValidateEmployeeRequest(req EmployeeSignatureRequest) []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "projectId", req.ProjectID)
	errs = appendRequired(errs, "companyId", req.CompanyID)
	errs = appendRequired(errs, "userId", req.UserID)
	return errs
}

// ValidateApprovalEntries rejects blank entries in an approval list.
func ValidateApprovalEntries(field string, entries []string) []FieldError {
	var errs []FieldError
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			errs = append(errs, FieldError{Field: field, Message: "entries must not be blank"})
			break
		}
	}
	return errs
}

func appendRequired(errs []FieldError, field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		errs = append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	return errs
}
