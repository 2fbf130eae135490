package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clahub/clahub/internal/api/validation"
)

func fields(errs []validation.FieldError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateIndividualRequest(t *testing.T) {
	errs := validation.ValidateIndividualRequest(validation.IndividualSignatureRequest{})
	assert.ElementsMatch(t, []string{"projectId", "userId", "returnUrl"}, fields(errs))

	errs = validation.ValidateIndividualRequest(validation.IndividualSignatureRequest{
		ProjectID: "aaaaaaaa-0000-0000-0000-000000000001",
		UserID:    "bbbbbbbb-0000-0000-0000-000000000002",
		ReturnURL: "https://app.example.com/done",
	})
	assert.Empty(t, errs)
}

func TestValidateCorporateRequest_SignatoryPairing(t *testing.T) {
	base := validation.CorporateSignatureRequest{
		ProjectID: "aaaaaaaa-0000-0000-0000-000000000001",
		CompanyID: "cccccccc-0000-0000-0000-000000000003",
	}

	// No signatory at all is fine; the requesting manager signs.
	assert.Empty(t, validation.ValidateCorporateRequest(base))

	nameOnly := base
	nameOnly.SignatoryName = "Sam Signer"
	assert.Contains(t, fields(validation.ValidateCorporateRequest(nameOnly)), "signatoryEmail")

	both := base
	both.SignatoryName = "Sam Signer"
	both.SignatoryEmail = "sam@acme.com"
	assert.Empty(t, validation.ValidateCorporateRequest(both))
}

func TestValidateCorporateRequest_SendAsEmailNeedsSignatory(t *testing.T) {
	req := validation.CorporateSignatureRequest{
		ProjectID:   "aaaaaaaa-0000-0000-0000-000000000001",
		CompanyID:   "cccccccc-0000-0000-0000-000000000003",
		SendAsEmail: true,
	}
	assert.Contains(t, fields(validation.ValidateCorporateRequest(req)), "sendAsEmail")

	req.SignatoryName = "Sam Signer"
	req.SignatoryEmail = "sam@acme.com"
	assert.Empty(t, validation.ValidateCorporateRequest(req))
}

func TestValidateEmployeeRequest(t *testing.T) {
	errs := validation.ValidateEmployeeRequest(validation.EmployeeSignatureRequest{
		ProjectID: "aaaaaaaa-0000-0000-0000-000000000001",
	})
	assert.ElementsMatch(t, []string{"companyId", "userId"}, fields(errs))
}

func TestValidateApprovalEntries(t *testing.T) {
	assert.Empty(t, validation.ValidateApprovalEntries("emails", []string{"dev@acme.com"}))
	assert.Empty(t, validation.ValidateApprovalEntries("emails", nil))

	errs := validation.ValidateApprovalEntries("domains", []string{"acme.com", "  "})
	assert.Equal(t, []string{"domains"}, fields(errs))
}
