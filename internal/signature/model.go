package signature

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type discriminates individual from corporate agreements.
type Type string

const (
	TypeIndividual Type = "individual"
	TypeCorporate  Type = "corporate"
)

// ReferenceType identifies what a signature covers.
type ReferenceType string

const (
	ReferenceUser    ReferenceType = "user"
	ReferenceCompany ReferenceType = "company"
)

// ErrLastACLMember is returned when removing the final member of a non-empty
// ACL; a corporate signature must always retain at least one CLA manager.
var ErrLastACLMember = errors.New("cannot remove the last ACL member")

// ApprovalLists holds the per-corporate-signature sets of contributors
// authorized to contribute under a CCLA. All matching is case-insensitive.
type ApprovalLists struct {
	Emails          []string
	Domains         []string
	GitHubUsernames []string
	GitHubOrgs      []string
	GitLabUsernames []string
	GitLabOrgs      []string
}

// Signature represents a row in the signatures table.
type Signature struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	Type          Type
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID

	// Pins the signature to an exact agreement text revision.
	DocumentMajorVersion int
	DocumentMinorVersion int

	Signed       bool
	Approved     bool
	EmbargoAcked bool

	// Transient signing-session state; replaced whenever a new envelope is
	// created (the old envelope is voided first).
	SignURL     *string
	ReturnURL   *string
	CallbackURL *string
	EnvelopeID  *string

	// Usernames authorized to manage this signature. For corporate
	// signatures, the CLA managers.
	ACL []string

	ApprovalLists ApprovalLists

	// Set only on employee acknowledgement signatures: the company whose
	// CCLA covers this user. Always nil for corporate signatures.
	UserCCLACompanyID *uuid.UUID

	// Provenance captured from the provider callback. RawCallback is kept
	// for audit and never exposed through the API.
	SignatoryName     *string
	SigningEntityName *string
	SignedOn          *time.Time
	RawCallback       []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCorporate reports whether this is a company-level CCLA signature.
func (s *Signature) IsCorporate() bool {
	return s.Type == TypeCorporate && s.ReferenceType == ReferenceCompany
}

// HasACLMember reports whether username is on the ACL (case-insensitive).
func (s *Signature) HasACLMember(username string) bool {
	for _, m := range s.ACL {
		if strings.EqualFold(m, username) {
			return true
		}
	}
	return false
}

// AddACLMember adds username to the ACL if not already present.
func (s *Signature) AddACLMember(username string) {
	if s.HasACLMember(username) {
		return
	}
	s.ACL = append(s.ACL, username)
}

// RemoveACLMember removes username from the ACL. Removing the last member of
// a non-empty ACL is rejected and leaves the ACL unchanged.
func (s *Signature) RemoveACLMember(username string) error {
	idx := -1
	for i, m := range s.ACL {
		if strings.EqualFold(m, username) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	if len(s.ACL) == 1 {
		return ErrLastACLMember
	}
	s.ACL = append(s.ACL[:idx], s.ACL[idx+1:]...)
	return nil
}

// ListFilter holds optional conjunctive equality filters for listing
// signatures.
type ListFilter struct {
	Type          *Type
	ReferenceType *ReferenceType
	Signed        *bool
	Approved      *bool
}
