package project

import (
	"time"

	"github.com/google/uuid"
)

// Document identifies one revision of a CLA document template held by the
// e-signature provider.
type Document struct {
	// TemplateID is the provider-side template identifier.
	TemplateID   string
	Name         string
	MajorVersion int
	MinorVersion int
}

// Project represents a row in the projects table.
type Project struct {
	ID   uuid.UUID
	Name string

	// Which agreement flavors the project accepts.
	ICLAEnabled bool
	CCLAEnabled bool
	// CCLARequiresICLA forces employees covered by a CCLA to also sign an
	// individual agreement before contributions are unblocked.
	CCLARequiresICLA bool

	// Current document templates; nil when the flavor has no template
	// configured.
	IndividualDocument *Document
	CorporateDocument  *Document

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentDocument returns the template for the given flavor, or nil.
func (p *Project) CurrentDocument(corporate bool) *Document {
	if corporate {
		return p.CorporateDocument
	}
	return p.IndividualDocument
}
