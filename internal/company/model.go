package company

import (
	"time"

	"github.com/google/uuid"
)

// Company represents a row in the companies table.
type Company struct {
	ID uuid.UUID
	// Name is the display name; SigningEntityName is the legal entity name
	// that appears on corporate agreements, when it differs.
	Name              string
	SigningEntityName *string
	// ExternalOrgID links sibling signing entities of the same
	// organization in an external directory.
	ExternalOrgID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SigningName returns the legal name used on agreements.
func (c *Company) SigningName() string {
	if c.SigningEntityName != nil && *c.SigningEntityName != "" {
		return *c.SigningEntityName
	}
	return c.Name
}
