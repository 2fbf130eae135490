package signature

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSignatureNotFound is returned when a signature record is not found.
var ErrSignatureNotFound = errors.New("signature not found")

// Repository is the store adapter for signatures. Load misses are reported
// as ErrSignatureNotFound, never as a panic or a raw driver error.
type Repository interface {
	Create(ctx context.Context, sig *Signature) error
	GetByID(ctx context.Context, id uuid.UUID) (*Signature, error)
	Update(ctx context.Context, sig *Signature) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByProject returns signatures for a project, newest first.
	ListByProject(ctx context.Context, projectID uuid.UUID, filter ListFilter) ([]Signature, error)

	// ListByReference returns signatures covering a user or company,
	// newest first.
	ListByReference(ctx context.Context, referenceID uuid.UUID, refType ReferenceType, filter ListFilter) ([]Signature, error)

	// GetActiveCCLA returns the company's signed and approved corporate
	// signature for the project, most recent document version first, along
	// with how many such records exist. More than one violates the
	// single-active-CCLA invariant; callers receive the first and log the
	// anomaly.
	GetActiveCCLA(ctx context.Context, companyID, projectID uuid.UUID) (*Signature, int, error)

	// GetLatestUnsignedCorporate returns the most recently created
	// unsigned corporate signature for the company and project, along
	// with how many such records exist.
	GetLatestUnsignedCorporate(ctx context.Context, companyID, projectID uuid.UUID) (*Signature, int, error)

	// GetEmployeeSignature returns the employee acknowledgement tying a
	// user to a company's CCLA on a project.
	GetEmployeeSignature(ctx context.Context, projectID, userID, companyID uuid.UUID) (*Signature, error)

	// GetIndividualSignature returns the user's ICLA for the project.
	GetIndividualSignature(ctx context.Context, projectID, userID uuid.UUID) (*Signature, error)
}
