package company

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrCompanyNotFound is returned when a company record is not found.
var ErrCompanyNotFound = errors.New("company not found")

// ErrDuplicateCompanyName is returned when a company with the same name
// already exists.
var ErrDuplicateCompanyName = errors.New("company name already exists")

// Repository provides CRUD operations on the companies table.
type Repository interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	GetByName(ctx context.Context, name string) (*Company, error)
	List(ctx context.Context) ([]Company, error)
}
