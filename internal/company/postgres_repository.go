package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new company record.
func (r *PostgresRepository) Create(ctx context.Context, c *Company) error {
	query := `
		INSERT INTO companies (id, name, signing_entity_name, external_org_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query, c.ID, c.Name, c.SigningEntityName, c.ExternalOrgID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCompanyName
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	return nil
}

// GetByID retrieves a single company by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	query := `
		SELECT id, name, signing_entity_name, external_org_id, created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c Company
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.SigningEntityName, &c.ExternalOrgID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("querying company: %w", err)
	}

	return &c, nil
}

// GetByName retrieves a single company by name, case-insensitively.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Company, error) {
	query := `
		SELECT id, name, signing_entity_name, external_org_id, created_at, updated_at
		FROM companies
		WHERE lower(name) = lower($1)`

	var c Company
	err := r.pool.QueryRow(ctx, query, name).
		Scan(&c.ID, &c.Name, &c.SigningEntityName, &c.ExternalOrgID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("querying company by name: %w", err)
	}

	return &c, nil
}

// List retrieves all companies ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Company, error) {
	query := `
		SELECT id, name, signing_entity_name, external_org_id, created_at, updated_at
		FROM companies
		ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		err := rows.Scan(&c.ID, &c.Name, &c.SigningEntityName, &c.ExternalOrgID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating company rows: %w", err)
	}

	if companies == nil {
		companies = []Company{}
	}

	return companies, nil
}
