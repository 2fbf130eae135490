package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const projectColumns = `
	id, name, icla_enabled, ccla_enabled, ccla_requires_icla,
	icla_template_id, icla_template_name, icla_major_version, icla_minor_version,
	ccla_template_id, ccla_template_name, ccla_major_version, ccla_minor_version,
	created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var (
		p                                          Project
		iclaID, iclaName, cclaID, cclaName         *string
		iclaMajor, iclaMinor, cclaMajor, cclaMinor *int
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.ICLAEnabled, &p.CCLAEnabled, &p.CCLARequiresICLA,
		&iclaID, &iclaName, &iclaMajor, &iclaMinor,
		&cclaID, &cclaName, &cclaMajor, &cclaMinor,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if iclaID != nil {
		p.IndividualDocument = &Document{
			TemplateID:   *iclaID,
			MajorVersion: *iclaMajor,
			MinorVersion: *iclaMinor,
		}
		if iclaName != nil {
			p.IndividualDocument.Name = *iclaName
		}
	}
	if cclaID != nil {
		p.CorporateDocument = &Document{
			TemplateID:   *cclaID,
			MajorVersion: *cclaMajor,
			MinorVersion: *cclaMinor,
		}
		if cclaName != nil {
			p.CorporateDocument.Name = *cclaName
		}
	}
	return &p, nil
}

// Create inserts a new project record.
func (r *PostgresRepository) Create(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (
			id, name, icla_enabled, ccla_enabled, ccla_requires_icla,
			icla_template_id, icla_template_name, icla_major_version, icla_minor_version,
			ccla_template_id, ccla_template_name, ccla_major_version, ccla_minor_version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	var (
		iclaID, iclaName     *string
		iclaMajor, iclaMinor *int
		cclaID, cclaName     *string
		cclaMajor, cclaMinor *int
	)
	if d := p.IndividualDocument; d != nil {
		iclaID, iclaName, iclaMajor, iclaMinor = &d.TemplateID, &d.Name, &d.MajorVersion, &d.MinorVersion
	}
	if d := p.CorporateDocument; d != nil {
		cclaID, cclaName, cclaMajor, cclaMinor = &d.TemplateID, &d.Name, &d.MajorVersion, &d.MinorVersion
	}

	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.ICLAEnabled, p.CCLAEnabled, p.CCLARequiresICLA,
		iclaID, iclaName, iclaMajor, iclaMinor,
		cclaID, cclaName, cclaMajor, cclaMinor,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	return nil
}

// GetByID retrieves a single project by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

// List retrieves all projects ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}

	if projects == nil {
		projects = []Project{}
	}

	return projects, nil
}
