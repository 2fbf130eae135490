package signature

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

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

const signatureColumns = `
	id, project_id, type, reference_type, reference_id,
	document_major_version, document_minor_version,
	signed, approved, embargo_acked,
	sign_url, return_url, callback_url, envelope_id,
	acl, email_approval_list, domain_approval_list,
	github_username_approval_list, github_org_approval_list,
	gitlab_username_approval_list, gitlab_org_approval_list,
	user_ccla_company_id, signatory_name, signing_entity_name,
	signed_on, raw_callback, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignature(row rowScanner) (*Signature, error) {
	var s Signature
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.Type, &s.ReferenceType, &s.ReferenceID,
		&s.DocumentMajorVersion, &s.DocumentMinorVersion,
		&s.Signed, &s.Approved, &s.EmbargoAcked,
		&s.SignURL, &s.ReturnURL, &s.CallbackURL, &s.EnvelopeID,
		&s.ACL, &s.ApprovalLists.Emails, &s.ApprovalLists.Domains,
		&s.ApprovalLists.GitHubUsernames, &s.ApprovalLists.GitHubOrgs,
		&s.ApprovalLists.GitLabUsernames, &s.ApprovalLists.GitLabOrgs,
		&s.UserCCLACompanyID, &s.SignatoryName, &s.SigningEntityName,
		&s.SignedOn, &s.RawCallback, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new signature record.
func (r *PostgresRepository) Create(ctx context.Context, s *Signature) error {
	query := `
		INSERT INTO signatures (
			id, project_id, type, reference_type, reference_id,
			document_major_version, document_minor_version,
			signed, approved, embargo_acked,
			sign_url, return_url, callback_url, envelope_id,
			acl, email_approval_list, domain_approval_list,
			github_username_approval_list, github_org_approval_list,
			gitlab_username_approval_list, gitlab_org_approval_list,
			user_ccla_company_id, signatory_name, signing_entity_name,
			signed_on, raw_callback
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING created_at, updated_at`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		s.ID, s.ProjectID, s.Type, s.ReferenceType, s.ReferenceID,
		s.DocumentMajorVersion, s.DocumentMinorVersion,
		s.Signed, s.Approved, s.EmbargoAcked,
		s.SignURL, s.ReturnURL, s.CallbackURL, s.EnvelopeID,
		s.ACL, s.ApprovalLists.Emails, s.ApprovalLists.Domains,
		s.ApprovalLists.GitHubUsernames, s.ApprovalLists.GitHubOrgs,
		s.ApprovalLists.GitLabUsernames, s.ApprovalLists.GitLabOrgs,
		s.UserCCLACompanyID, s.SignatoryName, s.SigningEntityName,
		s.SignedOn, s.RawCallback,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting signature: %w", err)
	}

	return nil
}

// GetByID retrieves a single signature by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE id = $1`

	s, err := scanSignature(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("querying signature: %w", err)
	}

	return s, nil
}

// Update persists the full signature record. Last writer wins.
func (r *PostgresRepository) Update(ctx context.Context, s *Signature) error {
	query := `
		UPDATE signatures SET
			document_major_version = $2, document_minor_version = $3,
			signed = $4, approved = $5, embargo_acked = $6,
			sign_url = $7, return_url = $8, callback_url = $9, envelope_id = $10,
			acl = $11, email_approval_list = $12, domain_approval_list = $13,
			github_username_approval_list = $14, github_org_approval_list = $15,
			gitlab_username_approval_list = $16, gitlab_org_approval_list = $17,
			user_ccla_company_id = $18, signatory_name = $19,
			signing_entity_name = $20, signed_on = $21, raw_callback = $22,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		s.ID,
		s.DocumentMajorVersion, s.DocumentMinorVersion,
		s.Signed, s.Approved, s.EmbargoAcked,
		s.SignURL, s.ReturnURL, s.CallbackURL, s.EnvelopeID,
		s.ACL, s.ApprovalLists.Emails, s.ApprovalLists.Domains,
		s.ApprovalLists.GitHubUsernames, s.ApprovalLists.GitHubOrgs,
		s.ApprovalLists.GitLabUsernames, s.ApprovalLists.GitLabOrgs,
		s.UserCCLACompanyID, s.SignatoryName, s.SigningEntityName,
		s.SignedOn, s.RawCallback,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSignatureNotFound
		}
		return fmt.Errorf("updating signature: %w", err)
	}

	return nil
}

// Delete removes a signature by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM signatures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting signature: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSignatureNotFound
	}
	return nil
}

// filterClause renders a ListFilter as conjunctive WHERE predicates starting
// at placeholder index start.
func filterClause(filter ListFilter, start int) (string, []any) {
	var (
		clauses []string
		args    []any
		n       = start
	)
	if filter.Type != nil {
		clauses = append(clauses, "type = $"+strconv.Itoa(n))
		args = append(args, *filter.Type)
		n++
	}
	if filter.ReferenceType != nil {
		clauses = append(clauses, "reference_type = $"+strconv.Itoa(n))
		args = append(args, *filter.ReferenceType)
		n++
	}
	if filter.Signed != nil {
		clauses = append(clauses, "signed = $"+strconv.Itoa(n))
		args = append(args, *filter.Signed)
		n++
	}
	if filter.Approved != nil {
		clauses = append(clauses, "approved = $"+strconv.Itoa(n))
		args = append(args, *filter.Approved)
		n++
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func (r *PostgresRepository) list(ctx context.Context, query string, args []any) ([]Signature, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing signatures: %w", err)
	}
	defer rows.Close()

	var sigs []Signature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning signature row: %w", err)
		}
		sigs = append(sigs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signature rows: %w", err)
	}

	if sigs == nil {
		sigs = []Signature{}
	}

	return sigs, nil
}

// ListByProject retrieves all signatures for a project, newest first.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID uuid.UUID, filter ListFilter) ([]Signature, error) {
	clause, extra := filterClause(filter, 2)
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE project_id = $1` + clause + `
		ORDER BY created_at DESC`
	return r.list(ctx, query, append([]any{projectID}, extra...))
}

// ListByReference retrieves all signatures covering a user or company,
// newest first.
func (r *PostgresRepository) ListByReference(ctx context.Context, referenceID uuid.UUID, refType ReferenceType, filter ListFilter) ([]Signature, error) {
	clause, extra := filterClause(filter, 3)
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE reference_id = $1 AND reference_type = $2` + clause + `
		ORDER BY created_at DESC`
	return r.list(ctx, query, append([]any{referenceID, refType}, extra...))
}

// GetActiveCCLA retrieves the signed and approved corporate signature for a
// company on a project, preferring the most recent document version.
func (r *PostgresRepository) GetActiveCCLA(ctx context.Context, companyID, projectID uuid.UUID) (*Signature, int, error) {
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE reference_id = $1 AND project_id = $2
			AND reference_type = 'company' AND type = 'corporate'
			AND signed = true AND approved = true
		ORDER BY document_major_version DESC, document_minor_version DESC, created_at DESC`

	sigs, err := r.list(ctx, query, []any{companyID, projectID})
	if err != nil {
		return nil, 0, err
	}
	if len(sigs) == 0 {
		return nil, 0, ErrSignatureNotFound
	}
	return &sigs[0], len(sigs), nil
}

// GetLatestUnsignedCorporate retrieves the most recently created unsigned
// corporate signature for a company on a project and how many exist.
func (r *PostgresRepository) GetLatestUnsignedCorporate(ctx context.Context, companyID, projectID uuid.UUID) (*Signature, int, error) {
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE reference_id = $1 AND project_id = $2
			AND reference_type = 'company' AND type = 'corporate'
			AND signed = false
		ORDER BY created_at DESC`

	sigs, err := r.list(ctx, query, []any{companyID, projectID})
	if err != nil {
		return nil, 0, err
	}
	if len(sigs) == 0 {
		return nil, 0, ErrSignatureNotFound
	}
	return &sigs[0], len(sigs), nil
}

// GetEmployeeSignature retrieves the employee acknowledgement tying a user
// to a company's CCLA on a project.
func (r *PostgresRepository) GetEmployeeSignature(ctx context.Context, projectID, userID, companyID uuid.UUID) (*Signature, error) {
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE project_id = $1 AND reference_id = $2 AND user_ccla_company_id = $3
			AND reference_type = 'user' AND type = 'individual'
		ORDER BY created_at DESC
		LIMIT 1`

	s, err := scanSignature(r.pool.QueryRow(ctx, query, projectID, userID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("querying employee signature: %w", err)
	}
	return s, nil
}

// GetIndividualSignature retrieves the user's ICLA for a project. Employee
// acknowledgements are excluded.
func (r *PostgresRepository) GetIndividualSignature(ctx context.Context, projectID, userID uuid.UUID) (*Signature, error) {
	query := `SELECT ` + signatureColumns + `
		FROM signatures
		WHERE project_id = $1 AND reference_id = $2
			AND reference_type = 'user' AND type = 'individual'
			AND user_ccla_company_id IS NULL
		ORDER BY created_at DESC
		LIMIT 1`

	s, err := scanSignature(r.pool.QueryRow(ctx, query, projectID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("querying individual signature: %w", err)
	}
	return s, nil
}
