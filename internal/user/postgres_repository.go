package user

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

const userColumns = `
	id, username, name, emails,
	github_username, github_id, gitlab_username, gitlab_id,
	company_id, api_key_prefix, api_key_hash, is_admin,
	created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Emails,
		&u.GitHubUsername, &u.GitHubID, &u.GitLabUsername, &u.GitLabID,
		&u.CompanyID, &u.ApiKeyPrefix, &u.ApiKeyHash, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user record.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (
			id, username, name, emails,
			github_username, github_id, gitlab_username, gitlab_id,
			company_id, api_key_prefix, api_key_hash, is_admin
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Username, u.Name, u.Emails,
		u.GitHubUsername, u.GitHubID, u.GitLabUsername, u.GitLabID,
		u.CompanyID, u.ApiKeyPrefix, u.ApiKeyHash, u.IsAdmin,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves the user owning a verified email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE EXISTS (
			SELECT 1 FROM unnest(emails) e WHERE lower(e) = lower($1)
		)
		LIMIT 1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves the user with the given username,
// case-insensitively.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE lower(username) = lower($1)
		LIMIT 1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by username: %w", err)
	}
	return u, nil
}

// GetByGitHubUsername retrieves the user with the given GitHub username,
// case-insensitively.
func (r *PostgresRepository) GetByGitHubUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE lower(github_username) = lower($1)
		LIMIT 1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by github username: %w", err)
	}
	return u, nil
}

// Update persists the full user record.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users SET
			username = $2, name = $3, emails = $4,
			github_username = $5, github_id = $6,
			gitlab_username = $7, gitlab_id = $8,
			company_id = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Username, u.Name, u.Emails,
		u.GitHubUsername, u.GitHubID, u.GitLabUsername, u.GitLabID,
		u.CompanyID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// FindByKeyPrefix retrieves users whose API key prefix matches.
func (r *PostgresRepository) FindByKeyPrefix(ctx context.Context, prefix string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_key_prefix = $1`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying users by key prefix: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}
