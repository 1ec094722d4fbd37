package postgres

import (
	"context"
	"database/sql"

	"patientdocs/internal/model"
	"patientdocs/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

const userColumns = `id, email, first_name, last_name, password_hash, created_at, updated_at`

func scanUser(s interface{ Scan(dest ...any) error }) (*model.User, error) {
	var u model.User
	if err := s.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row and returns the stored record.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, email, first_name, last_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.PasswordHash,
		u.CreatedAt,
		u.UpdatedAt,
	)
	return scanUser(row)
}

// FindByEmail fetches a user by normalized email.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// FindByID fetches a user by ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}
