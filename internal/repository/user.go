package repository

import (
	"context"

	"patientdocs/internal/model"
)

// UserRepository defines data access for portal accounts.
type UserRepository interface {
	// Create inserts a new user row and returns the stored record.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByEmail returns the user with the given (normalized) email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID returns a user by ID.
	FindByID(ctx context.Context, id string) (*model.User, error)
}
