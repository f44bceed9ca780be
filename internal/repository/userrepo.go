// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user. Taken names yield errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByNames loads a user by (firstname, lastname).
	GetByNames(ctx context.Context, firstname, lastname string) (*model.User, error)
	// GetByEmailOrNames loads any user holding the email or the name pair.
	GetByEmailOrNames(ctx context.Context, email, firstname, lastname string) (*model.User, error)
	// Delete removes the user; tokens and goals cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}
