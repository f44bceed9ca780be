package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/model"
)

// TokenRepository persists access tokens. Each method is a single-row or single-statement
// operation; consistency is left to the store.
type TokenRepository interface {
	// GetByValue loads a token by its value.
	GetByValue(ctx context.Context, value string) (*model.AccessToken, error)
	// ListByUser returns the user's tokens ordered by creation time.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
	// Create inserts a token. A duplicate value yields errs.ErrAlreadyExists.
	Create(ctx context.Context, t *model.AccessToken) error
	// TouchLastUsed sets last_used_at and reports whether a token matched.
	TouchLastUsed(ctx context.Context, value string, at time.Time) (bool, error)
	// DeleteByUser removes every token of the user and returns them.
	DeleteByUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
}
