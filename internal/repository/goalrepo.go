package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/model"
)

// GoalRepository provides per-user access to goals.
type GoalRepository interface {
	// List returns the user's goals ordered by title.
	List(ctx context.Context, userID uuid.UUID) ([]model.Goal, error)
	// Get loads one goal of the user by title.
	Get(ctx context.Context, userID uuid.UUID, title string) (*model.Goal, error)
	// Create inserts a goal. A taken title yields errs.ErrAlreadyExists.
	Create(ctx context.Context, g *model.Goal) error
	// Update overwrites the goal identified by g.ID.
	Update(ctx context.Context, g *model.Goal) error
	// Delete removes the goal of the user by title and returns it.
	Delete(ctx context.Context, userID uuid.UUID, title string) (*model.Goal, error)
	// DeleteAll removes every goal of the user and returns them.
	DeleteAll(ctx context.Context, userID uuid.UUID) ([]model.Goal, error)
}
