package repository

import (
	"context"

	"github.com/and161185/glucokeeper/internal/model"
)

// SignatureRepository stores server signatures. Secrets are persisted as given; callers
// seal them before Create and open them after Latest.
type SignatureRepository interface {
	// Latest returns the most recently created signature.
	Latest(ctx context.Context) (*model.Signature, error)
	// Create inserts a signature.
	Create(ctx context.Context, s *model.Signature) error
}
