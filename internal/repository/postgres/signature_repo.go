package postgres

import (
	"context"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// SignatureRepo implements SignatureRepository using PostgreSQL.
type SignatureRepo struct{ db *DB }

// NewSignatureRepo constructs a signature repository.
func NewSignatureRepo(db *DB) *SignatureRepo { return &SignatureRepo{db: db} }

// Latest selects the newest signature.
func (r *SignatureRepo) Latest(ctx context.Context) (*model.Signature, error) {
	const q = `SELECT id, secret, created_at FROM signatures ORDER BY created_at DESC LIMIT 1`
	var s model.Signature
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&s.ID, &s.Secret, &s.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// Create inserts a signature row.
func (r *SignatureRepo) Create(ctx context.Context, s *model.Signature) error {
	const q = `INSERT INTO signatures (id, secret, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.Secret, s.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}
