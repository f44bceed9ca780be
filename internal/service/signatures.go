// Package service contains the application services: token lifecycle, authorization,
// accounts, goals and glucose insights.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/glucokeeper/internal/crypto"
	"github.com/and161185/glucokeeper/internal/crypto/sealer"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/repository"
)

// signatureSize is the length of a generated signature secret.
const signatureSize = 32

// SignatureSource yields the current server signature with its plaintext secret.
type SignatureSource interface {
	Latest(ctx context.Context) (*model.Signature, error)
}

// Signatures rotates server signatures and keeps their secrets sealed at rest.
type Signatures struct {
	repo   repository.SignatureRepository
	sealer *sealer.Sealer
	now    func() time.Time
}

var _ SignatureSource = (*Signatures)(nil)

// NewSignatures constructs the signature keeper.
func NewSignatures(repo repository.SignatureRepository, s *sealer.Sealer) *Signatures {
	return &Signatures{repo: repo, sealer: s, now: time.Now}
}

// Rotate creates a new signature; it becomes the latest one.
func (s *Signatures) Rotate(ctx context.Context) (*model.Signature, error) {
	secret, err := pkgcrypto.RandBytes(signatureSize)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(secret)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	rec := &model.Signature{ID: id, Secret: sealed, CreatedAt: s.now()}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store signature: %w", err)
	}
	return &model.Signature{ID: id, Secret: secret, CreatedAt: rec.CreatedAt}, nil
}

// Latest returns the newest signature with its secret opened.
// errs.ErrUnavailable means no signature was created yet.
func (s *Signatures) Latest(ctx context.Context) (*model.Signature, error) {
	rec, err := s.repo.Latest(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("no server signature: %w", errs.ErrUnavailable)
	}
	if err != nil {
		return nil, err
	}
	secret, err := s.sealer.Open(rec.Secret)
	if err != nil {
		return nil, fmt.Errorf("open signature %s: %w", rec.ID, err)
	}
	return &model.Signature{ID: rec.ID, Secret: secret, CreatedAt: rec.CreatedAt}, nil
}

// Ensure creates a signature when none exists. It reports whether one was created.
func (s *Signatures) Ensure(ctx context.Context) (bool, error) {
	_, err := s.Latest(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, errs.ErrUnavailable) {
		return false, err
	}
	if _, err := s.Rotate(ctx); err != nil {
		return false, err
	}
	return true, nil
}
