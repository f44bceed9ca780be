package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

const tokenCols = `id, user_id, app_name, signature_id, value, created_at, expires_at, last_used_at,
can_profile, can_samples, can_goals, can_stats`

// GetByValue selects a token by value.
func (r *TokenRepo) GetByValue(ctx context.Context, value string) (*model.AccessToken, error) {
	const q = `SELECT ` + tokenCols + ` FROM auth_tokens WHERE value=$1`
	t, err := scanToken(r.db.Pool.QueryRow(ctx, q, value))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// ListByUser selects every token of the user, oldest first.
func (r *TokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	const q = `SELECT ` + tokenCols + ` FROM auth_tokens WHERE user_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectTokens(rows)
}

// Create inserts a token row.
func (r *TokenRepo) Create(ctx context.Context, t *model.AccessToken) error {
	const q = `
INSERT INTO auth_tokens (id, user_id, app_name, signature_id, value, created_at, expires_at, last_used_at,
  can_profile, can_samples, can_goals, can_stats)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Pool.Exec(ctx, q,
		t.ID, t.UserID, t.AppName, t.SignatureID, t.Value, t.CreatedAt, t.ExpiresAt, t.LastUsedAt,
		t.Rights.Has(model.CapProfile), t.Rights.Has(model.CapSamples),
		t.Rights.Has(model.CapGoals), t.Rights.Has(model.CapStats))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// TouchLastUsed updates last_used_at of the token with the given value.
func (r *TokenRepo) TouchLastUsed(ctx context.Context, value string, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE auth_tokens SET last_used_at=$2 WHERE value=$1`, value, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByUser deletes and returns every token of the user.
func (r *TokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	const q = `DELETE FROM auth_tokens WHERE user_id=$1 RETURNING ` + tokenCols
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectTokens(rows)
}

func collectTokens(rows pgx.Rows) ([]model.AccessToken, error) {
	defer rows.Close()
	out := []model.AccessToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanToken(row pgx.Row) (*model.AccessToken, error) {
	var (
		t                    model.AccessToken
		prof, smp, goal, sts bool
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AppName, &t.SignatureID, &t.Value,
		&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt, &prof, &smp, &goal, &sts)
	if err != nil {
		return nil, err
	}
	t.Rights = model.Capabilities{prof, smp, goal, sts}
	return &t, nil
}
