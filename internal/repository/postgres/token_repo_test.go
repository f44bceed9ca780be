package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

var tokenColumns = []string{
	"id", "user_id", "app_name", "signature_id", "value", "created_at", "expires_at", "last_used_at",
	"can_profile", "can_samples", "can_goals", "can_stats",
}

func sampleToken() model.AccessToken {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	return model.AccessToken{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		AppName:     "cli",
		SignatureID: uuid.Must(uuid.NewV4()),
		Value:       "abc",
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
		LastUsedAt:  now,
		Rights:      model.CapabilitiesOf(model.CapSamples, model.CapStats),
	}
}

func tokenRow(rows *pgxmock.Rows, t model.AccessToken) *pgxmock.Rows {
	return rows.AddRow(t.ID, t.UserID, t.AppName, t.SignatureID, t.Value, t.CreatedAt, t.ExpiresAt, t.LastUsedAt,
		t.Rights.Has(model.CapProfile), t.Rights.Has(model.CapSamples),
		t.Rights.Has(model.CapGoals), t.Rights.Has(model.CapStats))
}

func TestTokenRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()
	tk := sampleToken()

	args := []any{tk.ID, tk.UserID, tk.AppName, tk.SignatureID, tk.Value, tk.CreatedAt, tk.ExpiresAt, tk.LastUsedAt,
		false, true, false, true}
	mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, &tk))

	mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, &tk), errs.ErrAlreadyExists)

	mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(args...).
		WillReturnError(errors.New("boom"))
	err := r.Create(ctx, &tk)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestTokenRepo_GetByValue(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()
	tk := sampleToken()

	mock.ExpectQuery(`FROM auth_tokens WHERE value=\$1`).
		WithArgs(tk.Value).
		WillReturnRows(tokenRow(pgxmock.NewRows(tokenColumns), tk))
	got, err := r.GetByValue(ctx, tk.Value)
	require.NoError(t, err)
	require.Equal(t, tk, *got)

	mock.ExpectQuery(`FROM auth_tokens WHERE value=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByValue(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTokenRepo_TouchLastUsed(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()
	at := time.Now()

	mock.ExpectExec(`UPDATE auth_tokens SET last_used_at=\$2 WHERE value=\$1`).
		WithArgs("abc", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := r.TouchLastUsed(ctx, "abc", at)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`UPDATE auth_tokens SET last_used_at=\$2 WHERE value=\$1`).
		WithArgs("nope", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = r.TouchLastUsed(ctx, "nope", at)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTokenRepo_ListAndDeleteByUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTokenRepo(db)
	ctx := context.Background()
	a, b := sampleToken(), sampleToken()
	b.UserID = a.UserID

	rows := pgxmock.NewRows(tokenColumns)
	tokenRow(rows, a)
	tokenRow(rows, b)
	mock.ExpectQuery(`FROM auth_tokens WHERE user_id=\$1 ORDER BY created_at ASC`).
		WithArgs(a.UserID).
		WillReturnRows(rows)
	list, err := r.ListByUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b.ID, list[1].ID)

	deleted := pgxmock.NewRows(tokenColumns)
	tokenRow(deleted, a)
	mock.ExpectQuery(`DELETE FROM auth_tokens WHERE user_id=\$1 RETURNING`).
		WithArgs(a.UserID).
		WillReturnRows(deleted)
	gone, err := r.DeleteByUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	require.True(t, gone[0].Rights.Has(model.CapStats))
	require.False(t, gone[0].Rights.Has(model.CapProfile))

	require.NoError(t, mock.ExpectationsWereMet())
}
