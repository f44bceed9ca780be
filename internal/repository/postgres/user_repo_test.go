package postgres

import (
	"context"
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

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userColumns = []string{"id", "firstname", "lastname", "email", "pwd_hash", "salt_auth", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Firstname: "ada",
		Lastname:  "lovelace",
		Email:     "ada@example.com",
		PwdHash:   []byte("h"),
		SaltAuth:  []byte("s"),
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO users \(id, firstname, lastname, email, pwd_hash, salt_auth, created_at\)`).
		WithArgs(u.ID, u.Firstname, u.Lastname, u.Email, u.PwdHash, u.SaltAuth, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Firstname, u.Lastname, u.Email, u.PwdHash, u.SaltAuth, u.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByNames(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM users WHERE firstname=\$1 AND lastname=\$2`).
		WithArgs("ada", "lovelace").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id, "ada", "lovelace", "ada@example.com", []byte("h"), []byte("s"), created))
	u, err := r.GetByNames(ctx, "ada", "lovelace")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "ada_lovelace", u.Username())
	require.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery(`FROM users WHERE firstname=\$1 AND lastname=\$2`).
		WithArgs("ada", "byron").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByNames(ctx, "ada", "byron")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByIDAndEmailOrNames(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id, "ada", "lovelace", "ada@example.com", []byte("h"), []byte("s"), time.Now()))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", u.Email)

	mock.ExpectQuery(`WHERE \(\$1 <> '' AND email=\$1\) OR \(firstname=\$2 AND lastname=\$3\)`).
		WithArgs("x@example.com", "ada", "lovelace").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmailOrNames(ctx, "x@example.com", "ada", "lovelace")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_EmptyEmailMatchesNamesOnly(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	// the email term is guarded, so a blank email cannot pick up other blank-email accounts
	mock.ExpectQuery(`WHERE \(\$1 <> '' AND email=\$1\) OR`).
		WithArgs("", "grace", "hopper").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetByEmailOrNames(ctx, "", "grace", "hopper")
	require.ErrorIs(t, err, errs.ErrNotFound)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`WHERE \(\$1 <> '' AND email=\$1\) OR`).
		WithArgs("", "ada", "lovelace").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id, "ada", "lovelace", "", []byte("h"), []byte("s"), time.Now()))
	u, err := r.GetByEmailOrNames(ctx, "", "ada", "lovelace")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, id))

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)
}
