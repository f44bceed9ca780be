package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, firstname, lastname, email, pwd_hash, salt_auth, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, firstname, lastname, email, pwd_hash, salt_auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Firstname, u.Lastname, u.Email, u.PwdHash, u.SaltAuth, u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return r.scanOne(ctx, q, id)
}

// GetByNames selects a user by first and last name.
func (r *UserRepo) GetByNames(ctx context.Context, firstname, lastname string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE firstname=$1 AND lastname=$2`
	return r.scanOne(ctx, q, firstname, lastname)
}

// GetByEmailOrNames selects the first user holding the name pair or, when email is not
// empty, the email. Accounts registered without an email never match on it.
func (r *UserRepo) GetByEmailOrNames(ctx context.Context, email, firstname, lastname string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE ($1 <> '' AND email=$1) OR (firstname=$2 AND lastname=$3) LIMIT 1`
	return r.scanOne(ctx, q, email, firstname, lastname)
}

// Delete removes a user by ID.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanOne(ctx context.Context, q string, args ...any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, args...).
		Scan(&u.ID, &u.Firstname, &u.Lastname, &u.Email, &u.PwdHash, &u.SaltAuth, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
