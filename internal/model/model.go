// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server. The password is never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Firstname string    // unique together with Lastname
	Lastname  string
	Email     string
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// Username returns the public handle "firstname_lastname" used in resource paths.
func (u User) Username() string {
	return u.Firstname + "_" + u.Lastname
}

// AccessToken is one issued credential. Only LastUsedAt changes after creation.
type AccessToken struct {
	ID          uuid.UUID
	UserID      uuid.UUID // FK -> users.id, cascades on delete
	AppName     string    // optional label chosen by the holder
	SignatureID uuid.UUID // FK -> signatures.id
	Value       string    // hex digest, unique
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
	Rights      Capabilities
}

// ValidAt reports whether the token is still usable at now. Expiration itself is inclusive.
func (t AccessToken) ValidAt(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

// Signature is a rotating server secret used to diversify generated token values.
// Secret is plaintext and only lives in memory; storage keeps it sealed.
type Signature struct {
	ID        uuid.UUID
	Secret    []byte
	CreatedAt time.Time
}
