package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/glucokeeper/internal/crypto"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/repository"
)

// RegistrationToken is the duration of the token handed out at registration.
var RegistrationToken = model.TokenDuration{Amount: 1, Unit: model.UnitDays}

// SeriesCache serves loaded series and their statistics per username.
type SeriesCache interface {
	Series(ctx context.Context, username string) (glucose.Series, error)
	Stats(ctx context.Context, username string) (model.Stats, error)
	Invalidate(ctx context.Context, username string)
}

// RegisterRequest holds the fields of a new account.
type RegisterRequest struct {
	Firstname string
	Lastname  string
	Email     string
	Password  string
	AppName   string
}

// Profile is the public view of an account.
type Profile struct {
	User    model.User
	Devices []string
}

// DeletedAccount is everything removed with an account.
type DeletedAccount struct {
	User   model.User
	Tokens []model.AccessToken
	Goals  []model.Goal
}

// Accounts manages account lifecycle.
type Accounts struct {
	users  repository.UserRepository
	goals  repository.GoalRepository
	tokens TokenManager
	cache  SeriesCache
	now    func() time.Time
}

// NewAccounts constructs the account service.
func NewAccounts(users repository.UserRepository, goals repository.GoalRepository, tokens TokenManager, cache SeriesCache) *Accounts {
	return &Accounts{users: users, goals: goals, tokens: tokens, cache: cache, now: time.Now}
}

// Register creates the account and returns a one-day token carrying every capability.
func (a *Accounts) Register(ctx context.Context, req RegisterRequest) (model.User, model.AccessToken, error) {
	if err := validName(req.Firstname); err != nil {
		return model.User{}, model.AccessToken{}, err
	}
	if err := validName(req.Lastname); err != nil {
		return model.User{}, model.AccessToken{}, err
	}
	if req.Password == "" {
		return model.User{}, model.AccessToken{}, fmt.Errorf("empty password: %w", errs.ErrInvalidArgument)
	}

	_, err := a.users.GetByEmailOrNames(ctx, req.Email, req.Firstname, req.Lastname)
	if err == nil {
		return model.User{}, model.AccessToken{}, fmt.Errorf("user exists: %w", errs.ErrAlreadyExists)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return model.User{}, model.AccessToken{}, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, model.AccessToken{}, err
	}
	salt, err := pkgcrypto.RandBytes(pkgcrypto.SaltLen)
	if err != nil {
		return model.User{}, model.AccessToken{}, err
	}
	u := model.User{
		ID:        uid,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		PwdHash:   pkgcrypto.HashPassword([]byte(req.Password), salt),
		SaltAuth:  salt,
		CreatedAt: a.now(),
	}
	if err := a.users.Create(ctx, &u); err != nil {
		return model.User{}, model.AccessToken{}, err
	}

	all := model.CapabilitiesOf(model.AllCapabilities()...)
	tok, err := a.tokens.IssueForUser(ctx, u, all, RegistrationToken, req.AppName)
	if err != nil {
		// the account is only kept together with its first token
		if derr := a.users.Delete(ctx, u.ID); derr != nil {
			err = errors.Join(err, fmt.Errorf("rollback user: %w", derr))
		}
		return model.User{}, model.AccessToken{}, fmt.Errorf("registration token: %w", err)
	}
	return u, tok, nil
}

// Profile returns the account with the devices found in its readings.
func (a *Accounts) Profile(ctx context.Context, u model.User) (Profile, error) {
	p := Profile{User: u, Devices: []string{}}
	s, err := a.cache.Series(ctx, u.Username())
	switch {
	case err == nil:
		p.Devices = s.Devices()
	case errors.Is(err, errs.ErrNotFound):
	default:
		return Profile{}, err
	}
	return p, nil
}

// Delete revokes the user's tokens, removes goals and the account itself.
func (a *Accounts) Delete(ctx context.Context, u model.User) (DeletedAccount, error) {
	tokens, err := a.tokens.RevokeAllForUser(ctx, u.ID)
	if err != nil {
		return DeletedAccount{}, fmt.Errorf("revoke tokens: %w", err)
	}
	goals, err := a.goals.DeleteAll(ctx, u.ID)
	if err != nil {
		return DeletedAccount{}, fmt.Errorf("delete goals: %w", err)
	}
	if err := a.users.Delete(ctx, u.ID); err != nil {
		return DeletedAccount{}, fmt.Errorf("delete user: %w", err)
	}
	a.cache.Invalidate(ctx, u.Username())
	return DeletedAccount{User: u, Tokens: tokens, Goals: goals}, nil
}

// SplitUsername splits "firstname_lastname".
func SplitUsername(username string) (string, string, error) {
	first, last, ok := strings.Cut(username, "_")
	if !ok || first == "" || last == "" || strings.Contains(last, "_") {
		return "", "", fmt.Errorf("username %q: want firstname_lastname: %w", username, errs.ErrInvalidArgument)
	}
	return first, last, nil
}

func validName(s string) error {
	if strings.TrimSpace(s) == "" || strings.ContainsAny(s, `_/\`) {
		return fmt.Errorf("name %q: %w", s, errs.ErrInvalidArgument)
	}
	return nil
}
