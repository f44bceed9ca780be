package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/glucokeeper/internal/crypto"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/limiter"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/repository"
)

// mintAttempts bounds regeneration when a generated value is already taken.
const mintAttempts = 3

// IssueRequest carries the credentials and parameters of a token request.
type IssueRequest struct {
	Firstname  string
	Lastname   string
	Password   string
	Rights     model.Capabilities
	Duration   model.TokenDuration
	AppName    string
	RemoteAddr string // client address, only hashed
}

// TokenManager issues, resolves and revokes access tokens.
type TokenManager interface {
	// Issue authenticates the user and stores a new token.
	Issue(ctx context.Context, req IssueRequest) (model.AccessToken, error)
	// IssueForUser stores a new token for an already authenticated user.
	IssueForUser(ctx context.Context, u model.User, rights model.Capabilities, d model.TokenDuration, appName string) (model.AccessToken, error)
	// Validate resolves the owner of a token without mutating it.
	Validate(ctx context.Context, value string) (model.User, error)
	// Touch records use of the token and reports whether it exists.
	Touch(ctx context.Context, value string) (bool, error)
	// Rights returns the token's capabilities; false when the token is missing or expired.
	Rights(ctx context.Context, value string) (model.Capabilities, bool, error)
	// RevokeAllForUser deletes every token of the user.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
	// ListForUser returns the user's tokens.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error)
}

// TokenManagerImpl implements TokenManager over the user and token repositories.
type TokenManagerImpl struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	sigs   SignatureSource
	lim    limiter.Limiter
	log    *zap.Logger
	now    func() time.Time
}

var _ TokenManager = (*TokenManagerImpl)(nil)

// TokenOption configures a TokenManagerImpl.
type TokenOption func(*TokenManagerImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManagerImpl) { m.now = now }
}

// WithLimiter enables login rate limiting.
func WithLimiter(l limiter.Limiter) TokenOption {
	return func(m *TokenManagerImpl) { m.lim = l }
}

// WithTokenLogger sets the logger for limiter bookkeeping failures.
func WithTokenLogger(l *zap.Logger) TokenOption {
	return func(m *TokenManagerImpl) { m.log = l }
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(users repository.UserRepository, tokens repository.TokenRepository, sigs SignatureSource, opts ...TokenOption) *TokenManagerImpl {
	m := &TokenManagerImpl{users: users, tokens: tokens, sigs: sigs, lim: limiter.Nop{}, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Issue checks the rate limit and credentials, then mints a token. Unknown users and wrong
// passwords both yield errs.ErrUnauthenticated.
func (m *TokenManagerImpl) Issue(ctx context.Context, req IssueRequest) (model.AccessToken, error) {
	username := model.User{Firstname: req.Firstname, Lastname: req.Lastname}.Username()
	ipHash := limiter.HashIP(req.RemoteAddr)

	allowed, _, err := m.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.AccessToken{}, err
	}
	if !allowed {
		return model.AccessToken{}, errs.ErrRateLimited
	}

	u, err := m.users.GetByNames(ctx, req.Firstname, req.Lastname)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.AccessToken{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(req.Password), u.SaltAuth, u.PwdHash) {
		blocked, _, ferr := m.lim.Failure(ctx, username, ipHash)
		if ferr != nil {
			m.log.Warn("limiter failure not recorded", zap.Error(ferr))
		}
		if ferr == nil && blocked {
			return model.AccessToken{}, errs.ErrRateLimited
		}
		return model.AccessToken{}, errs.ErrUnauthenticated
	}

	if err := m.lim.Success(ctx, username, ipHash); err != nil {
		m.log.Warn("limiter success not recorded", zap.Error(err))
	}

	return m.IssueForUser(ctx, *u, req.Rights, req.Duration, req.AppName)
}

// IssueForUser mints and stores a token signed with the latest server signature.
func (m *TokenManagerImpl) IssueForUser(
	ctx context.Context, u model.User, rights model.Capabilities, d model.TokenDuration, appName string,
) (model.AccessToken, error) {
	days, err := d.Days()
	if err != nil {
		return model.AccessToken{}, err
	}
	sig, err := m.sigs.Latest(ctx)
	if err != nil {
		return model.AccessToken{}, err
	}

	for attempt := 0; attempt < mintAttempts; attempt++ {
		now := m.now()
		value, err := mintValue(sig, u, now)
		if err != nil {
			return model.AccessToken{}, err
		}
		if _, err := m.tokens.GetByValue(ctx, value); err == nil {
			continue
		} else if !errors.Is(err, errs.ErrNotFound) {
			return model.AccessToken{}, err
		}

		id, err := uuid.NewV4()
		if err != nil {
			return model.AccessToken{}, err
		}
		t := model.AccessToken{
			ID:          id,
			UserID:      u.ID,
			AppName:     appName,
			SignatureID: sig.ID,
			Value:       value,
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Duration(days) * 24 * time.Hour),
			LastUsedAt:  now,
			Rights:      rights,
		}
		if !t.ExpiresAt.After(t.CreatedAt) {
			return model.AccessToken{}, fmt.Errorf("token lifetime of %d days: %w", days, errs.ErrInvalidArgument)
		}
		err = m.tokens.Create(ctx, &t)
		if errors.Is(err, errs.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return model.AccessToken{}, err
		}
		return t, nil
	}
	return model.AccessToken{}, fmt.Errorf("token value collisions: %w", errs.ErrUnavailable)
}

// Validate returns the token owner. errs.ErrNotFound for an unknown token or a missing
// owner, errs.ErrExpired once now is past the expiration.
func (m *TokenManagerImpl) Validate(ctx context.Context, value string) (model.User, error) {
	t, err := m.tokens.GetByValue(ctx, value)
	if err != nil {
		return model.User{}, err
	}
	if !t.ValidAt(m.now()) {
		return model.User{}, errs.ErrExpired
	}
	u, err := m.users.GetByID(ctx, t.UserID)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// Touch sets the token's last use to now.
func (m *TokenManagerImpl) Touch(ctx context.Context, value string) (bool, error) {
	return m.tokens.TouchLastUsed(ctx, value, m.now())
}

// Rights returns the capabilities of a live token.
func (m *TokenManagerImpl) Rights(ctx context.Context, value string) (model.Capabilities, bool, error) {
	t, err := m.tokens.GetByValue(ctx, value)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Capabilities{}, false, nil
	}
	if err != nil {
		return model.Capabilities{}, false, err
	}
	if !t.ValidAt(m.now()) {
		return model.Capabilities{}, false, nil
	}
	return t.Rights, true, nil
}

// RevokeAllForUser deletes the user's tokens and returns them.
func (m *TokenManagerImpl) RevokeAllForUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	return m.tokens.DeleteByUser(ctx, userID)
}

// ListForUser returns the user's tokens.
func (m *TokenManagerImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	return m.tokens.ListByUser(ctx, userID)
}

// mintValue signs a seed built from the user's names, the issue time and a random nonce
// with the signature secret, then hashes the compact JWS into the opaque token value.
func mintValue(sig *model.Signature, u model.User, now time.Time) (string, error) {
	nonce, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"fn":    prefix(u.Firstname, 3),
		"ln":    suffix(u.Lastname, 3),
		"iat":   now.UnixNano(),
		"nonce": hex.EncodeToString(nonce),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = sig.ID.String()
	signed, err := tok.SignedString(sig.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token seed: %w", err)
	}
	return pkgcrypto.HashSecret(signed), nil
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func suffix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[len(r)-n:]
	}
	return string(r)
}
