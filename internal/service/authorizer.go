package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// Authorizer resolves a bearer token into a user holding the required capabilities.
type Authorizer struct {
	tokens TokenManager
	log    *zap.Logger
}

// NewAuthorizer constructs an Authorizer. A nil logger disables logging.
func NewAuthorizer(tokens TokenManager, log *zap.Logger) *Authorizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authorizer{tokens: tokens, log: log}
}

// Authorize records use of the token, checks it covers every required capability and
// returns its owner.
//
// Use is recorded before any check, so rejected requests still update the token's last use.
// A missing, expired or under-privileged token fails with errs.ErrForbidden when
// capabilities are required; a token that cannot be resolved to a user fails with
// errs.ErrUnauthenticated. Store failures are returned as they are.
func (a *Authorizer) Authorize(ctx context.Context, bearer string, required ...model.Capability) (model.User, error) {
	if bearer == "" {
		return model.User{}, fmt.Errorf("missing bearer token: %w", errs.ErrUnauthenticated)
	}

	touched, err := a.tokens.Touch(ctx, bearer)
	if err != nil {
		return model.User{}, err
	}
	if !touched {
		a.log.Debug("touch of unknown token")
	}

	if len(required) > 0 {
		rights, ok, err := a.tokens.Rights(ctx, bearer)
		if err != nil {
			return model.User{}, err
		}
		if !ok {
			a.log.Debug("authorization denied", zap.String("reason", "token missing or expired"))
			return model.User{}, fmt.Errorf("token missing or expired: %w", errs.ErrForbidden)
		}
		if !rights.Covers(required...) {
			a.log.Debug("authorization denied",
				zap.String("reason", "insufficient rights"),
				zap.Strings("granted", rights.Names()),
				zap.Strings("required", model.CapabilitiesOf(required...).Names()))
			return model.User{}, fmt.Errorf("insufficient rights: %w", errs.ErrForbidden)
		}
	}

	u, err := a.tokens.Validate(ctx, bearer)
	switch {
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrExpired):
		a.log.Debug("token not resolved", zap.Error(err))
		return model.User{}, fmt.Errorf("could not validate credentials: %w", errs.ErrUnauthenticated)
	case err != nil:
		return model.User{}, fmt.Errorf("validate token: %w", err)
	}
	return u, nil
}

// AssertUsernameMatches fails with errs.ErrForbidden unless username addresses u.
func (a *Authorizer) AssertUsernameMatches(username string, u model.User) error {
	if username != u.Username() {
		return fmt.Errorf("token does not belong to %q: %w", username, errs.ErrForbidden)
	}
	return nil
}
