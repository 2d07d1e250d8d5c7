package folioAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/folioAuth/jwt"
)

// SessionClaims is the claim set carried in the session token and the only
// input route authorization consults. It never holds password or
// two-factor material.
type SessionClaims struct {
	AccountID    string
	Role         Role
	Status       AccountStatus
	AccessToken  string
	RefreshToken string

	// fresh marks claims minted by this request's own sign-in step.
	fresh bool
}

// Fresh reports whether the claims were minted in the current request.
func (c SessionClaims) Fresh() bool {
	return c.fresh
}

// IsAdmin reports whether the claims carry the admin role.
func (c SessionClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// IsBanned reports whether the claims carry banned status.
func (c SessionClaims) IsBanned() bool {
	return c.Status == StatusBanned
}

// BuildInitialClaims maps a freshly authenticated principal to claims.
func BuildInitialClaims(p Principal) SessionClaims {
	return SessionClaims{
		AccountID:    p.ID,
		Role:         p.Role,
		Status:       p.Status,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		fresh:        true,
	}
}

// RefreshClaims re-reads role and status for carried-over claims so that a
// ban or role change takes effect on the next request. Fresh claims are
// returned unchanged. A deleted account yields ErrAccountNotFound and the
// caller must drop the session.
func (e *Engine) RefreshClaims(ctx context.Context, prior SessionClaims) (SessionClaims, error) {
	if prior.fresh {
		return prior, nil
	}
	if e == nil || e.store == nil {
		return prior, ErrEngineNotReady
	}
	if prior.AccountID == "" {
		return SessionClaims{}, ErrAccountNotFound
	}

	acct, err := e.store.FindByID(ctx, prior.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricClaimsRevoked)
			return SessionClaims{}, ErrAccountNotFound
		}
		return prior, wrapStoreError(err)
	}

	e.metricInc(MetricClaimsRefreshed)
	next := prior
	next.Role = acct.Role
	next.Status = acct.Status
	return next, nil
}

// EncodeSession signs claims into a session token.
func (e *Engine) EncodeSession(c SessionClaims) (string, error) {
	if e == nil || e.sessions == nil {
		return "", ErrEngineNotReady
	}
	return e.sessions.CreateSession(jwt.SessionClaims{
		AccountID:    c.AccountID,
		Role:         string(c.Role),
		Status:       string(c.Status),
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	})
}

// DecodeSession verifies a session token. Decoded claims are never fresh.
func (e *Engine) DecodeSession(token string) (SessionClaims, error) {
	if e == nil || e.sessions == nil {
		return SessionClaims{}, ErrEngineNotReady
	}
	parsed, err := e.sessions.ParseSession(token)
	if err != nil {
		return SessionClaims{}, err
	}

	c := SessionClaims{
		AccountID:    parsed.AccountID,
		Role:         Role(parsed.Role),
		Status:       AccountStatus(parsed.Status),
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
	}
	if !c.Role.Valid() || !c.Status.Valid() {
		return SessionClaims{}, ErrValidation
	}
	return c, nil
}
