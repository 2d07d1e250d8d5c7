package folioAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/folioAuth/internal"
)

// Authenticate verifies a password sign-in.
//
// Checks run in order: unknown email (ErrAccountNotFound), banned
// (ErrAccountBanned), unverified (ErrAccountUnverified), password
// (ErrInvalidCredentials), then the second factor when enabled
// (ErrTwoFactorRequired without a code, ErrTwoFactorInvalid with a wrong
// or reused one, ErrRateLimited once the account's attempt budget is spent).
// The password, or a dummy digest for unknown accounts, is verified
// on every path. On success the stored refresh token is rotated and the raw
// value is returned in the Principal.
func (e *Engine) Authenticate(ctx context.Context, email, plaintext, code string) (*Principal, error) {
	if e == nil || e.store == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil && e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	normalized := normalizeEmail(email)
	if normalized == "" {
		e.hasher.VerifyDummy(plaintext)
		return nil, e.loginFailed(ctx, "", ErrAccountNotFound)
	}

	acct, err := e.store.FindByEmail(ctx, normalized)
	if err != nil {
		e.hasher.VerifyDummy(plaintext)
		if errors.Is(err, ErrAccountNotFound) {
			return nil, e.loginFailed(ctx, "", ErrAccountNotFound)
		}
		return nil, wrapStoreError(err)
	}

	// Runs before the status checks so every branch pays the same hash cost.
	passwordOK := e.hasher.Verify(plaintext, acct.PasswordHash)

	switch {
	case acct.Status == StatusBanned:
		e.metricInc(MetricLoginBanned)
		return nil, e.loginFailed(ctx, acct.ID, ErrAccountBanned)
	case !acct.EmailVerified:
		e.metricInc(MetricLoginUnverified)
		return nil, e.loginFailed(ctx, acct.ID, ErrAccountUnverified)
	case !passwordOK:
		return nil, e.loginFailed(ctx, acct.ID, ErrInvalidCredentials)
	}

	if acct.TwoFactorEnabled {
		code = strings.TrimSpace(code)
		if code == "" {
			e.metricInc(MetricLoginTwoFactorRequired)
			e.emitAudit(ctx, auditEventTwoFactorRequired, false, acct.ID, ErrTwoFactorRequired, nil)
			return nil, ErrTwoFactorRequired
		}
		if err := e.checkTwoFactorCode(ctx, acct, code, "login"); err != nil {
			if errors.Is(err, ErrTwoFactorInvalid) {
				return nil, e.loginFailed(ctx, acct.ID, err)
			}
			return nil, err
		}
	}

	refresh, err := internal.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := e.store.RotateRefreshToken(ctx, acct.ID, internal.Digest(refresh), e.now()); err != nil {
		return nil, wrapStoreError(err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, nil, nil)

	p := principalFrom(acct)
	p.RefreshToken = refresh
	return p, nil
}

func (e *Engine) loginFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, err, nil)
	return err
}
