package folioAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/folioAuth/password"
)

// ForgotPassword starts a password reset. It returns nil for unknown,
// banned and known addresses alike so the caller can always answer with
// the same response; only ErrRateLimited and ErrStoreUnavailable surface.
// The link is mailed after ForgotPassword returns.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.checkRate(ctx, rateScopeForgotPassword); err != nil {
		return err
	}
	e.metricInc(MetricResetRequested)

	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	acct, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", err, nil)
			return nil
		}
		return wrapStoreError(err)
	}
	if acct.Status == StatusBanned {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, acct.ID, ErrAccountBanned, nil)
		return nil
	}

	raw, err := e.tokens.issue(ctx, TokenReset, acct.ID, e.config.Tokens.ResetTTL, e.now())
	if err != nil {
		return err
	}
	e.metricInc(MetricResetIssued)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.ID, nil, nil)

	link := e.link(e.config.Links.ResetPasswordPath, raw)
	e.deliver(ctx, acct.ID, "password reset", func(ctx context.Context) error {
		return e.mailer.SendPasswordResetEmail(ctx, acct.Email, link)
	})
	return nil
}

// ValidateResetToken reports whether rawToken is a live reset token. It
// reveals nothing about the account.
func (e *Engine) ValidateResetToken(ctx context.Context, rawToken string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}

	acct, err := e.tokens.validate(ctx, TokenReset, rawToken, e.now())
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return false, nil
		}
		return false, err
	}
	return acct.Status != StatusBanned, nil
}

// ResetPassword consumes a reset token and sets a new password digest in
// the same store update. The stored refresh token is cleared.
func (e *Engine) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := password.CheckPolicy(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	now := e.now()
	acct, err := e.tokens.validate(ctx, TokenReset, rawToken, now)
	if err != nil {
		e.resetFailed(ctx, "", err)
		return err
	}
	if acct.Status == StatusBanned {
		e.resetFailed(ctx, acct.ID, ErrAccountBanned)
		return ErrAccountBanned
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	acct, err = e.tokens.consume(ctx, TokenReset, rawToken, now, TokenEffect{PasswordHash: hash})
	if err != nil {
		e.resetFailed(ctx, "", err)
		return err
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, acct.ID, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, accountID string, err error) {
	if errors.Is(err, ErrTokenInvalid) {
		e.metricInc(MetricResetInvalid)
	}
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, accountID, err, nil)
}
