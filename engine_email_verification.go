package folioAuth

import (
	"context"
	"errors"
)

// VerifyEmail consumes a verification token and marks the account verified.
// Unknown, expired and already used tokens all return ErrTokenInvalid.
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	now := e.now()
	acct, err := e.tokens.validate(ctx, TokenVerification, rawToken, now)
	if err != nil {
		e.verificationFailed(ctx, "", err)
		return err
	}
	if acct.Status == StatusBanned {
		e.verificationFailed(ctx, acct.ID, ErrAccountBanned)
		return ErrAccountBanned
	}

	acct, err = e.tokens.consume(ctx, TokenVerification, rawToken, now, TokenEffect{MarkVerified: true})
	if err != nil {
		e.verificationFailed(ctx, "", err)
		return err
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, acct.ID, nil, nil)
	return nil
}

// ResendVerification re-issues the verification link for an unverified
// account. The result is the same whether or not the address is known, and
// the link is mailed after ResendVerification returns.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.checkRate(ctx, rateScopeResendVerification); err != nil {
		return err
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	acct, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return wrapStoreError(err)
	}
	if acct.EmailVerified || acct.Status == StatusBanned {
		return nil
	}

	link, err := e.issueVerification(ctx, acct)
	if err != nil {
		return err
	}
	e.deliver(ctx, acct.ID, "verification", func(ctx context.Context) error {
		return e.mailer.SendVerificationEmail(ctx, acct.Email, link)
	})
	return nil
}

func (e *Engine) verificationFailed(ctx context.Context, accountID string, err error) {
	if errors.Is(err, ErrTokenInvalid) {
		e.metricInc(MetricVerificationInvalid)
	}
	e.emitAudit(ctx, auditEventEmailVerified, false, accountID, err, nil)
}
