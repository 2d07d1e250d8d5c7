package folioAuth

import (
	"context"
	"errors"
	"strings"
)

// EnrollTwoFactor generates a new shared secret for the account and stores
// it without enabling two-factor login. Calling it again before
// confirmation replaces the pending secret.
func (e *Engine) EnrollTwoFactor(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	if e == nil || e.store == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.activeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, uri, err := e.totp.Generate(acct.Email)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetTwoFactorSecret(ctx, acct.ID, secret, e.now()); err != nil {
		return nil, wrapStoreError(err)
	}

	qrCode, err := e.totp.QRCode(uri)
	if err != nil {
		e.logger.WarnContext(ctx, "render provisioning qr code failed", "account_id", acct.ID, "error", err)
	}

	e.metricInc(MetricTwoFactorEnrollStarted)
	e.emitAudit(ctx, auditEventTwoFactorEnroll, true, acct.ID, nil, nil)

	return &TwoFactorSetup{
		SharedSecret:    secret,
		ProvisioningURI: uri,
		QRCodeDataURL:   qrCode,
	}, nil
}

// ConfirmTwoFactor checks code against the pending secret and enables
// two-factor login. The enable is conditional on the secret the code was
// checked against still being the stored one.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, accountID, code string) error {
	if e == nil || e.store == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	acct, err := e.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if acct.TwoFactorSecret == "" {
		return ErrTwoFactorNotEnrolled
	}

	if err := e.checkTwoFactorCode(ctx, acct, code, "enrollment"); err != nil {
		return err
	}

	if err := e.store.EnableTwoFactor(ctx, acct.ID, acct.TwoFactorSecret, e.now()); err != nil {
		return wrapStoreError(err)
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, acct.ID, nil, nil)
	return nil
}

// checkTwoFactorCode spends one attempt from the account's budget, checks
// code against the stored secret and claims the matched time step so the
// same code is not accepted twice. A success clears the attempt budget.
func (e *Engine) checkTwoFactorCode(ctx context.Context, acct *Account, code, stage string) error {
	if err := e.checkRateFor(ctx, rateScopeTwoFactor, acct.ID); err != nil {
		return err
	}

	step, ok := e.totp.Verify(acct.TwoFactorSecret, strings.TrimSpace(code), e.now())
	if ok {
		err := e.store.ClaimTwoFactorStep(ctx, acct.ID, step, e.now())
		switch {
		case err == nil:
			e.resetRate(ctx, rateScopeTwoFactor, acct.ID)
			return nil
		case !errors.Is(err, ErrTwoFactorInvalid):
			return wrapStoreError(err)
		}
		stage += "_replay"
	}

	e.metricInc(MetricTwoFactorFailure)
	e.emitAudit(ctx, auditEventTwoFactorFailure, false, acct.ID, ErrTwoFactorInvalid, func() map[string]string {
		return map[string]string{"stage": stage}
	})
	return ErrTwoFactorInvalid
}

func (e *Engine) activeAccount(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound
	}
	acct, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	if acct.Status == StatusBanned {
		return nil, ErrAccountBanned
	}
	return acct, nil
}

// TwoFactorStatus reports whether two-factor login is enabled for the account.
func (e *Engine) TwoFactorStatus(ctx context.Context, accountID string) (bool, error) {
	acct, err := e.activeAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acct.TwoFactorEnabled, nil
}
