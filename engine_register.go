package folioAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/folioAuth/password"
)

const maxNameLength = 100

// Register creates a password account.
//
// The first account in an empty store becomes the admin and is marked
// verified immediately. Every other account is created unverified and
// receives a verification link. Register fails with ErrRateLimited,
// ErrValidation, ErrPasswordPolicy, ErrRegistrationDisabled,
// ErrAccountExists or ErrStoreUnavailable.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkRate(ctx, rateScopeRegister); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricRegisterRateLimited)
		}
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || len([]rune(name)) > maxNameLength || email == "" {
		return nil, ErrValidation
	}
	if err := password.CheckPolicy(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	closed := !e.config.Account.RegistrationEnabled
	if closed {
		// Early out before hashing. Create repeats the check under its lock.
		count, err := e.store.Count(ctx)
		if err != nil {
			return nil, wrapStoreError(err)
		}
		if count > 0 {
			return nil, ErrRegistrationDisabled
		}
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	now := e.now()
	acct, err := e.store.Create(ctx, CreateAccountInput{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		VerifyIfFirst: true,
		OnlyIfEmpty:   closed,
		Now:           now,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditEventRegister, false, "", err, nil)
		return nil, wrapStoreError(err)
	}

	result := &RegisterResult{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
	}

	if acct.Role == RoleAdmin {
		result.AdminBootstrap = true
		e.metricInc(MetricAdminBootstrap)
		e.logger.InfoContext(ctx, "bootstrap admin account created", "account_id", acct.ID)
	} else {
		sent, err := e.sendVerification(ctx, acct)
		if err != nil {
			return nil, err
		}
		result.VerificationSent = sent
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acct.ID, nil, func() map[string]string {
		return map[string]string{"role": string(acct.Role)}
	})
	return result, nil
}

// sendVerification issues a verification token and mails the link. A mail
// failure is logged and reported as sent=false; the account can request a
// new link.
func (e *Engine) sendVerification(ctx context.Context, acct *Account) (bool, error) {
	link, err := e.issueVerification(ctx, acct)
	if err != nil {
		return false, err
	}
	if err := e.mailer.SendVerificationEmail(ctx, acct.Email, link); err != nil {
		e.metricInc(MetricMailFailure)
		e.logger.ErrorContext(ctx, "send verification email failed", "account_id", acct.ID, "error", err)
		return false, nil
	}
	return true, nil
}

func (e *Engine) issueVerification(ctx context.Context, acct *Account) (string, error) {
	raw, err := e.tokens.issue(ctx, TokenVerification, acct.ID, e.config.Tokens.VerificationTTL, e.now())
	if err != nil {
		return "", err
	}
	e.metricInc(MetricVerificationIssued)
	e.emitAudit(ctx, auditEventVerificationIssued, true, acct.ID, nil, nil)
	return e.link(e.config.Links.VerifyEmailPath, raw), nil
}
