package folioAuth

import (
	"context"
	"errors"
	"strings"
)

// LinkExternalIdentity reconciles an identity asserted by an OAuth provider
// with a local account.
//
// Unknown emails get a new verified, active account; the first account in
// the store becomes the admin. Banned accounts are rejected with
// ErrAccountBanned. For existing accounts a changed avatar URL is stored;
// failure to store it does not fail the sign-in.
func (e *Engine) LinkExternalIdentity(ctx context.Context, id ExternalIdentity) (*Principal, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, ErrValidation
	}
	provider := strings.ToLower(strings.TrimSpace(id.Provider))

	acct, err := e.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		acct, err = e.createExternalAccount(ctx, email, provider, id)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, wrapStoreError(err)
	default:
		if acct.Status == StatusBanned {
			e.metricInc(MetricOAuthLinkBanned)
			e.emitAudit(ctx, auditEventExternalSignIn, false, acct.ID, ErrAccountBanned, func() map[string]string {
				return map[string]string{"provider": provider}
			})
			return nil, ErrAccountBanned
		}
		e.refreshAvatar(ctx, acct, id.AvatarURL)
	}

	e.metricInc(MetricOAuthLinkSuccess)
	e.emitAudit(ctx, auditEventExternalSignIn, true, acct.ID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	p := principalFrom(acct)
	p.AccessToken = id.AccessToken
	return p, nil
}

func (e *Engine) createExternalAccount(ctx context.Context, email, provider string, id ExternalIdentity) (*Account, error) {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	acct, err := e.store.Create(ctx, CreateAccountInput{
		Email:         email,
		Name:          name,
		EmailVerified: true,
		AvatarURL:     strings.TrimSpace(id.AvatarURL),
		Provider:      provider,
		Now:           e.now(),
	})
	if errors.Is(err, ErrAccountExists) {
		// Lost a create race with a concurrent sign-in for the same email.
		acct, err = e.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, wrapStoreError(err)
		}
		if acct.Status == StatusBanned {
			return nil, ErrAccountBanned
		}
		return acct, nil
	}
	if err != nil {
		return nil, wrapStoreError(err)
	}

	e.metricInc(MetricOAuthAccountCreated)
	if acct.Role == RoleAdmin {
		e.metricInc(MetricAdminBootstrap)
		e.logger.InfoContext(ctx, "bootstrap admin account created", "account_id", acct.ID, "provider", provider)
	}
	return acct, nil
}

func (e *Engine) refreshAvatar(ctx context.Context, acct *Account, avatarURL string) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL == "" || avatarURL == acct.AvatarURL {
		return
	}
	if err := e.store.UpdateAvatar(ctx, acct.ID, avatarURL, e.now()); err != nil {
		e.logger.WarnContext(ctx, "update avatar failed", "account_id", acct.ID, "error", err)
		return
	}
	acct.AvatarURL = avatarURL
}
