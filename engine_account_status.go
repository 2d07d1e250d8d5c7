package folioAuth

import (
	"context"
)

// BanAccount sets the target account to banned. The actor must be an
// active admin other than the target.
func (e *Engine) BanAccount(ctx context.Context, actorID, targetID string) error {
	err := e.updateAccountStatus(ctx, actorID, targetID, StatusBanned)
	if err == nil {
		e.metricInc(MetricAccountBanned)
	}
	e.emitAudit(WithActorID(ctx, actorID), auditEventAccountStatusChange, err == nil, targetID, err, func() map[string]string {
		return map[string]string{
			"action": "ban",
		}
	})
	return err
}

// UnbanAccount restores the target account to active.
func (e *Engine) UnbanAccount(ctx context.Context, actorID, targetID string) error {
	err := e.updateAccountStatus(ctx, actorID, targetID, StatusActive)
	if err == nil {
		e.metricInc(MetricAccountUnbanned)
	}
	e.emitAudit(WithActorID(ctx, actorID), auditEventAccountStatusChange, err == nil, targetID, err, func() map[string]string {
		return map[string]string{
			"action": "unban",
		}
	})
	return err
}

// SetRole promotes or demotes the target account.
func (e *Engine) SetRole(ctx context.Context, actorID, targetID string, role Role) error {
	err := e.setRole(ctx, actorID, targetID, role)
	if err == nil {
		e.metricInc(MetricAccountRoleChanged)
	}
	e.emitAudit(WithActorID(ctx, actorID), auditEventAccountRoleChange, err == nil, targetID, err, func() map[string]string {
		return map[string]string{
			"role": string(role),
		}
	})
	return err
}

// DeleteAccount permanently removes the target account. Sessions held by
// the deleted account stop resolving at their next claim refresh.
func (e *Engine) DeleteAccount(ctx context.Context, actorID, targetID string) error {
	err := e.authorizeAdminAction(ctx, actorID, targetID)
	if err == nil {
		err = wrapStoreError(e.store.Delete(ctx, targetID))
	}
	if err == nil {
		e.metricInc(MetricAccountDeleted)
	}
	e.emitAudit(WithActorID(ctx, actorID), auditEventAccountDeleted, err == nil, targetID, err, nil)
	return err
}

func (e *Engine) updateAccountStatus(ctx context.Context, actorID, targetID string, status AccountStatus) error {
	if err := e.authorizeAdminAction(ctx, actorID, targetID); err != nil {
		return err
	}

	current, err := e.store.FindByID(ctx, targetID)
	if err != nil {
		return wrapStoreError(err)
	}
	if current.Status == status {
		return nil
	}

	return wrapStoreError(e.store.UpdateStatus(ctx, targetID, status, e.now()))
}

func (e *Engine) setRole(ctx context.Context, actorID, targetID string, role Role) error {
	if !role.Valid() {
		return ErrValidation
	}
	if err := e.authorizeAdminAction(ctx, actorID, targetID); err != nil {
		return err
	}

	current, err := e.store.FindByID(ctx, targetID)
	if err != nil {
		return wrapStoreError(err)
	}
	if current.Role == role {
		return nil
	}

	return wrapStoreError(e.store.UpdateRole(ctx, targetID, role, e.now()))
}

// authorizeAdminAction re-reads the actor from the store; claims alone are
// not trusted for administrative writes.
func (e *Engine) authorizeAdminAction(ctx context.Context, actorID, targetID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if targetID == "" {
		return ErrAccountNotFound
	}
	if actorID == targetID {
		return ErrForbidden
	}

	actor, err := e.store.FindByID(ctx, actorID)
	if err != nil {
		return wrapStoreError(err)
	}
	if actor.Status != StatusActive || actor.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Account returns the account record for id. Secrets are stripped.
func (e *Engine) Account(ctx context.Context, id string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	out := *acct
	out.PasswordHash = ""
	out.TwoFactorSecret = ""
	out.RefreshTokenDigest = ""
	out.Verification = nil
	out.Reset = nil
	return &out, nil
}
