package folioAuth

import (
	"context"
)

const (
	auditEventRegister             = "register"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventTwoFactorRequired    = "two_factor_required"
	auditEventVerificationIssued   = "email_verification_issued"
	auditEventEmailVerified        = "email_verification_confirm"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventTwoFactorEnroll      = "two_factor_enroll"
	auditEventTwoFactorEnabled     = "two_factor_enabled"
	auditEventTwoFactorFailure     = "two_factor_failure"
	auditEventExternalSignIn       = "external_sign_in"
	auditEventAccountStatusChange  = "account_status_change"
	auditEventAccountRoleChange    = "account_role_change"
	auditEventAccountDeleted       = "account_deleted"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		ActorID:   actorIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = string(KindOf(err))
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}
