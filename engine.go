package folioAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/folioAuth/internal/audit"
	"github.com/MrEthical07/folioAuth/internal/rate"
	"github.com/MrEthical07/folioAuth/jwt"
	"github.com/MrEthical07/folioAuth/password"
)

const (
	rateScopeRegister           = "register"
	rateScopeForgotPassword     = "forgot_password"
	rateScopeResendVerification = "resend_verification"
	rateScopeTwoFactor          = "two_factor"

	mailTimeout = 30 * time.Second
)

// Engine is the account authentication core. It is safe for concurrent use
// after [Builder.Build].
type Engine struct {
	config   Config
	store    AccountStore
	mailer   Mailer
	hasher   *password.Bcrypt
	totp     *totpManager
	tokens   *tokenLifecycle
	limiter  *rate.Limiter
	sessions *jwt.Manager
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time

	deliveries sync.WaitGroup
}

// Close waits for in-flight mail deliveries and flushes the audit
// dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.deliveries.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionConfig returns the session cookie and token settings.
func (e *Engine) SessionConfig() SessionConfig {
	return e.config.Session
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// checkRate applies the per-IP limit for scope.
func (e *Engine) checkRate(ctx context.Context, scope string) error {
	return e.checkRateFor(ctx, scope, clientIPFromContext(ctx))
}

// checkRateFor applies the limit for scope to key. When the counter store is
// down the request is allowed if FailOpen is set.
func (e *Engine) checkRateFor(ctx context.Context, scope, key string) error {
	if e.limiter == nil {
		return nil
	}

	err := e.limiter.Allow(ctx, scope, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, scope)
		return ErrRateLimited
	case e.config.RateLimit.FailOpen:
		e.metricInc(MetricRateLimitFailOpen)
		e.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "scope", scope, "error", err)
		return nil
	default:
		return fmt.Errorf("%w: rate limiter: %v", ErrStoreUnavailable, err)
	}
}

// resetRate clears the window for scope and key after a success.
func (e *Engine) resetRate(ctx context.Context, scope, key string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Reset(ctx, scope, key); err != nil {
		e.logger.WarnContext(ctx, "reset rate limit failed", "scope", scope, "error", err)
	}
}

// deliver sends mail off the request path so the response time does not
// depend on whether an address is known. Close waits for pending sends.
func (e *Engine) deliver(ctx context.Context, accountID, what string, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	e.deliveries.Add(1)
	go func() {
		defer e.deliveries.Done()
		ctx, cancel := context.WithTimeout(ctx, mailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			e.metricInc(MetricMailFailure)
			e.logger.ErrorContext(ctx, "send "+what+" email failed", "account_id", accountID, "error", err)
		}
	}()
}

func (e *Engine) link(path, token string) string {
	q := url.Values{}
	q.Set("token", token)
	return strings.TrimRight(e.config.Links.BaseURL, "/") + path + "?" + q.Encode()
}

// normalizeEmail lower-cases and trims an address. It returns "" for input
// that cannot be an address.
func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return ""
	}
	return email
}

// wrapStoreError keeps known store sentinels and folds everything else into
// ErrStoreUnavailable.
func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrAccountNotFound,
		ErrAccountExists,
		ErrStoreUnavailable,
		ErrTwoFactorNotEnrolled,
		ErrTwoFactorInvalid,
		ErrRegistrationDisabled,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func principalFrom(acct *Account) *Principal {
	return &Principal{
		ID:        acct.ID,
		Email:     acct.Email,
		Name:      acct.Name,
		Role:      acct.Role,
		Status:    acct.Status,
		AvatarURL: acct.AvatarURL,
	}
}
