package internaldefs

import (
	folioAuth "github.com/MrEthical07/folioAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   folioAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   folioAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events dropped under
// backpressure. It is read from the engine, not from the snapshot.
const (
	AuditDroppedName = "folioauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: folioAuth.MetricLoginSuccess, Name: "folioauth_login_success_total", Help: "Successful credential logins."},
	{ID: folioAuth.MetricLoginFailure, Name: "folioauth_login_failure_total", Help: "Failed credential logins."},
	{ID: folioAuth.MetricLoginTwoFactorRequired, Name: "folioauth_login_two_factor_required_total", Help: "Credential logins that need a second factor."},
	{ID: folioAuth.MetricLoginBanned, Name: "folioauth_login_banned_total", Help: "Logins rejected for banned accounts."},
	{ID: folioAuth.MetricLoginUnverified, Name: "folioauth_login_unverified_total", Help: "Logins rejected for unverified accounts."},
	{ID: folioAuth.MetricRegisterSuccess, Name: "folioauth_register_success_total", Help: "Successful registrations."},
	{ID: folioAuth.MetricRegisterDuplicate, Name: "folioauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: folioAuth.MetricRegisterRateLimited, Name: "folioauth_register_rate_limited_total", Help: "Rate-limited registrations."},
	{ID: folioAuth.MetricAdminBootstrap, Name: "folioauth_admin_bootstrap_total", Help: "First-account admin bootstraps."},
	{ID: folioAuth.MetricVerificationIssued, Name: "folioauth_verification_issued_total", Help: "Issued email verification tokens."},
	{ID: folioAuth.MetricEmailVerified, Name: "folioauth_email_verified_total", Help: "Consumed email verification tokens."},
	{ID: folioAuth.MetricVerificationInvalid, Name: "folioauth_verification_invalid_total", Help: "Rejected email verification tokens."},
	{ID: folioAuth.MetricResetRequested, Name: "folioauth_reset_requested_total", Help: "Forgot-password requests."},
	{ID: folioAuth.MetricResetIssued, Name: "folioauth_reset_issued_total", Help: "Issued password reset tokens."},
	{ID: folioAuth.MetricResetSuccess, Name: "folioauth_reset_success_total", Help: "Completed password resets."},
	{ID: folioAuth.MetricResetInvalid, Name: "folioauth_reset_invalid_total", Help: "Rejected password reset tokens."},
	{ID: folioAuth.MetricTwoFactorEnrollStarted, Name: "folioauth_two_factor_enroll_started_total", Help: "Started two-factor enrollments."},
	{ID: folioAuth.MetricTwoFactorEnabled, Name: "folioauth_two_factor_enabled_total", Help: "Confirmed two-factor enrollments."},
	{ID: folioAuth.MetricTwoFactorFailure, Name: "folioauth_two_factor_failure_total", Help: "Rejected two-factor codes."},
	{ID: folioAuth.MetricOAuthAccountCreated, Name: "folioauth_oauth_account_created_total", Help: "Accounts created from external identities."},
	{ID: folioAuth.MetricOAuthLinkSuccess, Name: "folioauth_oauth_link_success_total", Help: "External sign-ins linked to an account."},
	{ID: folioAuth.MetricOAuthLinkBanned, Name: "folioauth_oauth_link_banned_total", Help: "External sign-ins rejected for banned accounts."},
	{ID: folioAuth.MetricRateLimitHit, Name: "folioauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: folioAuth.MetricRateLimitFailOpen, Name: "folioauth_rate_limit_fail_open_total", Help: "Rate-limit checks allowed because the counter store was unavailable."},
	{ID: folioAuth.MetricClaimsRefreshed, Name: "folioauth_claims_refreshed_total", Help: "Session claims re-read from the account store."},
	{ID: folioAuth.MetricClaimsRevoked, Name: "folioauth_claims_revoked_total", Help: "Session claims dropped because the account no longer exists."},
	{ID: folioAuth.MetricAccountBanned, Name: "folioauth_account_banned_total", Help: "Account ban operations."},
	{ID: folioAuth.MetricAccountUnbanned, Name: "folioauth_account_unbanned_total", Help: "Account unban operations."},
	{ID: folioAuth.MetricAccountRoleChanged, Name: "folioauth_account_role_changed_total", Help: "Account role changes."},
	{ID: folioAuth.MetricAccountDeleted, Name: "folioauth_account_deleted_total", Help: "Account delete operations."},
	{ID: folioAuth.MetricMailFailure, Name: "folioauth_mail_failure_total", Help: "Failed out-of-band email deliveries."}}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: folioAuth.MetricAuthenticateLatency, Name: "folioauth_authenticate_latency_seconds", Help: "Credential authentication latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for everything above the last bound.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
