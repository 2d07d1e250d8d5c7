package folioAuth

import "errors"

var (
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountBanned is an exported constant or variable used by the authentication engine.
	ErrAccountBanned = errors.New("account banned")
	// ErrAccountUnverified is an exported constant or variable used by the authentication engine.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrTwoFactorRequired is an exported constant or variable used by the authentication engine.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorInvalid is an exported constant or variable used by the authentication engine.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorNotEnrolled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotEnrolled = errors.New("two-factor enrollment not started")
	// ErrTwoFactorAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("validation failed")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrRegistrationDisabled is an exported constant or variable used by the authentication engine.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrForbidden is an exported constant or variable used by the authentication engine.
	ErrForbidden = errors.New("forbidden")
	// ErrProviderUnavailable is an exported constant or variable used by the authentication engine.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrUnauthenticated is returned by API guards when the request carries no session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FailureKind classifies an engine error for telemetry and transport mapping.
type FailureKind string

const (
	FailureNone                  FailureKind = ""
	FailureNotFound              FailureKind = "not_found"
	FailureBadCredentials        FailureKind = "bad_credentials"
	FailureBanned                FailureKind = "banned"
	FailureUnverified            FailureKind = "unverified"
	FailureTwoFactorRequired     FailureKind = "two_factor_required"
	FailureBadTwoFactor          FailureKind = "bad_two_factor"
	FailureInvalidOrExpiredToken FailureKind = "invalid_or_expired_token"
	FailureRateLimited           FailureKind = "rate_limited"
	FailureValidation            FailureKind = "validation_error"
	FailureStoreUnavailable      FailureKind = "store_unavailable"
	FailureConflict              FailureKind = "conflict"
	FailureForbidden             FailureKind = "forbidden"
	FailureUnauthenticated       FailureKind = "unauthenticated"
	FailureInternal              FailureKind = "internal"
)

var kindTable = []struct {
	err  error
	kind FailureKind
}{
	{ErrAccountNotFound, FailureNotFound},
	{ErrInvalidCredentials, FailureBadCredentials},
	{ErrAccountBanned, FailureBanned},
	{ErrAccountUnverified, FailureUnverified},
	{ErrTwoFactorRequired, FailureTwoFactorRequired},
	{ErrTwoFactorInvalid, FailureBadTwoFactor},
	{ErrTokenInvalid, FailureInvalidOrExpiredToken},
	{ErrRateLimited, FailureRateLimited},
	{ErrValidation, FailureValidation},
	{ErrPasswordPolicy, FailureValidation},
	{ErrTwoFactorNotEnrolled, FailureValidation},
	{ErrStoreUnavailable, FailureStoreUnavailable},
	{ErrAccountExists, FailureConflict},
	{ErrTwoFactorAlreadyEnabled, FailureConflict},
	{ErrRegistrationDisabled, FailureForbidden},
	{ErrForbidden, FailureForbidden},
	{ErrUnauthenticated, FailureUnauthenticated},
	{ErrProviderUnavailable, FailureStoreUnavailable},
}

// KindOf maps err onto the failure taxonomy. Unknown errors are FailureInternal.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return FailureInternal
}

// PublicMessage returns the user-safe message for a failure kind.
// NotFound and BadCredentials share one message.
func PublicMessage(kind FailureKind) string {
	switch kind {
	case FailureNone:
		return ""
	case FailureNotFound, FailureBadCredentials:
		return "invalid email or password"
	case FailureBanned:
		return "account suspended"
	case FailureUnverified:
		return "email address not verified"
	case FailureTwoFactorRequired:
		return "two-factor code required"
	case FailureBadTwoFactor:
		return "invalid two-factor code"
	case FailureInvalidOrExpiredToken:
		return "invalid or expired token"
	case FailureRateLimited:
		return "too many requests, try again later"
	case FailureValidation:
		return "invalid request"
	case FailureConflict:
		return "already exists"
	case FailureForbidden:
		return "forbidden"
	case FailureUnauthenticated:
		return "authentication required"
	default:
		return "service temporarily unavailable"
	}
}

// Terminal reports whether a failure kind ends the flow. TwoFactorRequired is
// a re-prompt signal, not a rejection.
func (k FailureKind) Terminal() bool {
	return k != FailureNone && k != FailureTwoFactorRequired
}
