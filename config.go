package folioAuth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config defines a public type used by folioAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Password  PasswordConfig
	Tokens    TokenConfig
	TOTP      TOTPConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Account   AccountConfig
	Links     LinkConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls bcrypt hashing.
type PasswordConfig struct {
	Cost int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets the lifetime of single-use tokens.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls two-factor code generation and validation.
type TOTPConfig struct {
	Issuer string
	Period uint
	Skew   uint
	Digits int
	// QRCodeSize is the PNG edge length in pixels; 0 disables QR output.
	QRCodeSize int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the signed session token and its cookie.
type SessionConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	TTL           time.Duration
	Leeway        time.Duration
	CookieName    string
	CookieSecure  bool
	CookieDomain  string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitRule is a fixed-window budget.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig controls the per-IP limits on token-issuing endpoints and
// the per-account limit on two-factor code attempts. FailOpen lets requests
// through when the counter store is unreachable.
type RateLimitConfig struct {
	Enabled            bool
	FailOpen           bool
	KeyPrefix          string
	Register           RateLimitRule
	ForgotPassword     RateLimitRule
	ResendVerification RateLimitRule
	TwoFactor          RateLimitRule
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration.
type AccountConfig struct {
	// RegistrationEnabled=false still admits the bootstrap (first) account.
	RegistrationEnabled bool
}

// LinkConfig builds the links sent by email.
type LinkConfig struct {
	BaseURL           string
	VerifyEmailPath   string
	ResetPasswordPath string
}

// AuditConfig defines a public type used by folioAuth APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by folioAuth APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Session keys must still be
// supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Cost: 12,
		},
		Tokens: TokenConfig{
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:     "folioAuth",
			Period:     30,
			Skew:       1,
			Digits:     6,
			QRCodeSize: 200,
		},
		Session: SessionConfig{
			SigningMethod: "hs256",
			Issuer:        "folioauth",
			TTL:           30 * 24 * time.Hour,
			Leeway:        30 * time.Second,
			CookieName:    "folio_session",
			CookieSecure:  true,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			FailOpen:           true,
			KeyPrefix:          "rl",
			Register:           RateLimitRule{Limit: 5, Window: time.Hour},
			ForgotPassword:     RateLimitRule{Limit: 5, Window: 15 * time.Minute},
			ResendVerification: RateLimitRule{Limit: 3, Window: 15 * time.Minute},
			TwoFactor:          RateLimitRule{Limit: 5, Window: 15 * time.Minute},
		},
		Account: AccountConfig{
			RegistrationEnabled: true,
		},
		Links: LinkConfig{
			BaseURL:           "http://localhost:8080",
			VerifyEmailPath:   "/verify-email",
			ResetPasswordPath: "/reset-password",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate returns the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// Password
	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return errors.New("Password Cost must be within bcrypt bounds")
	}

	// Tokens
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be <= 2")
	}
	if c.TOTP.QRCodeSize < 0 {
		return errors.New("TOTP QRCodeSize must be >= 0")
	}

	// Session
	switch c.Session.SigningMethod {
	case "hs256":
		if len(c.Session.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Session.PrivateKey) == 0 || len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Session signing method")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.Leeway < 0 {
		return errors.New("Session Leeway must be >= 0")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must not be empty")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		for name, rule := range map[string]RateLimitRule{
			"Register":           c.RateLimit.Register,
			"ForgotPassword":     c.RateLimit.ForgotPassword,
			"ResendVerification": c.RateLimit.ResendVerification,
			"TwoFactor":          c.RateLimit.TwoFactor,
		} {
			if rule.Limit <= 0 || rule.Window <= 0 {
				return errors.New("RateLimit " + name + " must have Limit > 0 and Window > 0")
			}
		}
		if c.RateLimit.KeyPrefix == "" {
			return errors.New("RateLimit KeyPrefix must not be empty")
		}
	}

	// Links
	u, err := url.Parse(c.Links.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Links BaseURL must be an absolute URL")
	}
	if !strings.HasPrefix(c.Links.VerifyEmailPath, "/") || !strings.HasPrefix(c.Links.ResetPasswordPath, "/") {
		return errors.New("Links paths must start with /")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
