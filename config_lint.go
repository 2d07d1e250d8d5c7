package folioAuth

import "time"

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a configuration that validates but is risky in production.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast returns the warnings with severity >= min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that pass Validate but weaken the deployment. It
// never fails; callers decide whether to log or refuse to start.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintHigh, "registration and reset endpoints are not rate limited")
	} else if c.RateLimit.FailOpen {
		add("rate_limit_fail_open", LintInfo, "requests are allowed while the rate limit store is unreachable")
	}
	if !c.Session.CookieSecure {
		add("cookie_insecure", LintHigh, "session cookie is sent over plain HTTP")
	}
	if c.Session.TTL > 30*24*time.Hour {
		add("session_ttl_long", LintWarn, "session tokens live longer than 30 days")
	}
	if c.Session.Leeway > time.Minute {
		add("leeway_large", LintWarn, "session clock leeway exceeds one minute")
	}
	if c.Tokens.ResetTTL > 2*time.Hour {
		add("reset_ttl_long", LintWarn, "password reset links live longer than two hours")
	}
	if c.Tokens.VerificationTTL > 72*time.Hour {
		add("verification_ttl_long", LintInfo, "verification links live longer than three days")
	}
	if c.TOTP.Skew > 1 {
		add("totp_skew_wide", LintWarn, "two-factor codes are accepted more than one period off")
	}
	if c.Password.Cost < 12 {
		add("bcrypt_cost_low", LintWarn, "bcrypt cost is below 12")
	}
	if len(c.Links.BaseURL) >= 7 && c.Links.BaseURL[:7] == "http://" {
		add("links_plain_http", LintWarn, "emailed links use plain HTTP")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not recorded")
	}

	return ws
}
