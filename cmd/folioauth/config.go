package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	folioAuth "github.com/MrEthical07/folioAuth"
)

const envPrefix = "FOLIO_"

// processConfig is read from FOLIO_* environment variables.
type processConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	// Empty disables rate limiting.
	RedisURL string `env:"REDIS_URL"`

	BcryptCost          int    `env:"BCRYPT_COST" envDefault:"12"`
	PublicBaseURL       string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	RegistrationEnabled bool   `env:"REGISTRATION_ENABLED" envDefault:"true"`
	TOTPIssuer          string `env:"TOTP_ISSUER" envDefault:"folioAuth"`

	SessionSigningMethod string        `env:"SESSION_SIGNING_METHOD" envDefault:"hs256"`
	SessionSecret        string        `env:"SESSION_SECRET"`
	SessionPrivateKey    string        `env:"SESSION_PRIVATE_KEY_FILE,file"`
	SessionPublicKey     string        `env:"SESSION_PUBLIC_KEY_FILE,file"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecure         bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain         string        `env:"COOKIE_DOMAIN"`

	RateLimitFailOpen bool `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	MailTransport   string   `env:"MAIL_TRANSPORT" envDefault:"log"`
	MailRevealLinks bool     `env:"MAIL_REVEAL_LINKS" envDefault:"false"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	MailTopic       string   `env:"MAIL_TOPIC" envDefault:"folioauth.mail"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled   bool `env:"AUDIT_ENABLED" envDefault:"true"`
}

func loadConfig() (*processConfig, error) {
	return parseConfig(env.Options{Prefix: envPrefix})
}

func parseConfig(opts env.Options) (*processConfig, error) {
	cfg := &processConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *processConfig) check() error {
	switch c.MailTransport {
	case "log":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return errors.New("FOLIO_KAFKA_BROKERS is required when FOLIO_MAIL_TRANSPORT=kafka")
		}
	default:
		return fmt.Errorf("unknown mail transport %q", c.MailTransport)
	}
	if c.Environment != "development" && c.MailRevealLinks {
		return errors.New("FOLIO_MAIL_REVEAL_LINKS is only allowed in development")
	}
	return nil
}

// engineConfig maps the process settings onto the library config.
func (c *processConfig) engineConfig() folioAuth.Config {
	cfg := folioAuth.DefaultConfig()
	cfg.Password.Cost = c.BcryptCost
	cfg.TOTP.Issuer = c.TOTPIssuer
	cfg.Account.RegistrationEnabled = c.RegistrationEnabled
	cfg.Links.BaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	cfg.Session.SigningMethod = c.SessionSigningMethod
	cfg.Session.TTL = c.SessionTTL
	cfg.Session.CookieSecure = c.CookieSecure
	cfg.Session.CookieDomain = c.CookieDomain
	if c.SessionSigningMethod == "ed25519" {
		cfg.Session.PrivateKey = []byte(c.SessionPrivateKey)
		cfg.Session.PublicKey = []byte(c.SessionPublicKey)
	} else {
		cfg.Session.PrivateKey = []byte(c.SessionSecret)
	}

	cfg.RateLimit.FailOpen = c.RateLimitFailOpen
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})
	return slog.New(h).With(slog.String("service", "folioauth"))
}
