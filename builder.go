package folioAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/folioAuth/internal/audit"
	"github.com/MrEthical07/folioAuth/internal/rate"
	"github.com/MrEthical07/folioAuth/jwt"
	"github.com/MrEthical07/folioAuth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine].
//
// Builder instances are single-use: Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     AccountStore
	mailer    Mailer
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig copies cfg; later mutation of the caller's slices has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for rate limit counters. Without it rate
// limiting is disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account persistence backend. It is required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the out-of-band link delivery.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink enables asynchronous audit delivery to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authentication latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store is required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer is required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "folioauth")

	hasher, err := password.NewBcrypt(password.Config{Cost: b.config.Password.Cost})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	sessions, err := jwt.NewManager(jwt.Config{
		TTL:           b.config.Session.TTL,
		SigningMethod: jwt.SigningMethod(b.config.Session.SigningMethod),
		PrivateKey:    b.config.Session.PrivateKey,
		PublicKey:     b.config.Session.PublicKey,
		Issuer:        b.config.Session.Issuer,
		Audience:      b.config.Session.Audience,
		Leeway:        b.config.Session.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	var limiter *rate.Limiter
	if b.config.RateLimit.Enabled {
		if b.redis == nil {
			logger.Warn("rate limiting disabled: no redis client configured")
		} else {
			limiter = rate.New(b.redis, rate.Config{
				Prefix: b.config.RateLimit.KeyPrefix,
				Rules: map[string]rate.Rule{
					rateScopeRegister:           toRateRule(b.config.RateLimit.Register),
					rateScopeForgotPassword:     toRateRule(b.config.RateLimit.ForgotPassword),
					rateScopeResendVerification: toRateRule(b.config.RateLimit.ResendVerification),
					rateScopeTwoFactor:          toRateRule(b.config.RateLimit.TwoFactor),
				},
			})
		}
	}

	var dispatcher *internalaudit.Dispatcher
	if b.config.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NewLogSink(logger)
		}
		dispatcher = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    true,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink)
	}

	b.built = true

	return &Engine{
		config:   cloneConfig(b.config),
		store:    b.store,
		mailer:   b.mailer,
		hasher:   hasher,
		totp:     newTOTPManager(b.config.TOTP),
		tokens:   &tokenLifecycle{store: b.store},
		limiter:  limiter,
		sessions: sessions,
		audit:    dispatcher,
		metrics:  NewMetrics(b.config.Metrics),
		logger:   logger,
		now:      time.Now,
	}, nil
}

func toRateRule(r RateLimitRule) rate.Rule {
	return rate.Rule{Limit: r.Limit, Window: r.Window}
}
