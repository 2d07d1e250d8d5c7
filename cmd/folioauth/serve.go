package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/httpapi"
	"github.com/MrEthical07/folioAuth/mail"
	promexport "github.com/MrEthical07/folioAuth/metrics/export/prometheus"
	"github.com/MrEthical07/folioAuth/oauth"
	"github.com/MrEthical07/folioAuth/store/postgres"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stdout, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")
	return cmd
}

type closer struct {
	name string
	fn   func() error
}

func serve(ctx context.Context, cfg *processConfig, logger *slog.Logger, migrate bool) error {
	if cfg.DatabaseURL == "" {
		return errors.New("FOLIO_DATABASE_URL is required")
	}

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				logger.Error("close failed", slog.String("component", closers[i].name), slog.String("error", err.Error()))
			}
		}
	}()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"postgres", func() error { pool.Close(); return nil }})
	logger.Info("connected to postgres")

	if migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("database migrations completed")
	}

	engineCfg := cfg.engineConfig()
	for _, w := range engineCfg.Lint() {
		logger.Warn("config lint", slog.String("code", w.Code), slog.String("severity", w.Severity.String()), slog.String("message", w.Message))
	}

	builder := folioAuth.New().
		WithConfig(engineCfg).
		WithAccountStore(postgres.New(pool)).
		WithLogger(logger)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		closers = append(closers, closer{"redis", rdb.Close})
		builder = builder.WithRedis(rdb)
	}

	mailer, closeMailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}
	if closeMailer != nil {
		closers = append(closers, closer{"mailer", closeMailer})
	}
	builder = builder.WithMailer(mailer)

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	closers = append(closers, closer{"engine", func() error { engine.Close(); return nil }})

	opts := httpapi.Options{
		Engine:            engine,
		OAuth:             newOAuthClient(cfg, logger),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            logger,
	}
	if cfg.MetricsEnabled {
		h, err := promexport.Handler(promexport.NewCollector(engine))
		if err != nil {
			return fmt.Errorf("metrics handler: %w", err)
		}
		opts.Metrics = h
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(opts),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func openPool(ctx context.Context, cfg *processConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = cfg.DBMaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func newMailer(cfg *processConfig, logger *slog.Logger) (folioAuth.Mailer, func() error, error) {
	if cfg.MailTransport == "kafka" {
		m, err := mail.NewKafkaMailer(mail.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.MailTopic}, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
	if cfg.MailRevealLinks {
		logger.Warn("mail links are written to the log")
	}
	return mail.NewLogMailer(logger, cfg.MailRevealLinks), nil, nil
}

// newOAuthClient returns nil when no provider is configured, which leaves
// the /oauth routes unmounted.
func newOAuthClient(cfg *processConfig, logger *slog.Logger) *oauth.Client {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	var providers []*oauth.Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, oauth.Google(cfg.GoogleClientID, cfg.GoogleClientSecret, base+"/oauth/google/callback"))
	}
	if cfg.GitHubClientID != "" {
		providers = append(providers, oauth.GitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, base+"/oauth/github/callback"))
	}
	if len(providers) == 0 {
		return nil
	}
	return oauth.NewClient(oauth.Config{CookieSecure: cfg.CookieSecure}, logger, providers...)
}
