// Package mail delivers verification and password-reset links.
//
// [LogMailer] writes deliveries to a structured logger and is meant for
// development. [KafkaMailer] publishes each delivery to a Kafka topic that a
// separate notification service renders and sends.
package mail

import (
	"context"
	"log/slog"
	"time"
)

// Kind names the mail template.
type Kind string

const (
	KindVerification  Kind = "email_verification"
	KindPasswordReset Kind = "password_reset"
)

// Message is one outbound mail as published to the outbox.
type Message struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// LogMailer logs each delivery. Links carry single-use tokens, so they are
// only logged when RevealLinks is set.
type LogMailer struct {
	logger      *slog.Logger
	revealLinks bool
}

// NewLogMailer returns a LogMailer. Pass revealLinks=true only on local
// development servers.
func NewLogMailer(logger *slog.Logger, revealLinks bool) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger.With("component", "mail"), revealLinks: revealLinks}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, link string) error {
	m.log(ctx, KindVerification, to, link)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	m.log(ctx, KindPasswordReset, to, link)
	return nil
}

func (m *LogMailer) log(ctx context.Context, kind Kind, to, link string) {
	attrs := []any{slog.String("kind", string(kind)), slog.String("to", to)}
	if m.revealLinks {
		attrs = append(attrs, slog.String("link", link))
	}
	m.logger.InfoContext(ctx, "mail delivered", attrs...)
}
