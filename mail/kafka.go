package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaMailer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the outbox producer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaMailer publishes deliveries to a Kafka topic, keyed by recipient so
// that mails to one address stay ordered.
type KafkaMailer struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaMailer dials nothing; the writer connects on first publish.
func NewKafkaMailer(cfg KafkaConfig, logger *slog.Logger) (*KafkaMailer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("mail: no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mail: kafka topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaMailerWithWriter(w, cfg.Topic, logger), nil
}

// NewKafkaMailerWithWriter wraps an existing writer.
func NewKafkaMailerWithWriter(w MessageWriter, topic string, logger *slog.Logger) *KafkaMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaMailer{writer: w, topic: topic, logger: logger.With("component", "mail"), now: time.Now}
}

func (m *KafkaMailer) SendVerificationEmail(ctx context.Context, to, link string) error {
	return m.publish(ctx, Message{Kind: KindVerification, To: to, Link: link})
}

func (m *KafkaMailer) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	return m.publish(ctx, Message{Kind: KindPasswordReset, To: to, Link: link})
}

// Close flushes pending writes.
func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}

func (m *KafkaMailer) publish(ctx context.Context, msg Message) error {
	msg.CreatedAt = m.now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to publish mail",
			slog.String("topic", m.topic),
			slog.String("kind", string(msg.Kind)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish mail to %s: %w", m.topic, err)
	}

	m.logger.DebugContext(ctx, "mail published", slog.String("kind", string(msg.Kind)))
	return nil
}
