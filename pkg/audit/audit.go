// Package audit publishes the attendance audit trail (credential issuance,
// check-ins) to Kafka. Auditing is best-effort by contract: a publish failure
// is logged by callers and never fails the triggering operation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EntryQRGenerated = "QR_GENERATED"
	EntryCheckIn     = "CHECKIN"
)

type Entry struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	EventID   string            `json:"event_id"`
	UserID    string            `json:"user_id,omitempty"`
	At        time.Time         `json:"at"`
	Details   map[string]string `json:"details,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher writing to the given topic. Messages
// are keyed by session id so all entries for one session land on the same
// partition, in order.
func NewKafkaPublisher(brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
	}

	return &kafkaPublisher{writer: writer}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.SessionID),
		Value: value,
		Time:  entry.At,
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards entries. Used when no brokers are configured and in
// tests that don't care about auditing.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, entry Entry) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
