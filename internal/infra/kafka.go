package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stakehouse/platform/internal/domain"
)

// EventTopic returns the topic an aggregate's events are published on. One
// topic per aggregate keeps per-entity ordering via the partition key.
func EventTopic(aggregate domain.AggregateType) string {
	return "stakehouse." + string(aggregate) + ".events"
}

// EventTopics lists every topic the outbox publishes to.
func EventTopics() []string {
	aggregates := []domain.AggregateType{
		domain.AggregateSession,
		domain.AggregatePlayer,
		domain.AggregateGame,
		domain.AggregateRandomness,
		domain.AggregateBreaker,
	}
	topics := make([]string, len(aggregates))
	for i, a := range aggregates {
		topics[i] = EventTopic(a)
	}
	return topics
}

// KafkaProducer publishes outbox events, routing each to its aggregate topic.
type KafkaProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewKafkaProducer creates a Kafka producer. If brokers is empty or disabled, writes are no-ops.
func NewKafkaProducer(brokers string, enabled bool, logger *slog.Logger) *KafkaProducer {
	if !enabled || brokers == "" {
		logger.Info("kafka producer disabled")
		return &KafkaProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Balancer: &kafka.LeastBytes{},
		// Ledger events are the audit trail; wait for the full ISR.
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}

	logger.Info("kafka producer initialized", "brokers", brokers)
	return &KafkaProducer{writer: w, logger: logger, enabled: true}
}

// PublishEvent sends one outbox row to its aggregate topic, keyed by the
// row's partition key so events for one entity stay ordered. No-op if disabled.
func (p *KafkaProducer) PublishEvent(ctx context.Context, row domain.OutboxRow) error {
	if !p.enabled {
		return nil
	}

	value, err := json.Marshal(row.OutboxDraft)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", row.EventID, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: EventTopic(row.AggregateType),
		Key:   []byte(row.PartitionKey),
		Value: value,
	})
}

// Close shuts down the Kafka writer.
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// KafkaConsumer wraps a kafka-go reader for consuming messages.
type KafkaConsumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	enabled bool
}

// NewKafkaConsumer creates a Kafka consumer for the given topic and group.
func NewKafkaConsumer(brokers, topic, groupID string, enabled bool, logger *slog.Logger) *KafkaConsumer {
	if !enabled || brokers == "" {
		return &KafkaConsumer{enabled: false, logger: logger}
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &KafkaConsumer{reader: r, logger: logger, enabled: true}
}

// ReadMessage reads the next message from the consumer. Blocks until a message is available.
func (c *KafkaConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return c.reader.ReadMessage(ctx)
}

// Close shuts down the Kafka reader.
func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
