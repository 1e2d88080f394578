// Package producer provides Kafka producer functionality for alert lifecycle events.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"orion/internal/events"

	"github.com/segmentio/kafka-go"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// messageWriter is the subset of *kafka.Writer used by the producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes alert.generated and alert.acknowledged events.
type Producer struct {
	writer messageWriter
	topic  string
}

// ParseBrokers parses a comma-separated broker list and trims whitespace.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// ValidateProducerParams validates producer parameters.
func ValidateProducerParams(brokers, topic string) error {
	if brokers == "" {
		return fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// NewProducer creates a new Kafka producer with the specified brokers and topic.
// The producer is configured for at-least-once delivery semantics with synchronous writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Best effort; publishing still works if the topic is auto-created or provisioned elsewhere.
	createTopicIfNotExists(brokerList[0], topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Key-based partitioning: one tenant stays on one partition
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"write_timeout", writeTimeout,
		"required_acks", "RequireOne",
		"async", false,
		"partition_key", "tenant_id (hashed)",
	)

	return &Producer{writer: writer, topic: topic}, nil
}

// PublishGenerated publishes an alert.generated event keyed by tenant.
func (p *Producer) PublishGenerated(ctx context.Context, e *events.AlertGenerated) error {
	return p.publish(ctx, e.TenantID, e.AlertID, e.EventType, time.Unix(e.CreatedAt, 0), e)
}

// PublishAcknowledged publishes an alert.acknowledged event keyed by tenant.
func (p *Producer) PublishAcknowledged(ctx context.Context, e *events.AlertAcknowledged) error {
	return p.publish(ctx, e.TenantID, e.AlertID, e.EventType, time.Unix(e.AcknowledgedAt, 0), e)
}

func (p *Producer) publish(ctx context.Context, tenantID, alertID, eventType string, at time.Time, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(tenantID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(strconv.Itoa(events.SchemaVersion))},
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "alert_id", Value: []byte(alertID)},
		},
		Time: at,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"alert_id", alertID,
			"event_type", eventType,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published alert event",
		"alert_id", alertID,
		"tenant_id", tenantID,
		"event_type", eventType,
	)
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}

// createTopicIfNotExists attempts to create the topic when it is missing.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
			"note", "Topic may need to be created manually",
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(partitions))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", 3)
}
