package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
	kafka "github.com/segmentio/kafka-go"
)

const DefaultOutcomeTopic = "payments.outcomes"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes committed payment outcomes, keyed by provider and
// payment id so a payment's changes stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultOutcomeTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:            kafka.TCP(brokers...),
			Topic:           topic,
			Balancer:        &kafka.Hash{},
			RequiredAcks:    kafka.RequireOne,
			BatchTimeout:    10 * time.Millisecond,
			MaxAttempts:     3,
			WriteBackoffMin: 100 * time.Millisecond,
			WriteBackoffMax: time.Second,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, outcome webhook.PaymentOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("error marshaling outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(outcome.Provider + ":" + outcome.PaymentID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(outcome.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish outcome to topic '%s': %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops outcomes. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOutcome(context.Context, webhook.PaymentOutcome) error { return nil }

func (NopPublisher) Close() error { return nil }

// Publisher is an outcome publisher that owns a connection.
type Publisher interface {
	webhook.OutcomePublisher
	Close() error
}

// NewPublisherFromEnv returns a Kafka publisher for KAFKA_BROKERS, or a
// NopPublisher when it is empty.
func NewPublisherFromEnv() Publisher {
	brokers := ParseBrokers(env.GetEnv("KAFKA_BROKERS", ""))
	if len(brokers) == 0 {
		log.Info("[Events] KAFKA_BROKERS not set, payment outcomes are not published")
		return NopPublisher{}
	}
	topic := env.GetEnv("KAFKA_OUTCOME_TOPIC", DefaultOutcomeTopic)
	log.Infof("[Events] Publishing payment outcomes to %s on %s", topic, strings.Join(brokers, ","))
	return NewKafkaPublisher(brokers, topic)
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
