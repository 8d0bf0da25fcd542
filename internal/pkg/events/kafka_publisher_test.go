package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_PublishOutcome(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, topic: DefaultOutcomeTopic}

	err := p.PublishOutcome(context.Background(), webhook.PaymentOutcome{
		Provider:  "asaas",
		PaymentID: "pay_1",
		EventID:   "evt-1",
		Status:    "PAID",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "asaas:pay_1", string(msg.Key))
	assert.Equal(t, "evt-1", string(msg.Headers[0].Value))

	var decoded webhook.PaymentOutcome
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "PAID", decoded.Status)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("no leader")}, topic: "t"}

	err := p.PublishOutcome(context.Background(), webhook.PaymentOutcome{})
	assert.ErrorContains(t, err, "no leader")
}

func TestParseBrokers(t *testing.T) {
	assert.Empty(t, ParseBrokers(""))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ParseBrokers(" k1:9092, ,k2:9092 "))
}

func TestNewPublisherFromEnv_NoBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	_, ok := NewPublisherFromEnv().(NopPublisher)
	assert.True(t, ok)
}
