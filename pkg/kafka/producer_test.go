package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewProducer(context.Background(), &ProducerConfig{})
	assert.Error(t, err)
}

func TestNewProducer_UnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewProducer(ctx, &ProducerConfig{
		Brokers:       []string{"127.0.0.1:1"},
		ClientID:      "test",
		MaxRetries:    0,
		RetryInterval: 10 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestToRecord(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := toRecord(&Message{
		Topic:     "booking-events",
		Key:       []byte("spot-1"),
		Value:     []byte(`{"ok":true}`),
		Headers:   map[string]string{"event_type": "booking.created", "aggregate_id": "b-1"},
		Timestamp: ts,
	})

	assert.Equal(t, "booking-events", rec.Topic)
	assert.Equal(t, []byte("spot-1"), rec.Key)
	assert.Equal(t, ts, rec.Timestamp)
	require.Len(t, rec.Headers, 2)
	// headers are emitted in key order
	assert.Equal(t, "aggregate_id", rec.Headers[0].Key)
	assert.Equal(t, "event_type", rec.Headers[1].Key)
	assert.Equal(t, []byte("booking.created"), rec.Headers[1].Value)
}

func TestProducer_ProduceNilMessage(t *testing.T) {
	p := &Producer{}
	assert.Error(t, p.Produce(context.Background(), nil))
	assert.NotPanics(t, p.Close)
}
