package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/internal/repository"
	"github.com/imanidev/VacayStay/pkg/kafka"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []*kafka.Message
}

func (p *fakePublisher) Produce(ctx context.Context, msg *kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fakeDLQ struct {
	got []*retry.DLQMessage
}

func (d *fakeDLQ) PublishToDLQ(ctx context.Context, msg *retry.DLQMessage) error {
	d.got = append(d.got, msg)
	return nil
}

func (d *fakeDLQ) DLQTopic(originalTopic string) string { return originalTopic + ".dlq" }

// seedOutbox commits one booking event per spot through the memory store
func seedOutbox(t *testing.T, maxRetries int, spots ...string) *repository.MemoryOutboxRepository {
	t.Helper()
	store := repository.NewMemoryIntervalStore(time.Second, nil)
	at := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	for i, spotID := range spots {
		b := &domain.Booking{
			ID:        "b-" + spotID,
			SpotID:    spotID,
			UserID:    "guest",
			StartDate: at.AddDate(0, 0, 10),
			EndDate:   at.AddDate(0, 0, 12),
		}
		event := domain.NewBookingEvent(domain.BookingEventCreated, b, "evt-"+spotID, "guest", at.Add(time.Duration(i)*time.Second))
		msg, err := domain.BookingOutboxMessage(event, "booking-events")
		require.NoError(t, err)
		msg.MaxRetries = maxRetries
		err = store.WithinSpot(context.Background(), spotID, func(ctx context.Context, tx repository.SpotTx) error {
			return tx.AppendOutbox(ctx, msg)
		})
		require.NoError(t, err)
	}
	return store.Outbox()
}

func TestDefaultOutboxWorkerConfig(t *testing.T) {
	config := DefaultOutboxWorkerConfig()

	if config.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want %v", config.PollInterval, 500*time.Millisecond)
	}
	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}
	if config.CleanupRetentionDays != 7 {
		t.Errorf("CleanupRetentionDays = %v, want %v", config.CleanupRetentionDays, 7)
	}
}

func TestNewOutboxWorker_FillsZeroValues(t *testing.T) {
	worker := NewOutboxWorker(nil, nil, nil, &OutboxWorkerConfig{BatchSize: 10})

	if worker.config.BatchSize != 10 {
		t.Errorf("BatchSize = %v, want %v", worker.config.BatchSize, 10)
	}
	if worker.config.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want default", worker.config.PollInterval)
	}
	if worker.running {
		t.Error("Worker should not be running initially")
	}
}

func TestOutboxWorker_PublishesPending(t *testing.T) {
	outbox := seedOutbox(t, 5, "spot-1", "spot-2")
	pub := &fakePublisher{}
	w := NewOutboxWorker(outbox, pub, nil, nil)

	w.ProcessPending(context.Background())

	require.Equal(t, 2, pub.count())
	first := pub.sent[0]
	assert.Equal(t, "booking-events", first.Topic)
	assert.Equal(t, "spot-1", string(first.Key), "events are keyed by spot")
	assert.Equal(t, string(domain.BookingEventCreated), first.Headers["event_type"])

	var event domain.BookingEvent
	require.NoError(t, (&domain.OutboxMessage{Payload: first.Value}).GetPayload(&event))
	assert.Equal(t, "b-spot-1", event.BookingID)

	pending, err := outbox.GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// already published messages are not sent again
	w.ProcessPending(context.Background())
	assert.Equal(t, 2, pub.count())

	w.Cleanup(context.Background())
	assert.Len(t, outbox.All(), 2, "recently published messages are retained")
}

func TestOutboxWorker_FailureThenRetry(t *testing.T) {
	outbox := seedOutbox(t, 3, "spot-1")
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	dlq := &fakeDLQ{}
	w := NewOutboxWorker(outbox, pub, dlq, nil)
	ctx := context.Background()

	w.ProcessPending(ctx)
	failed, err := outbox.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].RetryCount)
	assert.Equal(t, "broker unavailable", failed[0].LastError)

	pub.err = nil
	w.ProcessFailed(ctx)
	assert.Equal(t, 1, pub.count())
	assert.Empty(t, dlq.got)

	all := outbox.All()
	require.Len(t, all, 1)
	assert.Equal(t, domain.OutboxStatusPublished, all[0].Status)
}

func TestOutboxWorker_DeadLettersAfterMaxRetries(t *testing.T) {
	outbox := seedOutbox(t, 2, "spot-1")
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	dlq := &fakeDLQ{}
	w := NewOutboxWorker(outbox, pub, dlq, nil)
	ctx := context.Background()

	w.ProcessPending(ctx)
	assert.Empty(t, dlq.got)

	w.ProcessFailed(ctx)
	require.Len(t, dlq.got, 1)
	assert.Equal(t, "booking-events", dlq.got[0].OriginalTopic)
	assert.Equal(t, "spot-1", dlq.got[0].OriginalKey)
	assert.Equal(t, 2, dlq.got[0].Attempts)

	// exhausted messages are no longer retried
	w.ProcessFailed(ctx)
	assert.Len(t, dlq.got, 1)
	failed, err := outbox.GetFailedMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestOutboxWorker_StartStop(t *testing.T) {
	outbox := seedOutbox(t, 5, "spot-1")
	pub := &fakePublisher{}
	w := NewOutboxWorker(outbox, pub, nil, &OutboxWorkerConfig{PollInterval: 5 * time.Millisecond})

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher()
	err := p.Produce(context.Background(), &kafka.Message{
		Topic:   "booking-events",
		Key:     []byte("spot-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"event_type": "booking.created"},
	})
	assert.NoError(t, err)
}
