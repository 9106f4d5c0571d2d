package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/internal/metrics"
	"github.com/imanidev/VacayStay/internal/repository"
	"github.com/imanidev/VacayStay/pkg/kafka"
	"github.com/imanidev/VacayStay/pkg/logger"
	"github.com/imanidev/VacayStay/pkg/retry"
	"go.uber.org/zap"
)

// Publisher delivers one outbox record. *kafka.Producer satisfies it.
type Publisher interface {
	Produce(ctx context.Context, msg *kafka.Message) error
}

// OutboxWorkerConfig contains configuration for the outbox worker
type OutboxWorkerConfig struct {
	// PollInterval is the interval between polling for pending messages
	PollInterval time.Duration
	// BatchSize is the number of messages to fetch in each poll
	BatchSize int
	// RetryInterval is the interval between retrying failed messages
	RetryInterval time.Duration
	// CleanupInterval is the interval between cleanup of old published messages
	CleanupInterval time.Duration
	// CleanupRetentionDays is the number of days to retain published messages
	CleanupRetentionDays int
}

// DefaultOutboxWorkerConfig returns default configuration
func DefaultOutboxWorkerConfig() *OutboxWorkerConfig {
	return &OutboxWorkerConfig{
		PollInterval:         500 * time.Millisecond,
		BatchSize:            100,
		RetryInterval:        5 * time.Second,
		CleanupInterval:      1 * time.Hour,
		CleanupRetentionDays: 7,
	}
}

// OutboxWorker relays committed booking events from the outbox to the broker
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	publisher  Publisher
	dlq        retry.DLQPublisher
	config     *OutboxWorkerConfig
	log        *logger.Logger
	now        func() time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewOutboxWorker creates a new outbox worker. A nil dlq drops exhausted messages.
func NewOutboxWorker(
	outboxRepo repository.OutboxRepository,
	publisher Publisher,
	dlq retry.DLQPublisher,
	config *OutboxWorkerConfig,
) *OutboxWorker {
	defaults := DefaultOutboxWorkerConfig()
	if config == nil {
		config = defaults
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.CleanupRetentionDays <= 0 {
		config.CleanupRetentionDays = defaults.CleanupRetentionDays
	}
	if dlq == nil {
		dlq = retry.NoOpDLQPublisher{}
	}

	return &OutboxWorker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		dlq:        dlq,
		config:     config,
		log:        logger.Get().Named("outbox"),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the outbox worker
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting outbox worker",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	w.wg.Add(3)
	go w.loop(ctx, w.config.PollInterval, w.ProcessPending)
	go w.loop(ctx, w.config.RetryInterval, w.ProcessFailed)
	go w.loop(ctx, w.config.CleanupInterval, w.Cleanup)

	return nil
}

// Stop stops the outbox worker and waits for in-flight batches
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping outbox worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Outbox worker stopped")
}

func (w *OutboxWorker) loop(ctx context.Context, every time.Duration, tick func(ctx context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// ProcessPending publishes one batch of pending messages
func (w *OutboxWorker) ProcessPending(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error("Failed to get pending messages", zap.Error(err))
		return
	}
	for _, msg := range messages {
		w.deliver(ctx, msg)
	}
}

// ProcessFailed retries one batch of failed messages that still have attempts left
func (w *OutboxWorker) ProcessFailed(ctx context.Context) {
	messages, err := w.outboxRepo.GetFailedMessages(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error("Failed to get failed messages", zap.Error(err))
		return
	}
	for _, msg := range messages {
		w.deliver(ctx, msg)
	}
}

// Cleanup deletes published messages past the retention window
func (w *OutboxWorker) Cleanup(ctx context.Context) {
	deleted, err := w.outboxRepo.DeletePublished(ctx, w.config.CleanupRetentionDays)
	if err != nil {
		w.log.Error("Failed to cleanup old messages", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.log.Info("Cleaned up old published messages", zap.Int64("deleted", deleted))
	}
}

func (w *OutboxWorker) deliver(ctx context.Context, msg *domain.OutboxMessage) {
	err := w.publish(ctx, msg)
	if err == nil {
		if markErr := w.outboxRepo.MarkAsPublished(ctx, msg.ID); markErr != nil {
			w.log.Error("Failed to mark message as published", zap.String("message_id", msg.ID), zap.Error(markErr))
			return
		}
		metrics.RecordOutboxPublished(ctx, msg.EventType)
		return
	}

	attempt := msg.RetryCount + 1
	w.log.Warn("Failed to publish outbox message",
		zap.String("message_id", msg.ID),
		zap.String("event_type", msg.EventType),
		zap.Int("attempt", attempt),
		zap.Int("max_retries", msg.MaxRetries),
		zap.Error(err),
	)
	metrics.RecordOutboxFailed(ctx, msg.EventType)

	if markErr := w.outboxRepo.MarkAsFailed(ctx, msg.ID, err.Error()); markErr != nil {
		w.log.Error("Failed to mark message as failed", zap.String("message_id", msg.ID), zap.Error(markErr))
		return
	}
	if attempt >= msg.MaxRetries {
		w.deadLetter(ctx, msg, err, attempt)
	}
}

func (w *OutboxWorker) deadLetter(ctx context.Context, msg *domain.OutboxMessage, cause error, attempts int) {
	dlqMsg := &retry.DLQMessage{
		ID:             msg.ID,
		OriginalTopic:  msg.Topic,
		OriginalKey:    msg.PartitionKey,
		Payload:        json.RawMessage(msg.Payload),
		Headers:        headersFor(msg),
		Error:          cause.Error(),
		Attempts:       attempts,
		FirstAttemptAt: msg.CreatedAt,
	}
	if err := w.dlq.PublishToDLQ(ctx, dlqMsg); err != nil {
		w.log.Error("Failed to dead-letter outbox message", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	metrics.RecordOutboxDeadLetter(ctx, msg.EventType)
	w.log.Warn("Outbox message moved to DLQ",
		zap.String("message_id", msg.ID),
		zap.String("dlq_topic", w.dlq.DLQTopic(msg.Topic)),
	)
}

func (w *OutboxWorker) publish(ctx context.Context, msg *domain.OutboxMessage) error {
	return w.publisher.Produce(ctx, &kafka.Message{
		Topic:     msg.Topic,
		Key:       []byte(msg.PartitionKey),
		Value:     msg.Payload,
		Headers:   headersFor(msg),
		Timestamp: w.now(),
	})
}

func headersFor(msg *domain.OutboxMessage) map[string]string {
	return map[string]string{
		"event_type":     msg.EventType,
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID,
		"content_type":   "application/json",
		"source":         "outbox-worker",
	}
}

// LogPublisher writes events to the log instead of a broker, for runs without Kafka
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.Get().Named("events")}
}

// Produce logs msg and always succeeds
func (p *LogPublisher) Produce(ctx context.Context, msg *kafka.Message) error {
	p.log.Info("booking event",
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
		zap.String("event_type", msg.Headers["event_type"]),
		zap.ByteString("payload", msg.Value),
	)
	return nil
}
