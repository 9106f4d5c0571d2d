package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
)

var errOutboxMessageNotFound = errors.New("outbox message not found")

// MemoryOutboxRepository backs the outbox for the memory store
type MemoryOutboxRepository struct {
	mu       sync.Mutex
	messages map[string]*domain.OutboxMessage
	now      func() time.Time
}

// NewMemoryOutboxRepository creates an empty outbox
func NewMemoryOutboxRepository() *MemoryOutboxRepository {
	return &MemoryOutboxRepository{
		messages: make(map[string]*domain.OutboxMessage),
		now:      time.Now,
	}
}

func (r *MemoryOutboxRepository) add(msg *domain.OutboxMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *msg
	r.messages[msg.ID] = &c
}

// All returns every message ordered by creation time
func (r *MemoryOutboxRepository) All() []*domain.OutboxMessage {
	return r.filter(func(*domain.OutboxMessage) bool { return true }, 0)
}

func (r *MemoryOutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	return r.filter(func(m *domain.OutboxMessage) bool {
		return m.Status == domain.OutboxStatusPending
	}, limit), nil
}

func (r *MemoryOutboxRepository) GetFailedMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	return r.filter(func(m *domain.OutboxMessage) bool { return m.CanRetry() }, limit), nil
}

func (r *MemoryOutboxRepository) MarkAsPublished(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return errOutboxMessageNotFound
	}
	m.MarkAsPublished(r.now())
	return nil
}

func (r *MemoryOutboxRepository) MarkAsFailed(ctx context.Context, id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return errOutboxMessageNotFound
	}
	m.MarkAsFailed(errMsg)
	return nil
}

func (r *MemoryOutboxRepository) DeletePublished(ctx context.Context, olderThanDays int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().AddDate(0, 0, -olderThanDays)
	var n int64
	for id, m := range r.messages {
		if m.Status == domain.OutboxStatusPublished && m.PublishedAt != nil && m.PublishedAt.Before(cutoff) {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryOutboxRepository) filter(keep func(*domain.OutboxMessage) bool, limit int) []*domain.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.OutboxMessage{}
	for _, m := range r.messages {
		if keep(m) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
