package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `
	id, aggregate_type, aggregate_id, event_type,
	payload, topic, partition_key, status,
	retry_count, max_retries, COALESCE(last_error, ''),
	created_at, published_at`

// PostgresOutboxRepository implements OutboxRepository using PostgreSQL
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgresOutboxRepository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// CreateTx records msg inside the caller's transaction
func (r *PostgresOutboxRepository) CreateTx(ctx context.Context, tx pgx.Tx, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox (
			id, aggregate_type, aggregate_id, event_type,
			payload, topic, partition_key, status,
			retry_count, max_retries, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := tx.Exec(ctx, query,
		msg.ID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.Topic,
		msg.PartitionKey,
		msg.Status.String(),
		msg.RetryCount,
		msg.MaxRetries,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message in transaction: %w", err)
	}
	return nil
}

// GetPendingMessages gets pending messages to be published
func (r *PostgresOutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + `
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.query(ctx, query, limit)
}

// GetFailedMessages gets failed messages that can be retried
func (r *PostgresOutboxRepository) GetFailedMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + `
		FROM outbox
		WHERE status = 'failed' AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.query(ctx, query, limit)
}

// MarkAsPublished marks a message as successfully published
func (r *PostgresOutboxRepository) MarkAsPublished(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `UPDATE outbox SET status = 'published', published_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark message as published: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errOutboxMessageNotFound
	}
	return nil
}

// MarkAsFailed marks a message as failed
func (r *PostgresOutboxRepository) MarkAsFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE outbox SET
			status = 'failed',
			last_error = $2,
			retry_count = retry_count + 1
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errOutboxMessageNotFound
	}
	return nil
}

// DeletePublished deletes old published messages for cleanup
func (r *PostgresOutboxRepository) DeletePublished(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result, err := r.pool.Exec(ctx, `DELETE FROM outbox WHERE status = 'published' AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published messages: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresOutboxRepository) query(ctx context.Context, query string, args ...any) ([]*domain.OutboxMessage, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var out []*domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		var status string
		if err := rows.Scan(
			&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType,
			&m.Payload, &m.Topic, &m.PartitionKey, &status,
			&m.RetryCount, &m.MaxRetries, &m.LastError,
			&m.CreatedAt, &m.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		m.Status = domain.OutboxStatus(status)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// PostgresSpotRepository reads spot ownership from the spots table
type PostgresSpotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSpotRepository(pool *pgxpool.Pool) *PostgresSpotRepository {
	return &PostgresSpotRepository{pool: pool}
}

func (r *PostgresSpotRepository) GetSpot(ctx context.Context, id string) (*domain.Spot, error) {
	var s domain.Spot
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id FROM spots WHERE id = $1`, id).Scan(&s.ID, &s.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	return &s, nil
}

// UpsertSpot registers a spot. Used by seeding.
func (r *PostgresSpotRepository) UpsertSpot(ctx context.Context, s domain.Spot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO spots (id, owner_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id
	`, s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to upsert spot: %w", err)
	}
	return nil
}
