package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, spot_id, user_id, start_date, end_date, created_at, updated_at`

// PostgresIntervalStore serializes writers per spot by locking the spot row.
// The bookings_no_overlap exclusion constraint backs the half-open invariant
// at the storage level.
type PostgresIntervalStore struct {
	pool        *pgxpool.Pool
	outbox      *PostgresOutboxRepository
	lockTimeout time.Duration
}

// NewPostgresIntervalStore creates a store over pool
func NewPostgresIntervalStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresIntervalStore {
	return &PostgresIntervalStore{
		pool:        pool,
		outbox:      NewPostgresOutboxRepository(pool),
		lockTimeout: lockTimeout,
	}
}

// Outbox returns the outbox repository writes are recorded in
func (s *PostgresIntervalStore) Outbox() *PostgresOutboxRepository {
	return s.outbox
}

func (s *PostgresIntervalStore) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return getBooking(ctx, s.pool, id, false)
}

func (s *PostgresIntervalStore) ListBySpot(ctx context.Context, spotID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE spot_id = $1 ORDER BY start_date, id`
	return queryBookings(ctx, s.pool, query, spotID)
}

func (s *PostgresIntervalStore) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY start_date, id`
	return queryBookings(ctx, s.pool, query, userID)
}

func (s *PostgresIntervalStore) FindConflicts(ctx context.Context, spotID string, r domain.DateRange, excludeID string) ([]*domain.Booking, error) {
	return findConflictsPg(ctx, s.pool, spotID, r, excludeID)
}

// WithinSpot opens a transaction, bounds lock waits with lock_timeout, and
// takes the spot row lock before running fn
func (s *PostgresIntervalStore) WithinSpot(ctx context.Context, spotID string, fn func(ctx context.Context, tx SpotTx) error) error {
	err := database.RunInTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if s.lockTimeout > 0 {
			// SET does not take bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM spots WHERE id = $1 FOR UPDATE`, spotID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSpotNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock spot: %w", err)
		}

		return fn(ctx, &pgSpotTx{tx: tx, spotID: spotID, outbox: s.outbox})
	})
	return classifyPgError(err)
}

type pgSpotTx struct {
	tx     pgx.Tx
	spotID string
	outbox *PostgresOutboxRepository
}

func (t *pgSpotTx) SpotID() string { return t.spotID }

func (t *pgSpotTx) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := getBooking(ctx, t.tx, id, true)
	if err != nil {
		return nil, err
	}
	if b.SpotID != t.spotID {
		return nil, domain.ErrBookingNotFound
	}
	return b, nil
}

func (t *pgSpotTx) FindConflicts(ctx context.Context, r domain.DateRange, excludeID string) ([]*domain.Booking, error) {
	return findConflictsPg(ctx, t.tx, t.spotID, r, excludeID)
}

func (t *pgSpotTx) Insert(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, spot_id, user_id, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := t.tx.Exec(ctx, query, b.ID, b.SpotID, b.UserID, b.StartDate, b.EndDate, b.CreatedAt, b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (t *pgSpotTx) Remove(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1 AND spot_id = $2`, id, t.spotID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (t *pgSpotTx) Replace(ctx context.Context, id string, r domain.DateRange, updatedAt time.Time) (*domain.Booking, error) {
	query := `
		UPDATE bookings SET start_date = $3, end_date = $4, updated_at = $5
		WHERE id = $1 AND spot_id = $2
		RETURNING ` + bookingColumns
	b, err := scanBooking(t.tx.QueryRow(ctx, query, id, t.spotID, r.Start, r.End, updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return b, nil
}

func (t *pgSpotTx) AppendOutbox(ctx context.Context, msg *domain.OutboxMessage) error {
	return t.outbox.CreateTx(ctx, t.tx, msg)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBooking(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// findConflictsPg uses the same half-open predicate as the memory store
func findConflictsPg(ctx context.Context, q querier, spotID string, r domain.DateRange, excludeID string) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE spot_id = $1
		  AND start_date < $3
		  AND $2 < end_date
		  AND ($4 = '' OR id <> $4)
		ORDER BY start_date, id
	`
	return queryBookings(ctx, q, query, spotID, r.Start, r.End, excludeID)
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	out := []*domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.SpotID, &b.UserID, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.StartDate = domain.NormalizeDate(b.StartDate)
	b.EndDate = domain.NormalizeDate(b.EndDate)
	return &b, nil
}
