package repository

import (
	"context"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
)

// SpotRepository resolves spot ownership
type SpotRepository interface {
	// GetSpot returns domain.ErrSpotNotFound when the spot is unknown
	GetSpot(ctx context.Context, id string) (*domain.Spot, error)
}

// BookingReader is the read side of the interval store. Reads never observe
// a partially applied unit of work.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBySpot(ctx context.Context, spotID string) ([]*domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error)
	// FindConflicts returns bookings on spotID intersecting the half-open range,
	// skipping excludeID when it is non-empty
	FindConflicts(ctx context.Context, spotID string, r domain.DateRange, excludeID string) ([]*domain.Booking, error)
}

// SpotTx is exclusive, all-or-nothing access to one spot's interval set.
// Nothing done through it is visible until the enclosing WithinSpot returns nil.
type SpotTx interface {
	SpotID() string
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	FindConflicts(ctx context.Context, r domain.DateRange, excludeID string) ([]*domain.Booking, error)
	// Insert does not check for conflicts; callers must call FindConflicts first
	Insert(ctx context.Context, booking *domain.Booking) error
	// Remove returns domain.ErrBookingNotFound when absent
	Remove(ctx context.Context, id string) error
	// Replace swaps the bounds of an existing booking in one step
	Replace(ctx context.Context, id string, r domain.DateRange, updatedAt time.Time) (*domain.Booking, error)
	AppendOutbox(ctx context.Context, msg *domain.OutboxMessage) error
}

// Transactor runs fn with the spot's interval set locked. Writers on
// different spots never wait on each other. If fn returns an error every
// change made through tx is discarded.
type Transactor interface {
	WithinSpot(ctx context.Context, spotID string, fn func(ctx context.Context, tx SpotTx) error) error
}

// IntervalStore is the authoritative per-spot booking set
type IntervalStore interface {
	BookingReader
	Transactor
}

// OutboxRepository is what the outbox worker needs
type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	GetFailedMessages(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	MarkAsPublished(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, errMsg string) error
	// DeletePublished removes published messages older than olderThanDays
	DeletePublished(ctx context.Context, olderThanDays int) (int64, error)
}
