package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
)

// SpotWriter registers spots
type SpotWriter interface {
	UpsertSpot(ctx context.Context, spot domain.Spot) error
}

// DemoSpots are the spots created by Seed
var DemoSpots = []domain.Spot{
	{ID: "spot-1", OwnerID: "user-1"},
	{ID: "spot-2", OwnerID: "user-2"},
}

// DemoBookings returns the bookings created by Seed
func DemoBookings() []*domain.Booking {
	mk := func(id, spotID, userID string, start, end time.Time) *domain.Booking {
		return &domain.Booking{ID: id, SpotID: spotID, UserID: userID, StartDate: start, EndDate: end}
	}
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	return []*domain.Booking{
		mk("booking-1", "spot-1", "user-2", day(time.September, 10), day(time.September, 15)),
		mk("booking-2", "spot-1", "user-3", day(time.September, 20), day(time.September, 25)),
	}
}

// Seed loads the demo data. Bookings that already exist or would overlap are skipped.
func Seed(ctx context.Context, spots SpotWriter, store IntervalStore, now time.Time) error {
	for _, s := range DemoSpots {
		if err := spots.UpsertSpot(ctx, s); err != nil {
			return fmt.Errorf("failed to seed spot %s: %w", s.ID, err)
		}
	}

	for _, b := range DemoBookings() {
		b.CreatedAt, b.UpdatedAt = now, now
		err := store.WithinSpot(ctx, b.SpotID, func(ctx context.Context, tx SpotTx) error {
			if _, err := tx.GetBooking(ctx, b.ID); err == nil {
				return nil
			}
			conflicts, err := tx.FindConflicts(ctx, b.Range(), "")
			if err != nil || len(conflicts) > 0 {
				return err
			}
			return tx.Insert(ctx, b)
		})
		if err != nil {
			return fmt.Errorf("failed to seed booking %s: %w", b.ID, err)
		}
	}
	return nil
}
