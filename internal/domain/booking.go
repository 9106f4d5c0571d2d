package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day wire format
const DateLayout = "2006-01-02"

// Booking is one reservation of one spot by one user for [StartDate, EndDate)
type Booking struct {
	ID        string    `json:"id"`
	SpotID    string    `json:"spot_id"`
	UserID    string    `json:"user_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Spot is the rentable resource. Only ownership matters to admission.
type Spot struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// IsOwnedBy reports whether userID owns the spot
func (s *Spot) IsOwnedBy(userID string) bool {
	return s.OwnerID == userID
}

// Range returns the booking's date range
func (b *Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

// Clone returns a copy safe to hand out of a store
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}

// BelongsToUser checks if booking belongs to user
func (b *Booking) BelongsToUser(userID string) bool {
	return b.UserID == userID
}

// IsImmutableAt reports whether the booking has started as of now.
// Started bookings can no longer be rescheduled or cancelled.
func (b *Booking) IsImmutableAt(now time.Time) bool {
	return !b.StartDate.After(NormalizeDate(now))
}

// LifecycleAt derives the booking's state from the clock
func (b *Booking) LifecycleAt(now time.Time) Lifecycle {
	if b.IsImmutableAt(now) {
		return LifecycleActiveOrPast
	}
	return LifecyclePendingFuture
}

// Lifecycle is the time-derived state of a booking
type Lifecycle string

const (
	LifecyclePendingFuture Lifecycle = "pending_future"
	LifecycleActiveOrPast  Lifecycle = "active_or_past"
	LifecycleCancelled     Lifecycle = "cancelled"
)

// DateRange is a half-open calendar interval [Start, End)
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds to calendar days
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
}

// IsValid reports Start < End
func (r DateRange) IsValid() bool {
	return r.Start.Before(r.End)
}

// Overlaps is the single intersection test used for admission.
// Half-open: s1 < e2 && s2 < e1. Inclusive also rejects touching ranges.
func (r DateRange) Overlaps(other DateRange, policy BoundaryPolicy) bool {
	if policy == BoundaryInclusive {
		return !r.Start.After(other.End) && !other.Start.After(r.End)
	}
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// ConflictWindow returns the half-open range a store must search so that a
// plain half-open intersection test honours policy. Inclusive ranges are
// widened by one day on each side.
func (r DateRange) ConflictWindow(policy BoundaryPolicy) DateRange {
	if policy == BoundaryInclusive {
		return DateRange{Start: r.Start.AddDate(0, 0, -1), End: r.End.AddDate(0, 0, 1)}
	}
	return r
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// NormalizeDate truncates t to midnight UTC of its calendar day
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// BoundaryPolicy decides whether touching ranges conflict
type BoundaryPolicy string

const (
	// BoundaryHalfOpen allows a new start equal to an existing end
	BoundaryHalfOpen BoundaryPolicy = "half_open"
	// BoundaryInclusive treats end dates as occupied
	BoundaryInclusive BoundaryPolicy = "inclusive"
)

// ParseBoundaryPolicy maps a config string to a policy, defaulting to half-open
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch BoundaryPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BoundaryHalfOpen:
		return BoundaryHalfOpen, nil
	case BoundaryInclusive:
		return BoundaryInclusive, nil
	}
	return "", fmt.Errorf("unknown boundary policy %q", s)
}

// AuthorizationPolicy decides who may reschedule or cancel a booking
type AuthorizationPolicy string

const (
	AuthBookingOwner       AuthorizationPolicy = "booking_owner"
	AuthBookingOrSpotOwner AuthorizationPolicy = "booking_or_spot_owner"
)

// ParseAuthorizationPolicy maps a config string to a policy, defaulting to booking owner
func ParseAuthorizationPolicy(s string) (AuthorizationPolicy, error) {
	switch AuthorizationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AuthBookingOwner:
		return AuthBookingOwner, nil
	case AuthBookingOrSpotOwner:
		return AuthBookingOrSpotOwner, nil
	}
	return "", fmt.Errorf("unknown authorization policy %q", s)
}

// Allows reports whether requesterID may mutate booking on spot
func (p AuthorizationPolicy) Allows(booking *Booking, spot *Spot, requesterID string) bool {
	if booking.BelongsToUser(requesterID) {
		return true
	}
	return p == AuthBookingOrSpotOwner && spot != nil && spot.IsOwnedBy(requesterID)
}
