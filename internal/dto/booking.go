package dto

import (
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
)

// BookingRequest is the body of create and reschedule
type BookingRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Range parses the request dates. Call Validate first.
func (r *BookingRequest) Range() (domain.DateRange, error) {
	start, err := domain.ParseDate(r.StartDate)
	if err != nil {
		return domain.DateRange{}, err
	}
	end, err := domain.ParseDate(r.EndDate)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.NewDateRange(start, end), nil
}

// BookingResponse is a booking as seen by its holder or the spot owner
type BookingResponse struct {
	ID        string    `json:"id"`
	SpotID    string    `json:"spotId"`
	UserID    string    `json:"userId"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicBookingResponse hides who booked, for users who do not own the spot
type PublicBookingResponse struct {
	SpotID    string `json:"spotId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ConflictResponse describes a booking that blocks a request
type ConflictResponse struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// FromDomain converts domain Booking to BookingResponse
func FromDomain(b *domain.Booking, now time.Time) *BookingResponse {
	return &BookingResponse{
		ID:        b.ID,
		SpotID:    b.SpotID,
		UserID:    b.UserID,
		StartDate: b.StartDate.Format(domain.DateLayout),
		EndDate:   b.EndDate.Format(domain.DateLayout),
		Status:    string(b.LifecycleAt(now)),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func FromDomainList(bookings []*domain.Booking, now time.Time) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromDomain(b, now))
	}
	return out
}

func PublicFromDomainList(bookings []*domain.Booking) []*PublicBookingResponse {
	out := make([]*PublicBookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, &PublicBookingResponse{
			SpotID:    b.SpotID,
			StartDate: b.StartDate.Format(domain.DateLayout),
			EndDate:   b.EndDate.Format(domain.DateLayout),
		})
	}
	return out
}

// ConflictsFromDomain lists only the blocking dates, never who holds them
func ConflictsFromDomain(bookings []*domain.Booking) []ConflictResponse {
	out := make([]ConflictResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, ConflictResponse{
			StartDate: b.StartDate.Format(domain.DateLayout),
			EndDate:   b.EndDate.Format(domain.DateLayout),
		})
	}
	return out
}
