package domain

import "time"

// BookingEventType names a booking lifecycle event
type BookingEventType string

const (
	BookingEventCreated     BookingEventType = "booking.created"
	BookingEventRescheduled BookingEventType = "booking.rescheduled"
	BookingEventCancelled   BookingEventType = "booking.cancelled"
)

// BookingEvent is the payload published for every committed mutation
type BookingEvent struct {
	EventID    string           `json:"event_id"`
	EventType  BookingEventType `json:"event_type"`
	OccurredAt time.Time        `json:"occurred_at"`
	BookingID  string           `json:"booking_id"`
	SpotID     string           `json:"spot_id"`
	UserID     string           `json:"user_id"`
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	// Previous bounds, set for reschedules
	PrevStartDate string `json:"prev_start_date,omitempty"`
	PrevEndDate   string `json:"prev_end_date,omitempty"`
	ActorID       string `json:"actor_id"`
}

// NewBookingEvent snapshots booking into an event
func NewBookingEvent(eventType BookingEventType, booking *Booking, eventID, actorID string, at time.Time) *BookingEvent {
	return &BookingEvent{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: at.UTC(),
		BookingID:  booking.ID,
		SpotID:     booking.SpotID,
		UserID:     booking.UserID,
		StartDate:  booking.StartDate.Format(DateLayout),
		EndDate:    booking.EndDate.Format(DateLayout),
		ActorID:    actorID,
	}
}

// WithPrevious records the range a reschedule replaced
func (e *BookingEvent) WithPrevious(prev DateRange) *BookingEvent {
	e.PrevStartDate = prev.Start.Format(DateLayout)
	e.PrevEndDate = prev.End.Format(DateLayout)
	return e
}
