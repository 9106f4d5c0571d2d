package domain

import (
	"testing"
	"time"
)

func TestBookingOutboxMessage(t *testing.T) {
	at := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{ID: "b1", SpotID: "s1", UserID: "u1", StartDate: d("2024-09-10"), EndDate: d("2024-09-15")}
	event := NewBookingEvent(BookingEventRescheduled, b, "evt-1", "u1", at).
		WithPrevious(r("2024-09-05", "2024-09-08"))

	msg, err := BookingOutboxMessage(event, "booking-events")
	if err != nil {
		t.Fatalf("BookingOutboxMessage() error = %v", err)
	}
	if msg.ID != "evt-1" || msg.AggregateID != "b1" || msg.PartitionKey != "s1" {
		t.Errorf("unexpected identity fields: %+v", msg)
	}
	if msg.Status != OutboxStatusPending || msg.MaxRetries != DefaultOutboxMaxRetries {
		t.Errorf("unexpected status fields: %+v", msg)
	}

	var decoded BookingEvent
	if err := msg.GetPayload(&decoded); err != nil {
		t.Fatalf("GetPayload() error = %v", err)
	}
	if decoded.StartDate != "2024-09-10" || decoded.PrevEndDate != "2024-09-08" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestOutboxMessage_Retry(t *testing.T) {
	msg := &OutboxMessage{Status: OutboxStatusPending, MaxRetries: 2}
	if msg.CanRetry() {
		t.Error("pending message is not a retry candidate")
	}

	msg.MarkAsFailed("broker down")
	if !msg.CanRetry() || msg.RetryCount != 1 || msg.LastError != "broker down" {
		t.Errorf("after first failure: %+v", msg)
	}
	msg.MarkAsFailed("broker down")
	if msg.CanRetry() {
		t.Error("retries exhausted")
	}

	now := time.Now()
	msg.MarkAsPublished(now)
	if msg.Status != OutboxStatusPublished || msg.PublishedAt == nil {
		t.Errorf("after publish: %+v", msg)
	}
}
