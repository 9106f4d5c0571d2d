package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/imanidev/VacayStay/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Rejection reasons
const (
	ReasonNotFound     = "not_found"
	ReasonUnauthorized = "unauthorized"
	ReasonValidation   = "validation"
	ReasonConflict     = "conflict"
	ReasonContention   = "contention"
	ReasonInternal     = "internal"
)

var (
	// Admission counters
	BookingsCreated     *telemetry.Counter
	BookingsRescheduled *telemetry.Counter
	BookingsCancelled   *telemetry.Counter
	BookingsRejected    *telemetry.Counter
	AdmissionRetries    *telemetry.Counter

	// Outbox counters
	OutboxPublished  *telemetry.Counter
	OutboxFailed     *telemetry.Counter
	OutboxDeadLetter *telemetry.Counter

	AdmissionDuration *telemetry.Histogram

	// ActiveBookings moves with creates and cancels made by this instance
	ActiveBookings *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		target **telemetry.Counter
		opts   telemetry.MetricOpts
	}{
		{&BookingsCreated, telemetry.MetricOpts{Name: "booking_created_total", Description: "Bookings admitted", Unit: "1"}},
		{&BookingsRescheduled, telemetry.MetricOpts{Name: "booking_rescheduled_total", Description: "Bookings rescheduled", Unit: "1"}},
		{&BookingsCancelled, telemetry.MetricOpts{Name: "booking_cancelled_total", Description: "Bookings cancelled", Unit: "1"}},
		{&BookingsRejected, telemetry.MetricOpts{Name: "booking_rejected_total", Description: "Admission requests rejected, by operation and reason", Unit: "1"}},
		{&AdmissionRetries, telemetry.MetricOpts{Name: "booking_admission_retries_total", Description: "Retries of the per-spot critical section after contention", Unit: "1"}},
		{&OutboxPublished, telemetry.MetricOpts{Name: "booking_outbox_published_total", Description: "Outbox messages delivered", Unit: "1"}},
		{&OutboxFailed, telemetry.MetricOpts{Name: "booking_outbox_failed_total", Description: "Outbox publish attempts that failed", Unit: "1"}},
		{&OutboxDeadLetter, telemetry.MetricOpts{Name: "booking_outbox_dead_letter_total", Description: "Outbox messages sent to the dead letter topic", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.target = counter
	}

	var err error
	AdmissionDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_admission_duration_seconds",
		Description: "Time spent in admission operations",
		Unit:        "s",
	}, []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5})
	if err != nil {
		return err
	}

	ActiveBookings, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_active",
		Description: "Bookings held, as seen by this instance",
		Unit:        "1",
	})
	return err
}

// RecordCreated records an admitted booking
func RecordCreated(ctx context.Context, spotID string) {
	if BookingsCreated != nil {
		BookingsCreated.Inc(ctx, attribute.String("spot_id", spotID))
	}
	if ActiveBookings != nil {
		ActiveBookings.Inc(ctx)
	}
}

// RecordRescheduled records a reschedule
func RecordRescheduled(ctx context.Context, spotID string) {
	if BookingsRescheduled != nil {
		BookingsRescheduled.Inc(ctx, attribute.String("spot_id", spotID))
	}
}

// RecordCancelled records a cancellation
func RecordCancelled(ctx context.Context, spotID string) {
	if BookingsCancelled != nil {
		BookingsCancelled.Inc(ctx, attribute.String("spot_id", spotID))
	}
	if ActiveBookings != nil {
		ActiveBookings.Dec(ctx)
	}
}

// RecordRejected records a failed admission operation
func RecordRejected(ctx context.Context, operation, reason string) {
	if BookingsRejected != nil {
		BookingsRejected.Inc(ctx,
			attribute.String("operation", operation),
			attribute.String("reason", reason),
		)
	}
}

// RecordRetry records a contention retry
func RecordRetry(ctx context.Context, operation string) {
	if AdmissionRetries != nil {
		AdmissionRetries.Inc(ctx, attribute.String("operation", operation))
	}
}

// RecordDuration records how long an operation took
func RecordDuration(ctx context.Context, operation string, d time.Duration) {
	if AdmissionDuration != nil {
		AdmissionDuration.Record(ctx, d.Seconds(), attribute.String("operation", operation))
	}
}

// RecordOutboxPublished records a delivered outbox message
func RecordOutboxPublished(ctx context.Context, eventType string) {
	if OutboxPublished != nil {
		OutboxPublished.Inc(ctx, attribute.String("event_type", eventType))
	}
}

// RecordOutboxFailed records a failed publish attempt
func RecordOutboxFailed(ctx context.Context, eventType string) {
	if OutboxFailed != nil {
		OutboxFailed.Inc(ctx, attribute.String("event_type", eventType))
	}
}

// RecordOutboxDeadLetter records a message given up on
func RecordOutboxDeadLetter(ctx context.Context, eventType string) {
	if OutboxDeadLetter != nil {
		OutboxDeadLetter.Inc(ctx, attribute.String("event_type", eventType))
	}
}
