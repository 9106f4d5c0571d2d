package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/internal/metrics"
	"github.com/imanidev/VacayStay/internal/repository"
	"github.com/imanidev/VacayStay/pkg/logger"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/imanidev/VacayStay/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	opCreate     = "create"
	opReschedule = "reschedule"
	opCancel     = "cancel"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// BookingService admits, reschedules and cancels bookings while keeping every
// spot's bookings pairwise non-overlapping
type BookingService interface {
	// CreateBooking reserves r on spotID for requesterID
	CreateBooking(ctx context.Context, spotID, requesterID string, r domain.DateRange) (*domain.Booking, error)

	// RescheduleBooking moves a future booking to r
	RescheduleBooking(ctx context.Context, bookingID, requesterID string, r domain.DateRange) (*domain.Booking, error)

	// CancelBooking removes a future booking
	CancelBooking(ctx context.Context, bookingID, requesterID string) error

	// GetBooking returns a booking visible to requesterID
	GetBooking(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error)

	// ListUserBookings returns the requester's own bookings
	ListUserBookings(ctx context.Context, userID string) ([]*domain.Booking, error)

	// ListSpotBookings returns a spot's bookings and whether the requester owns the spot
	ListSpotBookings(ctx context.Context, spotID, requesterID string) (*SpotBookings, error)
}

// SpotBookings is a spot's booking list as seen by one requester
type SpotBookings struct {
	SpotID   string
	IsOwner  bool
	Bookings []*domain.Booking
}

// BookingServiceConfig contains configuration for booking service
type BookingServiceConfig struct {
	BoundaryPolicy domain.BoundaryPolicy
	AuthPolicy     domain.AuthorizationPolicy
	// MaxRetries bounds retries of the per-spot critical section on contention
	MaxRetries int
	// RetryInterval is the first contention backoff
	RetryInterval time.Duration
	EventsTopic   string
	Clock         Clock
	NewID         func() string
}

type bookingService struct {
	spots    repository.SpotRepository
	store    repository.IntervalStore
	boundary domain.BoundaryPolicy
	auth     domain.AuthorizationPolicy
	retryCfg *retry.Config
	topic    string
	clock    Clock
	newID    func() string
}

// NewBookingService creates a new booking service
func NewBookingService(spots repository.SpotRepository, store repository.IntervalStore, cfg *BookingServiceConfig) BookingService {
	s := &bookingService{
		spots:    spots,
		store:    store,
		boundary: domain.BoundaryHalfOpen,
		auth:     domain.AuthBookingOwner,
		topic:    "booking-events",
		clock:    SystemClock,
		newID:    uuid.NewString,
	}
	maxRetries := 3
	var interval time.Duration
	if cfg != nil {
		if cfg.BoundaryPolicy != "" {
			s.boundary = cfg.BoundaryPolicy
		}
		if cfg.AuthPolicy != "" {
			s.auth = cfg.AuthPolicy
		}
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		}
		interval = cfg.RetryInterval
		if cfg.EventsTopic != "" {
			s.topic = cfg.EventsTopic
		}
		if cfg.Clock != nil {
			s.clock = cfg.Clock
		}
		if cfg.NewID != nil {
			s.newID = cfg.NewID
		}
	}
	s.retryCfg = retry.ContentionConfig(maxRetries, repository.IsContention)
	if interval > 0 {
		s.retryCfg.InitialInterval = interval
	}
	return s
}

// CreateBooking admits a new booking
func (s *bookingService) CreateBooking(ctx context.Context, spotID, requesterID string, r domain.DateRange) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.create")
	defer span.End()
	defer s.timed(ctx, opCreate)()

	span.SetAttributes(
		attribute.String("spot_id", spotID),
		attribute.String("user_id", requesterID),
	)

	spot, err := s.spots.GetSpot(ctx, spotID)
	if err != nil {
		return nil, s.fail(ctx, span, opCreate, err)
	}
	if spot.IsOwnedBy(requesterID) {
		return nil, s.fail(ctx, span, opCreate, domain.ErrOwnSpot)
	}

	r = domain.NewDateRange(r.Start, r.End)
	var created *domain.Booking
	err = s.withinSpot(ctx, opCreate, spotID, func(ctx context.Context, tx repository.SpotTx) error {
		now := s.clock.Now()
		if err := validateRange(r, now); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, tx, r, ""); err != nil {
			return err
		}

		b := &domain.Booking{
			ID:        s.newID(),
			SpotID:    spotID,
			UserID:    requesterID,
			StartDate: r.Start,
			EndDate:   r.End,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, domain.NewBookingEvent(domain.BookingEventCreated, b, s.newID(), requesterID, now)); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, opCreate, err)
	}

	metrics.RecordCreated(ctx, spotID)
	span.SetAttributes(attribute.String("booking_id", created.ID))
	span.SetStatus(codes.Ok, "")
	return created, nil
}

// RescheduleBooking swaps a booking's dates in one step
func (s *bookingService) RescheduleBooking(ctx context.Context, bookingID, requesterID string, r domain.DateRange) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.reschedule")
	defer span.End()
	defer s.timed(ctx, opReschedule)()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("user_id", requesterID),
	)

	existing, err := s.authorize(ctx, bookingID, requesterID)
	if err != nil {
		return nil, s.fail(ctx, span, opReschedule, err)
	}

	r = domain.NewDateRange(r.Start, r.End)
	var updated *domain.Booking
	err = s.withinSpot(ctx, opReschedule, existing.SpotID, func(ctx context.Context, tx repository.SpotTx) error {
		current, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if current.IsImmutableAt(now) {
			return &domain.ValidationError{Message: domain.MsgStartedNoUpdate}
		}
		if err := validateRange(r, now); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, tx, r, bookingID); err != nil {
			return err
		}

		b, err := tx.Replace(ctx, bookingID, r, now)
		if err != nil {
			return err
		}
		event := domain.NewBookingEvent(domain.BookingEventRescheduled, b, s.newID(), requesterID, now).
			WithPrevious(current.Range())
		if err := s.appendEvent(ctx, tx, event); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, opReschedule, err)
	}

	metrics.RecordRescheduled(ctx, updated.SpotID)
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

// CancelBooking removes a booking that has not started
func (s *bookingService) CancelBooking(ctx context.Context, bookingID, requesterID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel")
	defer span.End()
	defer s.timed(ctx, opCancel)()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("user_id", requesterID),
	)

	existing, err := s.authorize(ctx, bookingID, requesterID)
	if err != nil {
		return s.fail(ctx, span, opCancel, err)
	}

	err = s.withinSpot(ctx, opCancel, existing.SpotID, func(ctx context.Context, tx repository.SpotTx) error {
		current, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if current.IsImmutableAt(now) {
			return &domain.ValidationError{Message: domain.MsgStartedNoDelete}
		}
		if err := tx.Remove(ctx, bookingID); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, domain.NewBookingEvent(domain.BookingEventCancelled, current, s.newID(), requesterID, now))
	})
	if err != nil {
		return s.fail(ctx, span, opCancel, err)
	}

	metrics.RecordCancelled(ctx, existing.SpotID)
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetBooking returns a booking to its holder or the spot's owner
func (s *bookingService) GetBooking(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get")
	defer span.End()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if b.BelongsToUser(requesterID) {
		return b, nil
	}
	spot, err := s.spots.GetSpot(ctx, b.SpotID)
	if err != nil && !domain.IsNotFoundError(err) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if spot == nil || !spot.IsOwnedBy(requesterID) {
		span.SetStatus(codes.Error, "forbidden")
		return nil, domain.ErrNotBookingOwner
	}
	return b, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID string) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list_user")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	bookings, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(bookings)))
	return bookings, nil
}

func (s *bookingService) ListSpotBookings(ctx context.Context, spotID, requesterID string) (*SpotBookings, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list_spot")
	defer span.End()
	span.SetAttributes(attribute.String("spot_id", spotID))

	spot, err := s.spots.GetSpot(ctx, spotID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	bookings, err := s.store.ListBySpot(ctx, spotID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &SpotBookings{SpotID: spotID, IsOwner: spot.IsOwnedBy(requesterID), Bookings: bookings}, nil
}

// authorize loads the booking and applies the configured policy
func (s *bookingService) authorize(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.BelongsToUser(requesterID) {
		return b, nil
	}
	if s.auth != domain.AuthBookingOrSpotOwner {
		return nil, domain.ErrNotBookingOwner
	}

	spot, err := s.spots.GetSpot(ctx, b.SpotID)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, err
	}
	if !s.auth.Allows(b, spot, requesterID) {
		return nil, domain.ErrNotBookingOwner
	}
	return b, nil
}

func (s *bookingService) checkConflicts(ctx context.Context, tx repository.SpotTx, r domain.DateRange, excludeID string) error {
	conflicts, err := tx.FindConflicts(ctx, r.ConflictWindow(s.boundary), excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (s *bookingService) appendEvent(ctx context.Context, tx repository.SpotTx, event *domain.BookingEvent) error {
	msg, err := domain.BookingOutboxMessage(event, s.topic)
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, msg)
}

// withinSpot runs fn in the spot's critical section, retrying only on contention
func (s *bookingService) withinSpot(ctx context.Context, op, spotID string, fn func(ctx context.Context, tx repository.SpotTx) error) error {
	result := retry.New(s.retryCfg).DoWithCallback(ctx, func(ctx context.Context) error {
		return s.store.WithinSpot(ctx, spotID, fn)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RecordRetry(ctx, op)
		logger.Get().Debug("spot busy, retrying",
			zap.String("operation", op),
			zap.String("spot_id", spotID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
		)
	})
	if errors.Is(result.Err, retry.ErrContextCanceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return result.Err
}

// validateRange applies the temporal rules shared by create and reschedule
func validateRange(r domain.DateRange, now time.Time) error {
	fields := map[string]string{}
	switch {
	case r.Start.IsZero():
		fields["startDate"] = domain.MsgStartRequired
	case r.Start.Before(domain.NormalizeDate(now)):
		fields["startDate"] = domain.MsgStartInPast
	}
	switch {
	case r.End.IsZero():
		fields["endDate"] = domain.MsgEndRequired
	case !r.Start.IsZero() && !r.IsValid():
		fields["endDate"] = domain.MsgEndBeforeStart
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Message: domain.MsgValidationSummary, Fields: fields}
	}
	return nil
}

func (s *bookingService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	reason := rejectionReason(err)
	metrics.RecordRejected(ctx, op, reason)
	span.SetAttributes(attribute.String("rejection_reason", reason))

	if reason == metrics.ReasonInternal || reason == metrics.ReasonContention {
		telemetry.RecordError(span, err)
		logger.Get().Error("booking operation failed",
			zap.String("operation", op),
			zap.String("trace_id", telemetry.GetTraceID(ctx)),
			zap.Error(err),
		)
	} else {
		span.SetStatus(codes.Error, reason)
	}
	return err
}

func (s *bookingService) timed(ctx context.Context, op string) func() {
	start := time.Now()
	return func() { metrics.RecordDuration(ctx, op, time.Since(start)) }
}

func rejectionReason(err error) string {
	switch {
	case domain.IsNotFoundError(err):
		return metrics.ReasonNotFound
	case domain.IsAuthorizationError(err):
		return metrics.ReasonUnauthorized
	case domain.IsValidationError(err):
		return metrics.ReasonValidation
	case domain.IsConflictError(err):
		return metrics.ReasonConflict
	case repository.IsContention(err):
		return metrics.ReasonContention
	}
	return metrics.ReasonInternal
}
