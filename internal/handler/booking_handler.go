package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/internal/dto"
	"github.com/imanidev/VacayStay/internal/service"
	"github.com/imanidev/VacayStay/pkg/logger"
	"github.com/imanidev/VacayStay/pkg/middleware"
	"github.com/imanidev/VacayStay/pkg/response"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/imanidev/VacayStay/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookingService service.BookingService
	clock          service.Clock
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService, clock service.Clock) *BookingHandler {
	if clock == nil {
		clock = service.SystemClock
	}
	return &BookingHandler{
		bookingService: bookingService,
		clock:          clock,
	}
}

// RegisterRoutes mounts the booking API. mutating wraps the write endpoints.
func (h *BookingHandler) RegisterRoutes(v1 *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	write := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), hf)
	}

	spots := v1.Group("/spots/:spotId/bookings")
	{
		spots.GET("", h.ListSpotBookings)
		spots.POST("", write(h.CreateBooking)...)
	}

	bookings := v1.Group("/bookings")
	{
		bookings.GET("/current", h.ListCurrentUserBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id", write(h.RescheduleBooking)...)
		bookings.DELETE("/:id", write(h.CancelBooking)...)
	}
}

// CreateBooking handles POST /spots/:spotId/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.requester(c)
	if !ok {
		return
	}
	spotID := c.Param("spotId")
	span.SetAttributes(attribute.String("spot_id", spotID), attribute.String("user_id", userID))

	r, ok := h.bindRange(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid request")
		return
	}

	booking, err := h.bookingService.CreateBooking(ctx, spotID, userID, r)
	if err != nil {
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.FromDomain(booking, h.clock.Now()))
}

// RescheduleBooking handles PUT /bookings/:id
func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.reschedule")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.requester(c)
	if !ok {
		return
	}
	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID), attribute.String("user_id", userID))

	r, ok := h.bindRange(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid request")
		return
	}

	booking, err := h.bookingService.RescheduleBooking(ctx, bookingID, userID, r)
	if err != nil {
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromDomain(booking, h.clock.Now()))
}

// CancelBooking handles DELETE /bookings/:id
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.requester(c)
	if !ok {
		return
	}
	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID), attribute.String("user_id", userID))

	if err := h.bookingService.CancelBooking(ctx, bookingID, userID); err != nil {
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Message(c, http.StatusOK, "Successfully deleted")
}

// GetBooking handles GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, dto.FromDomain(booking, h.clock.Now()))
}

// ListCurrentUserBookings handles GET /bookings/current
func (h *BookingHandler) ListCurrentUserBookings(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}

	bookings, err := h.bookingService.ListUserBookings(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.List(c, dto.FromDomainList(bookings, h.clock.Now()), len(bookings))
}

// ListSpotBookings handles GET /spots/:spotId/bookings.
// The spot owner sees full bookings, everyone else only the occupied dates.
func (h *BookingHandler) ListSpotBookings(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}

	result, err := h.bookingService.ListSpotBookings(c.Request.Context(), c.Param("spotId"), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if result.IsOwner {
		response.List(c, dto.FromDomainList(result.Bookings, h.clock.Now()), len(result.Bookings))
		return
	}
	response.List(c, dto.PublicFromDomainList(result.Bookings), len(result.Bookings))
}

func (h *BookingHandler) requester(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		response.Unauthorized(c, "Authentication required")
		return "", false
	}
	return userID, true
}

// bindRange decodes and validates a BookingRequest, writing a 400 on failure
func (h *BookingHandler) bindRange(c *gin.Context) (domain.DateRange, bool) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", domain.MsgValidationSummary, err.Error())
		return domain.DateRange{}, false
	}
	if fields := dto.Validate(&req); fields != nil {
		response.FieldErrors(c, http.StatusBadRequest, "VALIDATION_ERROR", domain.MsgValidationSummary, fields)
		return domain.DateRange{}, false
	}
	r, err := req.Range()
	if err != nil {
		response.BadRequest(c, err.Error())
		return domain.DateRange{}, false
	}
	return r, true
}

// handleError maps service errors to HTTP responses
func (h *BookingHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSpotNotFound), errors.Is(err, domain.ErrBookingNotFound):
		response.NotFound(c, err.Error())
	case domain.IsAuthorizationError(err):
		response.Forbidden(c, err.Error())
	case domain.IsValidationError(err):
		v, _ := domain.AsValidationError(err)
		msg := v.Message
		if msg == "" {
			msg = domain.MsgValidationSummary
		}
		response.FieldErrors(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, v.Fields)
	case domain.IsConflictError(err):
		ce, _ := domain.AsConflictError(err)
		response.Conflict(c, domain.ErrBookingConflict.Error(), ce.Fields(), dto.ConflictsFromDomain(ce.Conflicts))
	case errors.Is(err, domain.ErrContention), errors.Is(err, retry.ErrMaxRetriesExceeded):
		c.Header("Retry-After", "1")
		response.Error(c, http.StatusServiceUnavailable, "SPOT_BUSY", "Booking is temporarily unavailable, please retry", "")
	default:
		logger.Get().Error("unhandled booking error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		response.InternalError(c)
	}
}
