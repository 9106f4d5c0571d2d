package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	// Lookup errors
	ErrSpotNotFound    = errors.New("Spot couldn't be found")
	ErrBookingNotFound = errors.New("Booking couldn't be found")

	// Authorization errors
	ErrOwnSpot         = errors.New("Spot must not belong to user")
	ErrNotBookingOwner = errors.New("Forbidden: Booking doesn't belong to the user")

	// ErrValidation is wrapped by every *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrBookingConflict is wrapped by every *ConflictError
	ErrBookingConflict = errors.New("Sorry, this spot is already booked for the specified dates")

	// ErrContention means the per-spot critical section could not be entered in time
	ErrContention = errors.New("booking store is busy, try again")
)

// Validation messages surfaced to clients
const (
	MsgStartRequired     = "Start date is required"
	MsgEndRequired       = "End date is required"
	MsgStartInPast       = "startDate cannot be in the past"
	MsgEndBeforeStart    = "endDate cannot be on or before startDate"
	MsgStartedNoUpdate   = "Bookings that have started can't be updated"
	MsgStartedNoDelete   = "Bookings that have been started can't be deleted"
	MsgStartConflict     = "Start date conflicts with an existing booking"
	MsgEndConflict       = "End date conflicts with an existing booking"
	MsgValidationSummary = "Bad Request"
)

// ValidationError reports input that is out of policy. Fields maps a request
// field to the reason it was rejected; Message is set for whole-request failures.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Message: MsgValidationSummary, Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError lists the committed bookings that intersect a requested range
type ConflictError struct {
	Conflicts []*Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting booking(s)", ErrBookingConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrBookingConflict }

// Fields returns the per-field messages clients expect with a conflict
func (e *ConflictError) Fields() map[string]string {
	return map[string]string{
		"startDate": MsgStartConflict,
		"endDate":   MsgEndConflict,
	}
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSpotNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}

// IsAuthorizationError checks if the requester lacks rights
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrOwnSpot) ||
		errors.Is(err, ErrNotBookingOwner)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflictError checks if the error is an overlap conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrBookingConflict)
}

// AsValidationError extracts a *ValidationError from err
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsConflictError extracts a *ConflictError from err
func AsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}
