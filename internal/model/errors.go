package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrReservationNotFound is returned when the referenced reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrCapacityExhausted is returned when an event has no spot left to hand out.
	// It is never retried automatically.
	ErrCapacityExhausted = errors.New("no available spots for this event")

	// ErrAlreadyReserved is returned when the (event, user) pair is already CONFIRMED.
	ErrAlreadyReserved = errors.New("reservation already confirmed for this event")

	// ErrAlreadyCanceled is returned when cancelling a reservation that is not CONFIRMED.
	ErrAlreadyCanceled = errors.New("reservation is already canceled")

	// ErrNotAuthorized is returned when the requester is neither the owner nor an admin.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrIntegrityViolation is returned when the stored spot counter disagrees with
	// the event's capacity. The transaction is aborted and nothing is corrected.
	ErrIntegrityViolation = errors.New("capacity integrity violation")

	// ErrCapacityBelowConfirmed is returned when a capacity update would drop
	// below the number of confirmed reservations.
	ErrCapacityBelowConfirmed = errors.New("capacity is below the number of confirmed reservations")

	// ErrInvalidStatus is returned for a status that cannot be stored.
	ErrInvalidStatus = errors.New("invalid reservation status")

	// ErrInvalidInput wraps request values rejected by the service layer.
	ErrInvalidInput = errors.New("invalid input")
)

// IntegrityError describes a spot counter that is out of bounds or out of sync
// with the confirmed reservations of an event. Confirmed is -1 when no recount
// was made.
type IntegrityError struct {
	EventID        string
	AvailableSpots int
	MaxCapacity    int
	Confirmed      int
	Reason         string
}

func (e *IntegrityError) Error() string {
	if e.Confirmed < 0 {
		return fmt.Sprintf("%s: event %s: %s (available=%d max=%d)",
			ErrIntegrityViolation, e.EventID, e.Reason, e.AvailableSpots, e.MaxCapacity)
	}
	return fmt.Sprintf("%s: event %s: %s (available=%d max=%d confirmed=%d)",
		ErrIntegrityViolation, e.EventID, e.Reason, e.AvailableSpots, e.MaxCapacity, e.Confirmed)
}

// Is makes errors.Is(err, ErrIntegrityViolation) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}
