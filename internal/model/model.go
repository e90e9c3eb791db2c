// Package model defines the core domain types for the event reservation system.
package model

import "time"

// Event represents a scheduled event with a bounded number of spots.
//
// AvailableSpots is stored redundantly for fast reads. It must always equal
// MaxCapacity minus the number of CONFIRMED reservations; a recount wins when
// the two disagree.
type Event struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	EventDate      time.Time `json:"event_date"`
	Location       string    `json:"location,omitempty"`
	OnlineLink     string    `json:"online_link,omitempty"`
	MaxCapacity    int       `json:"max_capacity"`
	AvailableSpots int       `json:"available_spots"`
	CreatorID      string    `json:"creator_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsFull returns true when no spots remain.
func (e *Event) IsFull() bool {
	return e.AvailableSpots <= 0
}

// ReservationStatus is the persisted state of a reservation row.
type ReservationStatus string

const (
	// StatusNone is the conceptual state of a (event, user) pair without a row.
	StatusNone      ReservationStatus = ""
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCanceled  ReservationStatus = "CANCELED"
)

// Valid reports whether s can be stored on a reservation row.
func (s ReservationStatus) Valid() bool {
	return s == StatusConfirmed || s == StatusCanceled
}

// Reservation is a user's spot at an event. There is at most one row per
// (EventID, UserID); cancellation flips the status instead of deleting it.
type Reservation struct {
	ID              string            `json:"id"`
	EventID         string            `json:"event_id"`
	UserID          string            `json:"user_id"`
	Status          ReservationStatus `json:"status"`
	ReservationDate time.Time         `json:"reservation_date"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CapacityChange is the outcome of applying a capacity delta to an event.
type CapacityChange struct {
	EventID     string
	Delta       int
	Previous    int
	Available   int
	MaxCapacity int
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Location    string    `json:"location" validate:"max=500"`
	OnlineLink  string    `json:"online_link" validate:"omitempty,url"`
	MaxCapacity int       `json:"max_capacity" validate:"required,gt=0,lte=100000"`
}

// UpdateCapacityRequest is the payload for changing an event's capacity.
type UpdateCapacityRequest struct {
	MaxCapacity int `json:"max_capacity" validate:"required,gt=0,lte=100000"`
}

// AdminUpdateReservationRequest is the payload for forcing a reservation status.
type AdminUpdateReservationRequest struct {
	Status ReservationStatus `json:"status" validate:"required,oneof=CONFIRMED CANCELED"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	Search    string
	Location  string
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

// ReservationFilter narrows the admin reservation listing.
type ReservationFilter struct {
	Status  ReservationStatus
	EventID string
	UserID  string
	Page    int
	Limit   int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// EventPage is a page of events.
type EventPage struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}

// ReservationPage is a page of reservations.
type ReservationPage struct {
	Reservations []Reservation `json:"reservations"`
	Pagination   Pagination    `json:"pagination"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// CapacityReport is the result of recounting an event's confirmed reservations.
type CapacityReport struct {
	EventID        string `json:"event_id"`
	MaxCapacity    int    `json:"max_capacity"`
	AvailableSpots int    `json:"available_spots"`
	Confirmed      int    `json:"confirmed"`
	Consistent     bool   `json:"consistent"`
}
