package model

import (
	"fmt"
	"time"
)

// NotificationKind tags a Notification.
type NotificationKind string

const (
	KindReservationConfirmed NotificationKind = "reservation-confirmed"
	KindReservationCanceled  NotificationKind = "reservation-canceled"
	KindLowSpots             NotificationKind = "low-spots"
	KindSoldOut              NotificationKind = "event-sold-out"
	KindSpotsAvailable       NotificationKind = "spots-available"
)

// Notification is a fire-and-forget domain event fanned out after commit.
type Notification struct {
	Topic          string           `json:"-"`
	Kind           NotificationKind `json:"type"`
	EventID        string           `json:"eventId"`
	UserID         string           `json:"userId,omitempty"`
	ReservationID  string           `json:"reservationId,omitempty"`
	AvailableSpots int              `json:"availableSpots"`
	MaxCapacity    int              `json:"maxCapacity"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// UserTopic is the channel carrying a user's reservation notifications.
func UserTopic(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// EventTopic is the channel carrying an event's capacity notifications.
func EventTopic(eventID string) string {
	return fmt.Sprintf("event:%s", eventID)
}
