package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// CapacityLedger is the authoritative spot counter of an event.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY THE CHECK LIVES IN THE UPDATE
// ─────────────────────────────────────────────────────────────────────────────
//
// Read-then-write (BROKEN):
//
//	tx A: SELECT available_spots → 1
//	tx B: SELECT available_spots → 1
//	tx A: UPDATE available_spots = available_spots - 1 → 0
//	tx B: UPDATE available_spots = available_spots - 1 → -1   OVERBOOKED
//
// Conditional update:
//
//	UPDATE events SET available_spots = available_spots - 1
//	WHERE id = $1 AND available_spots > 0
//
// The UPDATE takes the row lock. Under READ COMMITTED a second transaction
// blocked on that lock re-evaluates the WHERE clause against the committed
// row once the first one finishes, so with one spot left exactly one of them
// gets a row back. The other sees zero rows and fails with ErrCapacityExhausted.
// ─────────────────────────────────────────────────────────────────────────────
type CapacityLedger struct {
	logger *zap.Logger
}

// NewCapacityLedger constructs a CapacityLedger.
func NewCapacityLedger(logger *zap.Logger) *CapacityLedger {
	return &CapacityLedger{logger: logger}
}

// ApplyDelta applies delta ∈ {-1, 0, +1} to the event's available spots inside
// the caller's transaction and returns the counter before and after.
func (l *CapacityLedger) ApplyDelta(ctx context.Context, tx pgx.Tx, eventID string, delta int) (model.CapacityChange, error) {
	change := model.CapacityChange{EventID: eventID, Delta: delta}

	switch delta {
	case -1:
		err := tx.QueryRow(ctx,
			`UPDATE events
			 SET available_spots = available_spots - 1, updated_at = NOW()
			 WHERE id = $1 AND available_spots > 0
			 RETURNING available_spots, max_capacity`,
			eventID,
		).Scan(&change.Available, &change.MaxCapacity)
		if errors.Is(err, pgx.ErrNoRows) {
			if _, _, err := l.current(ctx, tx, eventID); err != nil {
				return change, err
			}
			return change, model.ErrCapacityExhausted
		}
		if err != nil {
			return change, fmt.Errorf("decrement available_spots: %w", err)
		}
		change.Previous = change.Available + 1
		if change.Previous > change.MaxCapacity {
			return change, l.violation(eventID, change.Previous, change.MaxCapacity, "available spots above max capacity")
		}

	case +1:
		err := tx.QueryRow(ctx,
			`UPDATE events
			 SET available_spots = available_spots + 1, updated_at = NOW()
			 WHERE id = $1 AND available_spots < max_capacity
			 RETURNING available_spots, max_capacity`,
			eventID,
		).Scan(&change.Available, &change.MaxCapacity)
		if errors.Is(err, pgx.ErrNoRows) {
			available, maxCapacity, err := l.current(ctx, tx, eventID)
			if err != nil {
				return change, err
			}
			return change, l.violation(eventID, available, maxCapacity, "increment would exceed max capacity")
		}
		if err != nil {
			return change, fmt.Errorf("increment available_spots: %w", err)
		}
		change.Previous = change.Available - 1

	case 0:
		available, maxCapacity, err := l.current(ctx, tx, eventID)
		if err != nil {
			return change, err
		}
		change.Previous, change.Available, change.MaxCapacity = available, available, maxCapacity

	default:
		return change, fmt.Errorf("invalid capacity delta %d", delta)
	}

	return change, nil
}

func (l *CapacityLedger) current(ctx context.Context, tx pgx.Tx, eventID string) (available, maxCapacity int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT available_spots, max_capacity FROM events WHERE id = $1`,
		eventID,
	).Scan(&available, &maxCapacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, model.ErrEventNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read available_spots: %w", err)
	}
	return available, maxCapacity, nil
}

// violation logs loudly and returns the error that aborts the transaction.
// The counter is never clamped.
func (l *CapacityLedger) violation(eventID string, available, maxCapacity int, reason string) error {
	l.logger.Error("capacity integrity violation",
		zap.String("event_id", eventID),
		zap.Int("available_spots", available),
		zap.Int("max_capacity", maxCapacity),
		zap.String("reason", reason),
	)
	return &model.IntegrityError{
		EventID:        eventID,
		AvailableSpots: available,
		MaxCapacity:    maxCapacity,
		Confirmed:      -1,
		Reason:         reason,
	}
}
