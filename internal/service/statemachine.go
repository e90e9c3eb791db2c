package service

import "github.com/Shivanand-hulikatti/event-reservations/internal/model"

// NextTransition validates moving a reservation from current to target and
// returns the capacity delta the move costs.
//
//	NONE      → CONFIRMED  -1
//	CANCELED  → CONFIRMED  -1
//	CONFIRMED → CANCELED   +1
//
// Every other pair is rejected so callers get an explicit signal for stale or
// duplicate requests.
func NextTransition(current, target model.ReservationStatus) (int, error) {
	switch target {
	case model.StatusConfirmed:
		if current == model.StatusConfirmed {
			return 0, model.ErrAlreadyReserved
		}
		return -1, nil
	case model.StatusCanceled:
		if current != model.StatusConfirmed {
			return 0, model.ErrAlreadyCanceled
		}
		return +1, nil
	default:
		return 0, model.ErrInvalidStatus
	}
}
