package service

import (
	"context"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// ReservationReader is the read side of reservation persistence.
type ReservationReader interface {
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error)
}

// ReservationService answers reservation queries.
type ReservationService struct {
	store  repository.Store
	reader ReservationReader
}

// NewReservationService constructs a ReservationService.
func NewReservationService(store repository.Store, reader ReservationReader) *ReservationService {
	return &ReservationService{store: store, reader: reader}
}

// ListForUser returns the user's confirmed reservations.
func (s *ReservationService) ListForUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	res, err := s.reader.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return orEmpty(res), nil
}

// ListForEvent returns the event's confirmed reservations.
func (s *ReservationService) ListForEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	res, err := s.reader.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return orEmpty(res), nil
}

// ListAll returns one page of reservations for admins.
func (s *ReservationService) ListAll(ctx context.Context, f model.ReservationFilter) (*model.ReservationPage, error) {
	if f.Status != model.StatusNone && !f.Status.Valid() {
		return nil, model.ErrInvalidStatus
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	res, total, err := s.reader.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.ReservationPage{
		Reservations: orEmpty(res),
		Pagination:   model.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// GetReservation returns one reservation to its owner or an admin.
func (s *ReservationService) GetReservation(ctx context.Context, id, requesterID string, requesterIsAdmin bool) (*model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != requesterID && !requesterIsAdmin {
		return nil, model.ErrNotAuthorized
	}
	return res, nil
}

func orEmpty(res []model.Reservation) []model.Reservation {
	if res == nil {
		return []model.Reservation{}
	}
	return res
}
