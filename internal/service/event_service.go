package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// EventCatalog is the non-transactional part of event persistence.
type EventCatalog interface {
	Create(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context, f model.EventFilter) ([]model.Event, int, error)
}

// EventService orchestrates event-related business operations.
type EventService struct {
	store      repository.Store
	catalog    EventCatalog
	dispatcher Dispatcher
	logger     *zap.Logger
	opts       options
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	store repository.Store,
	catalog EventCatalog,
	dispatcher Dispatcher,
	logger *zap.Logger,
	opts ...Option,
) *EventService {
	return &EventService{
		store:      store,
		catalog:    catalog,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       buildOptions(opts),
	}
}

// CreateEvent validates the request and delegates to the catalog.
func (s *EventService) CreateEvent(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", model.ErrInvalidInput)
	}
	if req.MaxCapacity <= 0 {
		return nil, fmt.Errorf("%w: max capacity must be a positive integer", model.ErrInvalidInput)
	}

	event, err := s.catalog.Create(ctx, creatorID, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("creator_id", creatorID),
		zap.Int("max_capacity", event.MaxCapacity),
	)
	return event, nil
}

// ListEvents returns one page of events.
func (s *EventService) ListEvents(ctx context.Context, f model.EventFilter) (*model.EventPage, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	events, total, err := s.catalog.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return &model.EventPage{
		Events:     events,
		Pagination: model.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// UpdateCapacity changes an event's max capacity and recomputes its available
// spots from a recount of confirmed reservations. The event row stays locked
// for the whole recount, so admissions for the event wait for it.
func (s *EventService) UpdateCapacity(
	ctx context.Context,
	eventID, requesterID string,
	requesterIsAdmin bool,
	maxCapacity int,
) (*model.Event, error) {
	if maxCapacity <= 0 {
		return nil, fmt.Errorf("%w: max capacity must be a positive integer", model.ErrInvalidInput)
	}

	var (
		updated model.Event
		change  model.CapacityChange
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID && !requesterIsAdmin {
			return model.ErrNotAuthorized
		}

		confirmed, err := tx.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		if maxCapacity < confirmed {
			return fmt.Errorf("%w: %d confirmed", model.ErrCapacityBelowConfirmed, confirmed)
		}

		available := maxCapacity - confirmed
		if err := tx.SetCapacity(ctx, eventID, maxCapacity, available); err != nil {
			return err
		}

		change = model.CapacityChange{
			EventID:     eventID,
			Delta:       available - event.AvailableSpots,
			Previous:    event.AvailableSpots,
			Available:   available,
			MaxCapacity: maxCapacity,
		}
		updated = *event
		updated.MaxCapacity = maxCapacity
		updated.AvailableSpots = available
		updated.UpdatedAt = s.opts.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event capacity updated",
		zap.String("event_id", eventID),
		zap.Int("max_capacity", maxCapacity),
		zap.Int("available_spots", change.Available),
	)
	s.dispatcher.Dispatch(ctx, thresholdNotifications(change, s.opts.now())...)
	return &updated, nil
}

// VerifyCapacity recounts confirmed reservations and reports whether the
// stored counter agrees. A mismatch is returned as *model.IntegrityError and is
// never corrected here.
func (s *EventService) VerifyCapacity(ctx context.Context, eventID string) (*model.CapacityReport, error) {
	var report model.CapacityReport
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		confirmed, err := tx.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		report = model.CapacityReport{
			EventID:        eventID,
			MaxCapacity:    event.MaxCapacity,
			AvailableSpots: event.AvailableSpots,
			Confirmed:      confirmed,
		}
		report.Consistent = event.AvailableSpots == event.MaxCapacity-confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		s.logger.Error("capacity integrity violation",
			zap.String("event_id", eventID),
			zap.Int("available_spots", report.AvailableSpots),
			zap.Int("max_capacity", report.MaxCapacity),
			zap.Int("confirmed", report.Confirmed),
		)
		return &report, &model.IntegrityError{
			EventID:        eventID,
			AvailableSpots: report.AvailableSpots,
			MaxCapacity:    report.MaxCapacity,
			Confirmed:      report.Confirmed,
			Reason:         "available spots out of sync with confirmed reservations",
		}
	}
	return &report, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
