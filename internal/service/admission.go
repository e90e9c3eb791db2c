// Package service implements reservation admission, capacity accounting and
// the event and reservation use cases around them.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/metrics"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

const (
	opReserve        = "reserve"
	opCancel         = "cancel"
	opAdminSetStatus = "admin_set_status"
)

// Dispatcher fans notifications out after the owning transaction committed.
// It must return without waiting for delivery, may wait only a bounded time
// (never past ctx) for queue room, and never reports delivery failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, notifications ...model.Notification)
}

// Option configures a service.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithMetrics records operation outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AdmissionService decides whether reservation requests are admitted and keeps
// reservation rows and the event's spot counter consistent.
type AdmissionService struct {
	store      repository.Store
	dispatcher Dispatcher
	logger     *zap.Logger
	tracer     trace.Tracer
	opts       options
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(store repository.Store, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *AdmissionService {
	return &AdmissionService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer("service/admission"),
		opts:       buildOptions(opts),
	}
}

// Reserve confirms a spot for userID at eventID.
func (s *AdmissionService) Reserve(ctx context.Context, eventID, userID string) (res *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.Reserve",
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)
	defer func() { s.finish(span, opReserve, err) }()

	if _, err = s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var change model.CapacityChange
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockReservation(ctx, eventID, userID)
		if err != nil && !errors.Is(err, model.ErrReservationNotFound) {
			return err
		}
		res, change, err = s.transition(ctx, tx, current, eventID, userID, model.StatusConfirmed)
		if errors.Is(err, model.ErrCapacityExhausted) && current == nil {
			return s.heldByConcurrentReserve(ctx, tx, eventID, userID, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", res.ID),
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.Int("available_spots", change.Available),
	)
	s.dispatcher.Dispatch(ctx, s.notifications(res, change)...)
	return res, nil
}

// Cancel releases the spot held by a reservation. Only the owner or an admin
// may cancel.
func (s *AdmissionService) Cancel(ctx context.Context, reservationID, requesterID string, requesterIsAdmin bool) (res *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.Cancel",
		attribute.String("reservation_id", reservationID),
		attribute.String("requester_id", requesterID),
		attribute.Bool("requester_is_admin", requesterIsAdmin),
	)
	defer func() { s.finish(span, opCancel, err) }()

	var change model.CapacityChange
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockReservationByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if current.UserID != requesterID && !requesterIsAdmin {
			return model.ErrNotAuthorized
		}
		res, change, err = s.transition(ctx, tx, current, current.EventID, current.UserID, model.StatusCanceled)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation canceled",
		zap.String("reservation_id", res.ID),
		zap.String("event_id", res.EventID),
		zap.String("requester_id", requesterID),
		zap.Int("available_spots", change.Available),
	)
	s.dispatcher.Dispatch(ctx, s.notifications(res, change)...)
	return res, nil
}

// AdminSetStatus forces a reservation into target without an ownership check.
// The capacity rules still apply.
func (s *AdmissionService) AdminSetStatus(ctx context.Context, reservationID string, target model.ReservationStatus) (res *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.AdminSetStatus",
		attribute.String("reservation_id", reservationID),
		attribute.String("target_status", string(target)),
	)
	defer func() { s.finish(span, opAdminSetStatus, err) }()

	if !target.Valid() {
		return nil, model.ErrInvalidStatus
	}

	var change model.CapacityChange
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockReservationByID(ctx, reservationID)
		if err != nil {
			return err
		}
		res, change, err = s.transition(ctx, tx, current, current.EventID, current.UserID, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation status set by admin",
		zap.String("reservation_id", res.ID),
		zap.String("status", string(res.Status)),
		zap.Int("available_spots", change.Available),
	)
	s.dispatcher.Dispatch(ctx, s.notifications(res, change)...)
	return res, nil
}

// heldByConcurrentReserve re-reads the (event, user) row after the ledger
// refused the last spot. A first reserve by the same user that committed while
// this one waited on the event row took that spot, so the caller already holds
// it and gets ErrAlreadyReserved instead of exhausted.
func (s *AdmissionService) heldByConcurrentReserve(ctx context.Context, tx repository.Tx, eventID, userID string, exhausted error) error {
	held, err := tx.LockReservation(ctx, eventID, userID)
	if errors.Is(err, model.ErrReservationNotFound) {
		return exhausted
	}
	if err != nil {
		return err
	}
	if held.Status == model.StatusConfirmed {
		return model.ErrAlreadyReserved
	}
	return exhausted
}

// transition moves current (nil when no row exists) to target, charging the
// capacity ledger before the reservation row is written. Any error aborts the
// surrounding transaction.
func (s *AdmissionService) transition(
	ctx context.Context,
	tx repository.Tx,
	current *model.Reservation,
	eventID, userID string,
	target model.ReservationStatus,
) (*model.Reservation, model.CapacityChange, error) {
	status := model.StatusNone
	if current != nil {
		status = current.Status
	}

	delta, err := NextTransition(status, target)
	if err != nil {
		return nil, model.CapacityChange{}, err
	}

	change, err := tx.ApplyDelta(ctx, eventID, delta)
	if err != nil {
		return nil, change, err
	}

	now := s.opts.now()
	if current == nil {
		res := &model.Reservation{
			ID:              uuid.New().String(),
			EventID:         eventID,
			UserID:          userID,
			Status:          target,
			ReservationDate: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return res, change, tx.InsertReservation(ctx, res)
	}

	res := *current
	res.Status = target
	res.UpdatedAt = now
	if target == model.StatusConfirmed {
		res.ReservationDate = now
	}
	return &res, change, tx.UpdateReservationStatus(ctx, &res)
}

// notifications lists what one committed transition fans out, in causal
// order: the reservation event first, then any threshold crossings.
func (s *AdmissionService) notifications(res *model.Reservation, change model.CapacityChange) []model.Notification {
	now := s.opts.now()

	kind := model.KindReservationConfirmed
	if res.Status == model.StatusCanceled {
		kind = model.KindReservationCanceled
	}

	out := []model.Notification{{
		Topic:          model.UserTopic(res.UserID),
		Kind:           kind,
		EventID:        res.EventID,
		UserID:         res.UserID,
		ReservationID:  res.ID,
		AvailableSpots: change.Available,
		MaxCapacity:    change.MaxCapacity,
		OccurredAt:     now,
	}}
	return append(out, thresholdNotifications(change, now)...)
}

func thresholdNotifications(change model.CapacityChange, now time.Time) []model.Notification {
	var out []model.Notification
	for _, kind := range Classify(change.Previous, change.Available, change.MaxCapacity) {
		out = append(out, model.Notification{
			Topic:          model.EventTopic(change.EventID),
			Kind:           kind,
			EventID:        change.EventID,
			AvailableSpots: change.Available,
			MaxCapacity:    change.MaxCapacity,
			OccurredAt:     now,
		})
	}
	return out
}

func (s *AdmissionService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

func (s *AdmissionService) finish(span trace.Span, operation string, err error) {
	s.opts.metrics.ObserveAdmission(operation, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("admission rejected",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	span.End()
}
