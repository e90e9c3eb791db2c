package service

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// memStore is a serialisable in-memory Store: each transaction works on a
// copy of the data under one lock and swaps it in on success.
type memStore struct {
	mu           sync.Mutex
	events       map[string]model.Event
	reservations map[string]model.Reservation
}

func newMemStore(events ...model.Event) *memStore {
	s := &memStore{
		events:       map[string]model.Event{},
		reservations: map[string]model.Reservation{},
	}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *memStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &e, nil
}

func (s *memStore) GetReservation(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return &r, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		events:       make(map[string]model.Event, len(s.events)),
		reservations: make(map[string]model.Reservation, len(s.reservations)),
	}
	for k, v := range s.events {
		tx.events[k] = v
	}
	for k, v := range s.reservations {
		tx.reservations[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.events, s.reservations = tx.events, tx.reservations
	return nil
}

func (s *memStore) event(id string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memStore) reservation(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id]
}

func (s *memStore) put(r model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
}

type memTx struct {
	events       map[string]model.Event
	reservations map[string]model.Reservation
}

func (t *memTx) LockReservation(_ context.Context, eventID, userID string) (*model.Reservation, error) {
	for _, r := range t.reservations {
		if r.EventID == eventID && r.UserID == userID {
			return &r, nil
		}
	}
	return nil, model.ErrReservationNotFound
}

func (t *memTx) LockReservationByID(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.reservations[id]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return &r, nil
}

func (t *memTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if _, err := t.LockReservation(ctx, r.EventID, r.UserID); err == nil {
		return model.ErrAlreadyReserved
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReservationStatus(_ context.Context, r *model.Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		return model.ErrReservationNotFound
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) ApplyDelta(_ context.Context, eventID string, delta int) (model.CapacityChange, error) {
	change := model.CapacityChange{EventID: eventID, Delta: delta}
	e, ok := t.events[eventID]
	if !ok {
		return change, model.ErrEventNotFound
	}
	change.MaxCapacity = e.MaxCapacity
	change.Previous = e.AvailableSpots

	switch {
	case delta == -1 && e.AvailableSpots <= 0:
		return change, model.ErrCapacityExhausted
	case delta == +1 && e.AvailableSpots >= e.MaxCapacity:
		return change, &model.IntegrityError{
			EventID:        eventID,
			AvailableSpots: e.AvailableSpots,
			MaxCapacity:    e.MaxCapacity,
			Confirmed:      -1,
			Reason:         "increment would exceed max capacity",
		}
	}

	e.AvailableSpots += delta
	t.events[eventID] = e
	change.Available = e.AvailableSpots
	return change, nil
}

func (t *memTx) LockEvent(_ context.Context, id string) (*model.Event, error) {
	e, ok := t.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &e, nil
}

func (t *memTx) CountConfirmed(_ context.Context, eventID string) (int, error) {
	n := 0
	for _, r := range t.reservations {
		if r.EventID == eventID && r.Status == model.StatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetCapacity(_ context.Context, eventID string, maxCapacity, availableSpots int) error {
	e, ok := t.events[eventID]
	if !ok {
		return model.ErrEventNotFound
	}
	e.MaxCapacity, e.AvailableSpots = maxCapacity, availableSpots
	t.events[eventID] = e
	return nil
}

// lateCommitStore replays the read-committed race where a concurrent reserve
// by the same user commits between this transaction's reservation lookup and
// its ledger call: the first LockReservation per transaction misses the row.
type lateCommitStore struct {
	*memStore
}

func (s lateCommitStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.memStore.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &lateCommitTx{Tx: tx})
	})
}

type lateCommitTx struct {
	repository.Tx
	looked bool
}

func (t *lateCommitTx) LockReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	if !t.looked {
		t.looked = true
		return nil, model.ErrReservationNotFound
	}
	return t.Tx.LockReservation(ctx, eventID, userID)
}

// recordingDispatcher keeps every dispatched notification in order.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, notifications ...model.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, notifications...)
}

func (d *recordingDispatcher) kinds(topic string) []model.NotificationKind {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []model.NotificationKind
	for _, n := range d.sent {
		if n.Topic == topic {
			out = append(out, n.Kind)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func newEvent(id string, maxCapacity int) model.Event {
	return model.Event{
		ID:             id,
		Name:           "Go meetup",
		EventDate:      time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC),
		MaxCapacity:    maxCapacity,
		AvailableSpots: maxCapacity,
		CreatorID:      "organizer",
	}
}
