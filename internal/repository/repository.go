// Package repository implements all database queries for the event reservation system.
// It uses pgx directly for the transactional paths and goqu for filtered listings.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// Tx is the set of store operations available inside one transaction.
// Every Lock* call takes a row lock that is held until the transaction ends.
type Tx interface {
	// LockReservation returns the (event, user) reservation or ErrReservationNotFound.
	LockReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error)
	// LockReservationByID returns the reservation or ErrReservationNotFound.
	LockReservationByID(ctx context.Context, id string) (*model.Reservation, error)
	// InsertReservation stores a new row. A duplicate (event, user) pair fails
	// with ErrAlreadyReserved.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservationStatus(ctx context.Context, r *model.Reservation) error

	// ApplyDelta adjusts the event's available spots; see CapacityLedger.
	ApplyDelta(ctx context.Context, eventID string, delta int) (model.CapacityChange, error)

	LockEvent(ctx context.Context, id string) (*model.Event, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
	SetCapacity(ctx context.Context, eventID string, maxCapacity, availableSpots int) error
}

// Store is the transactional store collaborator used by the service layer.
type Store interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	// InTx runs fn in a read-committed transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PgStore implements Store on top of a pgx pool.
type PgStore struct {
	db           *pgxpool.Pool
	events       *EventRepository
	reservations *ReservationRepository
	ledger       *CapacityLedger
	logger       *zap.Logger
}

// NewStore constructs a PgStore.
func NewStore(db *pgxpool.Pool, logger *zap.Logger) *PgStore {
	return &PgStore{
		db:           db,
		events:       NewEventRepository(db),
		reservations: NewReservationRepository(db),
		ledger:       NewCapacityLedger(logger),
		logger:       logger,
	}
}

func (s *PgStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *PgStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

func (s *PgStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved, even if the caller gave up.
	defer func() {
		if err == nil {
			return
		}
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(ctx, &pgTx{tx: tx, ledger: s.ledger}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgTx binds the row-level queries to one open pgx transaction.
type pgTx struct {
	tx     pgx.Tx
	ledger *CapacityLedger
}

func (t *pgTx) ApplyDelta(ctx context.Context, eventID string, delta int) (model.CapacityChange, error) {
	return t.ledger.ApplyDelta(ctx, t.tx, eventID, delta)
}
