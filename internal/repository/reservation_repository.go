package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const (
	reservationColumns = `id, event_id, user_id, status, reservation_date, created_at, updated_at`
	uniqueViolation    = "23505"
)

var reservationSelect = []any{
	"id", "event_id", "user_id", "status", "reservation_date", "created_at", "updated_at",
}

// ReservationRepository handles read-only reservation queries outside the
// admission transaction.
type ReservationRepository struct {
	db *pgxpool.Pool
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetByID returns a single reservation or ErrReservationNotFound.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := scanReservation(r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`,
		id,
	), &res)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// ListByUser returns a user's confirmed reservations, newest first.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return r.query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE user_id = $1 AND status = $2
		 ORDER BY reservation_date DESC`,
		userID, string(model.StatusConfirmed),
	)
}

// ListByEvent returns an event's confirmed reservations, oldest first.
func (r *ReservationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	return r.query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY reservation_date ASC`,
		eventID, string(model.StatusConfirmed),
	)
}

// List returns one page of reservations matching f and the total match count.
func (r *ReservationRepository) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error) {
	var where []exp.Expression
	if f.Status != model.StatusNone {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.EventID != "" {
		where = append(where, goqu.C("event_id").Eq(f.EventID))
	}
	if f.UserID != "" {
		where = append(where, goqu.C("user_id").Eq(f.UserID))
	}

	countSQL, countArgs, err := dialect.From("reservations").
		Select(goqu.COUNT("*")).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count reservations: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	listSQL, listArgs, err := dialect.From("reservations").
		Select(reservationSelect...).
		Where(where...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(uint(f.Limit)).
		Offset(uint((f.Page - 1) * f.Limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list reservations: %w", err)
	}

	res, err := r.query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// LockReservation reads the (event, user) row with SELECT … FOR UPDATE.
func (t *pgTx) LockReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	var res model.Reservation
	err := scanReservation(t.tx.QueryRow(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE event_id = $1 AND user_id = $2
		 FOR UPDATE`,
		eventID, userID,
	), &res)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReservationNotFound
		}
		return nil, fmt.Errorf("lock reservation row: %w", err)
	}
	return &res, nil
}

func (t *pgTx) LockReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := scanReservation(t.tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`,
		id,
	), &res)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReservationNotFound
		}
		return nil, fmt.Errorf("lock reservation row: %w", err)
	}
	return &res, nil
}

// InsertReservation relies on the (event_id, user_id) unique constraint: a
// concurrent first reservation by the same user blocks here until the other
// transaction ends and then fails with ErrAlreadyReserved.
func (t *pgTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.EventID, res.UserID, string(res.Status), res.ReservationDate, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrAlreadyReserved
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateReservationStatus(ctx context.Context, res *model.Reservation) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE reservations
		 SET status = $2, reservation_date = $3, updated_at = $4
		 WHERE id = $1`,
		res.ID, string(res.Status), res.ReservationDate, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrReservationNotFound
	}
	return nil
}

func scanReservation(row pgx.Row, res *model.Reservation) error {
	var status string
	if err := row.Scan(
		&res.ID, &res.EventID, &res.UserID, &status, &res.ReservationDate, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return err
	}
	res.Status = model.ReservationStatus(status)
	return nil
}
