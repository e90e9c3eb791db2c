package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const eventColumns = `id, name, description, event_date, location, online_link,
	max_capacity, available_spots, creator_id, created_at, updated_at`

var dialect = goqu.Dialect("postgres")

var eventSelect = []any{
	"id", "name", "description", "event_date", "location", "online_link",
	"max_capacity", "available_spots", "creator_id", "created_at", "updated_at",
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event with every spot available.
func (r *EventRepository) Create(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	now := time.Now().UTC()
	event := &model.Event{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Description:    req.Description,
		EventDate:      req.EventDate.UTC(),
		Location:       req.Location,
		OnlineLink:     req.OnlineLink,
		MaxCapacity:    req.MaxCapacity,
		AvailableSpots: req.MaxCapacity,
		CreatorID:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Name, event.Description, event.EventDate, event.Location, event.OnlineLink,
		event.MaxCapacity, event.AvailableSpots, event.CreatorID, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns one page of events ordered by event date.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter) ([]model.Event, int, error) {
	var where []exp.Expression
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		where = append(where, goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("description").ILike(pattern),
		))
	}
	if f.Location != "" {
		where = append(where, goqu.C("location").ILike("%"+f.Location+"%"))
	}
	if !f.StartDate.IsZero() {
		where = append(where, goqu.C("event_date").Gte(f.StartDate))
	}
	if !f.EndDate.IsZero() {
		where = append(where, goqu.C("event_date").Lte(f.EndDate))
	}

	countSQL, countArgs, err := dialect.From("events").
		Select(goqu.COUNT("*")).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count events: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	listSQL, listArgs, err := dialect.From("events").
		Select(eventSelect...).
		Where(where...).
		Order(goqu.C("event_date").Asc(), goqu.C("id").Asc()).
		Limit(uint(f.Limit)).
		Offset(uint((f.Page - 1) * f.Limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list events: %w", err)
	}

	rows, err := r.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// LockEvent reads the event with SELECT … FOR UPDATE, blocking concurrent
// ledger updates on the same row until the transaction ends.
func (t *pgTx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
		id,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return &e, nil
}

func (t *pgTx) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = $1 AND status = $2`,
		eventID, string(model.StatusConfirmed),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed reservations: %w", err)
	}
	return n, nil
}

func (t *pgTx) SetCapacity(ctx context.Context, eventID string, maxCapacity, availableSpots int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET max_capacity = $2, available_spots = $3, updated_at = NOW()
		 WHERE id = $1`,
		eventID, maxCapacity, availableSpots,
	)
	if err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func scanEvent(row pgx.Row, e *model.Event) error {
	return row.Scan(
		&e.ID, &e.Name, &e.Description, &e.EventDate, &e.Location, &e.OnlineLink,
		&e.MaxCapacity, &e.AvailableSpots, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt,
	)
}
