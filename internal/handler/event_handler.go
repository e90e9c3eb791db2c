package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// EventService is the event use-case surface the handlers need.
type EventService interface {
	CreateEvent(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error)
	ListEvents(ctx context.Context, f model.EventFilter) (*model.EventPage, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateCapacity(ctx context.Context, eventID, requesterID string, requesterIsAdmin bool, maxCapacity int) (*model.Event, error)
	VerifyCapacity(ctx context.Context, eventID string) (*model.CapacityReport, error)
}

// EventHandler holds the HTTP handlers for events.
type EventHandler struct {
	svc    EventService
	logger *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// CreateEvent handles POST /events
// The caller becomes the event's creator.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), id.UserID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Supports search, location, start_date, end_date, page and limit query
// parameters.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.EventFilter{
		Search:   q.Get("search"),
		Location: q.Get("location"),
	}

	var err error
	if filter.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.StartDate, err = dateParam(q.Get("start_date")); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if filter.EndDate, err = dateParam(q.Get("end_date")); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be RFC 3339 or YYYY-MM-DD")
		return
	}

	page, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateCapacity handles PUT /events/{id}/capacity
// Only the creator or an admin may change capacity.
func (h *EventHandler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.UpdateCapacityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.svc.UpdateCapacity(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin(), req.MaxCapacity)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// VerifyCapacity handles GET /events/{id}/capacity/verify (admin)
// An out-of-sync counter is reported with 409 and the recount.
func (h *EventHandler) VerifyCapacity(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.VerifyCapacity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, model.ErrIntegrityViolation) && report != nil {
			writeJSON(w, http.StatusConflict, report)
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func dateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
