package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// Admission performs the capacity-changing reservation operations.
type Admission interface {
	Reserve(ctx context.Context, eventID, userID string) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID, requesterID string, requesterIsAdmin bool) (*model.Reservation, error)
	AdminSetStatus(ctx context.Context, reservationID string, target model.ReservationStatus) (*model.Reservation, error)
}

// ReservationQueries answers read-only reservation requests.
type ReservationQueries interface {
	ListForUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListForEvent(ctx context.Context, eventID string) ([]model.Reservation, error)
	ListAll(ctx context.Context, f model.ReservationFilter) (*model.ReservationPage, error)
	GetReservation(ctx context.Context, id, requesterID string, requesterIsAdmin bool) (*model.Reservation, error)
}

// ReservationHandler holds the HTTP handlers for reservations.
type ReservationHandler struct {
	admission Admission
	queries   ReservationQueries
	logger    *zap.Logger
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(admission Admission, queries ReservationQueries, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{admission: admission, queries: queries, logger: logger}
}

// Reserve handles POST /events/{id}/reserve
// Confirms a spot for the caller. Reserving again after a cancel reuses the
// same reservation.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	res, err := h.admission.Reserve(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Cancel handles DELETE /reservations/{id}
// The owner or an admin may cancel.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	res, err := h.admission.Cancel(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetReservation handles GET /reservations/{id}
func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	res, err := h.queries.GetReservation(r.Context(), chi.URLParam(r, "id"), id.UserID, id.IsAdmin())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListMine handles GET /me/reservations
func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	res, err := h.queries.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListForEvent handles GET /events/{id}/reservations (admin)
func (h *ReservationHandler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	res, err := h.queries.ListForEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListAll handles GET /admin/reservations
// Supports status, event_id, user_id, page and limit query parameters.
func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.ReservationFilter{
		Status:  model.ReservationStatus(q.Get("status")),
		EventID: q.Get("event_id"),
		UserID:  q.Get("user_id"),
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

	page, err := h.queries.ListAll(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// AdminUpdate handles PUT /admin/reservations/{id}
// Forces a status; capacity rules still apply.
func (h *ReservationHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.AdminUpdateReservationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.admission.AdminSetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
