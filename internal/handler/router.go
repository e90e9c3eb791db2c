package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/metrics"
)

// Routes collects everything the router mounts.
type Routes struct {
	Events       *EventHandler
	Reservations *ReservationHandler
	Streams      *StreamHandler
	Health       http.Handler
	Metrics      http.Handler
	Auth         *Authenticator
	Recorder     *metrics.Metrics
	Logger       *zap.Logger
}

// NewRouter builds the chi router for the reservation API.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(rt.Logger))       // structured access log
	r.Use(Instrument(rt.Recorder)) // latency histogram per route
	r.Use(CORS)

	r.Get("/health", rt.Health.ServeHTTP)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}

	r.Route("/events", func(r chi.Router) {
		r.Get("/", rt.Events.ListEvents)
		r.Get("/{id}", rt.Events.GetEvent)
		r.Get("/{id}/stream", rt.Streams.EventStream)

		r.Group(func(r chi.Router) {
			r.Use(rt.Auth.Middleware)
			r.Post("/", rt.Events.CreateEvent)
			r.Put("/{id}/capacity", rt.Events.UpdateCapacity)
			r.Post("/{id}/reserve", rt.Reservations.Reserve)

			r.With(RequireAdmin).Get("/{id}/capacity/verify", rt.Events.VerifyCapacity)
			r.With(RequireAdmin).Get("/{id}/reservations", rt.Reservations.ListForEvent)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(rt.Auth.Middleware)

		r.Get("/reservations/{id}", rt.Reservations.GetReservation)
		r.Delete("/reservations/{id}", rt.Reservations.Cancel)

		r.Get("/me/reservations", rt.Reservations.ListMine)
		r.Get("/me/stream", rt.Streams.UserStream)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/reservations", rt.Reservations.ListAll)
			r.Put("/reservations/{id}", rt.Reservations.AdminUpdate)
		})
	})

	return r
}
