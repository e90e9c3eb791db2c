package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

func Test_Outcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{model.ErrCapacityExhausted, "capacity_exhausted"},
		{fmt.Errorf("reserve: %w", model.ErrAlreadyReserved), "already_reserved"},
		{model.ErrAlreadyCanceled, "already_canceled"},
		{model.ErrNotAuthorized, "not_authorized"},
		{model.ErrEventNotFound, "not_found"},
		{model.ErrReservationNotFound, "not_found"},
		{&model.IntegrityError{EventID: "e1", Confirmed: -1}, "integrity_violation"},
		{model.ErrInvalidStatus, "invalid"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func Test_Metrics_CountsAdmissions(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAdmission("reserve", nil)
	m.ObserveAdmission("reserve", nil)
	m.ObserveAdmission("reserve", model.ErrCapacityExhausted)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues("reserve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("reserve", "capacity_exhausted")))
}

func Test_Metrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAdmission("reserve", nil)
		m.ObserveNotification(model.KindSoldOut, "published")
		m.SetQueueDepth(3)
		m.ObserveRequest(http.MethodGet, "/events", http.StatusOK, time.Millisecond)
	})
}

func Test_Metrics_ObservesRequestsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest(http.MethodPost, "/events/{id}/reserve", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/events/{id}/reserve", http.StatusConflict, 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.requests))
}
