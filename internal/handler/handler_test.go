package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const testSecret = "test-secret"

type fakeEvents struct {
	event      *model.Event
	report     *model.CapacityReport
	err        error
	lastFilter model.EventFilter
	lastMax    int
	lastAdmin  bool
}

func (f *fakeEvents) CreateEvent(_ context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Event{ID: "e1", Name: req.Name, MaxCapacity: req.MaxCapacity, AvailableSpots: req.MaxCapacity, CreatorID: creatorID}, nil
}

func (f *fakeEvents) ListEvents(_ context.Context, filter model.EventFilter) (*model.EventPage, error) {
	f.lastFilter = filter
	return &model.EventPage{Events: []model.Event{}}, f.err
}

func (f *fakeEvents) GetEvent(context.Context, string) (*model.Event, error) {
	return f.event, f.err
}

func (f *fakeEvents) UpdateCapacity(_ context.Context, _, _ string, admin bool, maxCapacity int) (*model.Event, error) {
	f.lastMax, f.lastAdmin = maxCapacity, admin
	return f.event, f.err
}

func (f *fakeEvents) VerifyCapacity(context.Context, string) (*model.CapacityReport, error) {
	return f.report, f.err
}

type fakeAdmission struct {
	err        error
	lastUser   string
	lastAdmin  bool
	lastStatus model.ReservationStatus
}

func (f *fakeAdmission) Reserve(_ context.Context, eventID, userID string) (*model.Reservation, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: "r1", EventID: eventID, UserID: userID, Status: model.StatusConfirmed}, nil
}

func (f *fakeAdmission) Cancel(_ context.Context, id, requesterID string, admin bool) (*model.Reservation, error) {
	f.lastUser, f.lastAdmin = requesterID, admin
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: id, Status: model.StatusCanceled}, nil
}

func (f *fakeAdmission) AdminSetStatus(_ context.Context, id string, target model.ReservationStatus) (*model.Reservation, error) {
	f.lastStatus = target
	if f.err != nil {
		return nil, f.err
	}
	return &model.Reservation{ID: id, Status: target}, nil
}

type fakeQueries struct {
	lastFilter model.ReservationFilter
}

func (f *fakeQueries) ListForUser(context.Context, string) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (f *fakeQueries) ListForEvent(context.Context, string) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (f *fakeQueries) ListAll(_ context.Context, filter model.ReservationFilter) (*model.ReservationPage, error) {
	f.lastFilter = filter
	return &model.ReservationPage{Reservations: []model.Reservation{}}, nil
}

func (f *fakeQueries) GetReservation(_ context.Context, id, _ string, _ bool) (*model.Reservation, error) {
	return &model.Reservation{ID: id}, nil
}

type fakeSubscriber struct {
	topics   []string
	payloads [][]byte
}

func (f *fakeSubscriber) Subscribe(_ context.Context, topics ...string) (<-chan []byte, func(), error) {
	f.topics = append(f.topics, topics...)
	ch := make(chan []byte, len(f.payloads))
	for _, p := range f.payloads {
		ch <- p
	}
	close(ch)
	return ch, func() {}, nil
}

type testAPI struct {
	router     http.Handler
	events     *fakeEvents
	admission  *fakeAdmission
	queries    *fakeQueries
	subscriber *fakeSubscriber
	healthErr  error
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		events:     &fakeEvents{event: &model.Event{ID: "e1"}},
		admission:  &fakeAdmission{},
		queries:    &fakeQueries{},
		subscriber: &fakeSubscriber{},
	}
	logger := zap.NewNop()
	api.router = NewRouter(Routes{
		Events:       NewEventHandler(api.events, logger),
		Reservations: NewReservationHandler(api.admission, api.queries, logger),
		Streams:      NewStreamHandler(api.subscriber, api.events, logger),
		Health: NewHealthHandler(map[string]HealthCheck{
			"postgres": func(context.Context) error { return api.healthErr },
		}),
		Auth:   NewAuthenticator(testSecret, logger),
		Logger: logger,
	})
	return api
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	return signToken(t, jwt.SigningMethodHS256, testSecret, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (api *testAPI) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func Test_Auth_RejectsMissingAndInvalidTokens(t *testing.T) {
	api := newTestAPI(t)

	expired := signToken(t, jwt.SigningMethodHS256, testSecret, Claims{
		UserID:           "alice",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	tests := []struct {
		name   string
		bearer string
	}{
		{name: "missing", bearer: ""},
		{name: "garbage", bearer: "not-a-jwt"},
		{name: "wrong_secret", bearer: signToken(t, jwt.SigningMethodHS256, "other", Claims{UserID: "alice"})},
		{name: "wrong_algorithm", bearer: signToken(t, jwt.SigningMethodHS512, testSecret, Claims{UserID: "alice"})},
		{name: "expired", bearer: expired},
		{name: "no_subject", bearer: signToken(t, jwt.SigningMethodHS256, testSecret, Claims{Role: "USER"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/events/e1/reserve", tt.bearer, "")

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, api.admission.lastUser)
		})
	}
}

func Test_Auth_SubjectFallbackAndQueryToken(t *testing.T) {
	api := newTestAPI(t)
	bySubject := signToken(t, jwt.SigningMethodHS256, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	})

	rec := api.do(http.MethodPost, "/events/e1/reserve?access_token="+bySubject, "", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bob", api.admission.lastUser)
}

func Test_Reserve_UsesCallerIdentity(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/events/e1/reserve", token(t, "alice", ""), "")

	require.Equal(t, http.StatusCreated, rec.Code)
	res := decodeBody[model.Reservation](t, rec)
	assert.Equal(t, "alice", res.UserID)
	assert.Equal(t, "e1", res.EventID)
	assert.Equal(t, model.StatusConfirmed, res.Status)
}

func Test_Reserve_MapsServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: model.ErrEventNotFound, want: http.StatusNotFound},
		{err: model.ErrCapacityExhausted, want: http.StatusConflict},
		{err: model.ErrAlreadyReserved, want: http.StatusConflict},
		{err: fmt.Errorf("%w: 3 confirmed", model.ErrCapacityBelowConfirmed), want: http.StatusConflict},
		{err: model.ErrNotAuthorized, want: http.StatusForbidden},
		{err: model.ErrInvalidStatus, want: http.StatusBadRequest},
		{err: &model.IntegrityError{EventID: "e1", Confirmed: -1}, want: http.StatusInternalServerError},
		{err: errors.New("dial tcp: connection refused"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			api := newTestAPI(t)
			api.admission.err = tt.err

			rec := api.do(http.MethodPost, "/events/e1/reserve", token(t, "alice", ""), "")

			assert.Equal(t, tt.want, rec.Code)
			body := decodeBody[model.ErrorResponse](t, rec)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
			} else {
				assert.Equal(t, tt.err.Error(), body.Error)
			}
		})
	}
}

func Test_Cancel_PassesAdminFlag(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodDelete, "/reservations/r1", token(t, "root", RoleAdmin), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", api.admission.lastUser)
	assert.True(t, api.admission.lastAdmin)
}

func Test_AdminRoutes_RequireAdminRole(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/admin/reservations", token(t, "alice", "USER"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/events/e1/capacity/verify", token(t, "alice", ""), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/admin/reservations?status=CANCELED&event_id=e1&page=2&limit=5", token(t, "root", RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ReservationFilter{
		Status:  model.StatusCanceled,
		EventID: "e1",
		Page:    2,
		Limit:   5,
	}, api.queries.lastFilter)
}

func Test_AdminUpdate_ValidatesStatus(t *testing.T) {
	api := newTestAPI(t)
	admin := token(t, "root", RoleAdmin)

	rec := api.do(http.MethodPut, "/admin/reservations/r1", admin, `{"status":"PENDING"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[model.ErrorResponse](t, rec)
	assert.Contains(t, body.Fields, "status")

	rec = api.do(http.MethodPut, "/admin/reservations/r1", admin, `{"status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusConfirmed, api.admission.lastStatus)
}

func Test_CreateEvent_Validation(t *testing.T) {
	api := newTestAPI(t)
	alice := token(t, "alice", "")

	rec := api.do(http.MethodPost, "/events", alice, `{"name":"Go","max_capacity":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[model.ErrorResponse](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "name")
	assert.Contains(t, body.Fields, "max_capacity")
	assert.Contains(t, body.Fields, "event_date")

	rec = api.do(http.MethodPost, "/events", alice, `{"name":"Go meetup","unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/events", alice,
		`{"name":"Go meetup","event_date":"2026-11-20T18:00:00Z","max_capacity":20}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	event := decodeBody[model.Event](t, rec)
	assert.Equal(t, "alice", event.CreatorID)
	assert.Equal(t, 20, event.AvailableSpots)
}

func Test_UpdateCapacity(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPut, "/events/e1/capacity", token(t, "organizer", ""), `{"max_capacity":50}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, api.events.lastMax)
	assert.False(t, api.events.lastAdmin)
}

func Test_ListEvents_ParsesQuery(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/events?search=go&location=Berlin&start_date=2026-11-01&end_date=2026-12-01T00:00:00Z&page=2&limit=10", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.EventFilter{
		Search:    "go",
		Location:  "Berlin",
		StartDate: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Page:      2,
		Limit:     10,
	}, api.events.lastFilter)

	rec = api.do(http.MethodGet, "/events?page=two", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/events?start_date=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_VerifyCapacity_ReportsDrift(t *testing.T) {
	api := newTestAPI(t)
	api.events.report = &model.CapacityReport{EventID: "e1", MaxCapacity: 10, AvailableSpots: 10, Confirmed: 1}
	api.events.err = &model.IntegrityError{EventID: "e1", AvailableSpots: 10, MaxCapacity: 10, Confirmed: 1}

	rec := api.do(http.MethodGet, "/events/e1/capacity/verify", token(t, "root", RoleAdmin), "")

	require.Equal(t, http.StatusConflict, rec.Code)
	report := decodeBody[model.CapacityReport](t, rec)
	assert.False(t, report.Consistent)
	assert.Equal(t, 1, report.Confirmed)
}

func Test_Health(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	api.healthErr = errors.New("connection refused")
	rec = api.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

func Test_CORS_Preflight(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodOptions, "/events/e1/reserve", "", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func Test_UserStream_RelaysNotifications(t *testing.T) {
	api := newTestAPI(t)
	api.subscriber.payloads = [][]byte{
		[]byte(`{"type":"reservation-confirmed","eventId":"e1","userId":"alice","availableSpots":4,"maxCapacity":5}`),
		[]byte(`{"type":"reservation-canceled","eventId":"e1","userId":"alice","availableSpots":5,"maxCapacity":5}`),
	}

	rec := api.do(http.MethodGet, "/me/stream", token(t, "alice", ""), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{model.UserTopic("alice")}, api.subscriber.topics)

	body := rec.Body.String()
	assert.Contains(t, body, "event: reservation-confirmed\ndata: {\"type\":\"reservation-confirmed\"")
	assert.Less(t,
		strings.Index(body, "event: reservation-confirmed"),
		strings.Index(body, "event: reservation-canceled"),
	)
}

func Test_EventStream_UnknownEvent(t *testing.T) {
	api := newTestAPI(t)
	api.events.err = model.ErrEventNotFound

	rec := api.do(http.MethodGet, "/events/missing/stream", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, api.subscriber.topics)
}
