package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-admin/internal/appointment"
	"github.com/hackgods/clinic-admin/internal/auth"
	"github.com/hackgods/clinic-admin/internal/availability"
	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/snapshot"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/internal/views"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

const goodToken = "good-token"

var (
	now   = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	today = timefmt.DateOf(now)
)

type fakeAuth struct {
	AuthService
	admin    *auth.Admin
	signedIn string
}

func (f *fakeAuth) CurrentUser(_ context.Context, token string) (*auth.Admin, error) {
	if token != goodToken {
		return nil, auth.ErrInvalidSession
	}
	return f.admin, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) error {
	if password != "secret1" {
		return auth.ErrInvalidCredentials
	}
	f.signedIn = email
	return nil
}

func (f *fakeAuth) VerifyCode(_ context.Context, _, code string) (*auth.Session, error) {
	if code != "123456" {
		return nil, auth.ErrInvalidCode
	}
	return &auth.Session{Token: goodToken, Admin: f.admin}, nil
}

type fakeAppointments struct {
	AppointmentService
	scheduleErr error
	history     []appointment.Appointment
}

func (f *fakeAppointments) Schedule(_ context.Context, in appointment.Input) (*appointment.Appointment, error) {
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return &appointment.Appointment{ID: uuid.New(), Date: today, Start: timefmt.MustClock(in.Time), Status: appointment.StatusScheduled}, nil
}

func (f *fakeAppointments) ListForClient(context.Context, uuid.UUID) ([]appointment.Appointment, error) {
	return f.history, nil
}

type fakeClients struct {
	ClientService
	clients map[uuid.UUID]*client.Client
}

func (f *fakeClients) Get(_ context.Context, id uuid.UUID) (*client.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, client.ErrClientNotFound
	}
	return c, nil
}

type staticSnapshots struct {
	snap *snapshot.Snapshot
	err  error
}

func (s staticSnapshots) Get(context.Context) (*snapshot.Snapshot, error) {
	return s.snap, s.err
}

type env struct {
	handler      http.Handler
	appointments *fakeAppointments
	clients      *fakeClients
	auth         *fakeAuth
	snap         *snapshot.Snapshot
	therapist    therapist.Therapist
}

func newEnv(t *testing.T) *env {
	t.Helper()
	th := therapist.Therapist{ID: uuid.New(), Name: "Dana", Department: therapist.Speech1, IsActive: true}
	cl := client.Client{ID: uuid.New(), Name: "Amy", PaymentStatus: client.PaymentPaid}
	snap := &snapshot.Snapshot{
		Therapists: []therapist.Therapist{th},
		Clients:    []client.Client{cl},
		Appointments: []appointment.Appointment{
			{ID: uuid.New(), TherapistID: th.ID, ClientID: cl.ID, Date: today, Start: timefmt.MustClock("10:00"),
				Status: appointment.StatusScheduled, ClientName: "Amy", TherapistName: "Dana", Department: th.Department},
			{ID: uuid.New(), TherapistID: th.ID, ClientID: uuid.New(), Date: today, Start: timefmt.MustClock("10:30"),
				Status: appointment.StatusScheduled, ClientName: "Ben", TherapistName: "Dana", Department: th.Department},
		},
	}

	e := &env{
		appointments: &fakeAppointments{},
		clients:      &fakeClients{clients: map[uuid.UUID]*client.Client{cl.ID: &cl}},
		auth:         &fakeAuth{admin: &auth.Admin{ID: uuid.New(), Email: "admin@clinic.test"}},
		snap:         snap,
		therapist:    th,
	}
	e.handler = NewRouter(RouterConfig{
		Clients:      e.clients,
		Appointments: e.appointments,
		Auth:         e.auth,
		Snapshots:    staticSnapshots{snap: snap},
		Projector:    views.NewProjector(time.UTC, time.Hour, availability.DefaultHours(), 10),
		Logger:       logging.Discard(),
		Postgres:     PingFunc(func(context.Context) error { return nil }),
		Redis:        PingFunc(func(context.Context) error { return nil }),
		Metrics:      http.NotFoundHandler(),
		Now:          func() time.Time { return now },
	})
	return e
}

func (e *env) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+goodToken)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthLive(t *testing.T) {
	rec := newEnv(t).do(http.MethodGet, "/health/live", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealthReadiness(t *testing.T) {
	down := PingFunc(func(context.Context) error { return errors.New("down") })
	up := PingFunc(func(context.Context) error { return nil })

	cases := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		code     int
		status   string
	}{
		{"all up", up, up, http.StatusOK, "ok"},
		{"redis down", up, down, http.StatusOK, "degraded"},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.postgres, tc.redis, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.status, decode[ReadinessResponse](t, rec).Status)
		})
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/clients", "/schedule/day", "/dashboard", "/auth/me"} {
		rec := e.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignInAndVerify(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/auth/sign-in", `{"email":"admin@clinic.test","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode[ErrorResponse](t, rec).Code)

	rec = e.do(http.MethodPost, "/auth/sign-in", `{"email":"admin@clinic.test","password":"secret1"}`, false)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "admin@clinic.test", e.auth.signedIn)

	rec = e.do(http.MethodPost, "/auth/verify", `{"email":"admin@clinic.test","code":"123456"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, goodToken, decode[auth.Session](t, rec).Token)

	rec = e.do(http.MethodGet, "/auth/me", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@clinic.test", decode[auth.Admin](t, rec).Email)
}

func TestCreateAppointmentErrors(t *testing.T) {
	body := `{"client_id":"` + uuid.NewString() + `","therapist_id":"` + uuid.NewString() + `","date":"2024-06-10","time":"10:00"}`
	conflict := &appointment.ConflictError{Conflict: appointment.Conflict{
		Type:    appointment.ConflictTherapistTime,
		Message: "Therapist already booked for client Amy (10:00 AM) at this time",
	}}

	cases := []struct {
		name string
		err  error
		code int
		tag  string
	}{
		{"conflict", conflict, http.StatusConflict, "conflict"},
		{"lock held", appointment.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
		{"on leave", &appointment.OnLeaveError{Therapist: "Dana", Date: today}, http.StatusUnprocessableEntity, "therapist_on_leave"},
		{"expired", appointment.ErrClientExpired, http.StatusUnprocessableEntity, "client_expired"},
		{"invalid", validate.Errorf("time is required"), http.StatusBadRequest, "invalid_input"},
		{"missing client", appointment.ErrClientNotFound, http.StatusNotFound, "client_not_found"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			e.appointments.scheduleErr = tc.err
			rec := e.do(http.MethodPost, "/appointments", body, true)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.tag, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCreateAppointmentConflictBody(t *testing.T) {
	e := newEnv(t)
	e.appointments.scheduleErr = &appointment.ConflictError{Conflict: appointment.Conflict{
		Type:    appointment.ConflictClientTime,
		Message: "Client already has an appointment with Dana at this date and time",
	}}

	rec := e.do(http.MethodPost, "/appointments", `{}`, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, appointment.ConflictClientTime, resp.Conflict.Type)
	assert.Equal(t, resp.Conflict.Message, resp.Error)
}

func TestCreateAppointment(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/appointments", `{"time":"11:00"}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(http.MethodPost, "/appointments", `{not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClientIncludesHistory(t *testing.T) {
	e := newEnv(t)
	var id uuid.UUID
	for k := range e.clients.clients {
		id = k
	}
	e.appointments.history = e.snap.Appointments[:1]

	rec := e.do(http.MethodGet, "/clients/"+id.String(), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Client       client.Client     `json:"client"`
		Appointments []json.RawMessage `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Amy", body.Client.Name)
	assert.Len(t, body.Appointments, 1)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/clients/"+uuid.NewString(), "", true).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/clients/not-a-uuid", "", true).Code)
}

func TestScheduleDayView(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/schedule/day?date=2024-06-10", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var day struct {
		Date   string `json:"date"`
		Total  int    `json:"total"`
		Groups []struct {
			Entries []struct {
				Conflict bool `json:"conflict"`
			} `json:"entries"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, 2, day.Total)
	require.Len(t, day.Groups, 2)
	assert.True(t, day.Groups[0].Entries[0].Conflict)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/schedule/day?date=10/06/2024", "", true).Code)
}

func TestScheduleConflicts(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/schedule/conflicts", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	pairs := decode[[]json.RawMessage](t, rec)
	assert.Len(t, pairs, 1)
}

func TestFreeSlotsUnknownTherapist(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/therapists/"+uuid.NewString()+"/free-slots?date=2024-06-10", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/therapists/"+e.therapist.ID.String()+"/free-slots?date=2024-06-10&limit=3", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportAppointments(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/appointments/export", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="schedule-export-2024-06-10.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Date,Day,Time,Client,Client_Expiry,Therapist,Therapy,Status,Notes", lines[0])

	rec = e.do(http.MethodGet, "/appointments/export?status=completed", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardReport(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/dashboard/report", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Today's Appointments: 2")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clinic-report-2024-06-10.txt")
}

func TestSnapshotFailureIsInternal(t *testing.T) {
	h := NewRouter(RouterConfig{
		Auth:      &fakeAuth{admin: &auth.Admin{ID: uuid.New()}},
		Snapshots: staticSnapshots{err: errors.New("db down")},
		Projector: views.NewProjector(time.UTC, time.Hour, availability.DefaultHours(), 10),
		Logger:    logging.Discard(),
		Metrics:   http.NotFoundHandler(),
	})
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[ErrorResponse](t, rec).Error)
}
