package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citago/internal/availability"
	"citago/internal/booking"
	"citago/internal/db"
	"citago/internal/model"
)

type stubLedger struct {
	bookErr   error
	cancelErr error
	lastBook  *booking.Request
}

func (s *stubLedger) Book(_ context.Context, req *booking.Request) (*model.Appointment, error) {
	s.lastBook = req
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	return &model.Appointment{
		ID:              "appt-1",
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		DoctorName:      "Dr. Vega",
		DoctorSpecialty: "Dermatology",
		DateTime:        req.DateTime,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Status:          model.StatusScheduled,
	}, nil
}

func (s *stubLedger) Cancel(_ context.Context, appointmentID, _ string) (*model.Appointment, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &model.Appointment{ID: appointmentID, Status: model.StatusCancelled}, nil
}

type stubResolver struct {
	dates    []string
	times    *availability.TimesResult
	err      error
	lastRef  time.Time
	lastDate string
}

func (s *stubResolver) ListAvailableDates(_ context.Context, _, _ string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.dates, nil
}

func (s *stubResolver) ListAvailableTimes(_ context.Context, _, date, _ string, _ int, referenceNow time.Time) (*availability.TimesResult, error) {
	s.lastDate = date
	s.lastRef = referenceNow
	if s.err != nil {
		return nil, s.err
	}
	return s.times, nil
}

type stubReader struct {
	appointments []model.Appointment
}

func (s *stubReader) ListPatientAppointments(_ context.Context, _ string, _ time.Time, _ bool) ([]model.Appointment, error) {
	return s.appointments, nil
}

func (s *stubReader) ListDoctorAppointments(_ context.Context, _ string, _ db.DoctorAppointmentFilter) ([]model.Appointment, error) {
	return s.appointments, nil
}

func (s *stubReader) ListAppointments(_ context.Context, _ db.AppointmentFilter) ([]model.Appointment, error) {
	return s.appointments, nil
}

func newTestServer(ledger *stubLedger, resolver *stubResolver, reader *stubReader) http.Handler {
	if ledger == nil {
		ledger = &stubLedger{}
	}
	if resolver == nil {
		resolver = &stubResolver{times: &availability.TimesResult{}}
	}
	if reader == nil {
		reader = &stubReader{}
	}
	s := NewServer(ledger, resolver, reader, nil, nil, nil, zerolog.Nop())
	return s.Router()
}

const validBookingBody = `{
	"doctor_id": "doc-1",
	"date_time": "2026-03-02T09:30:00Z",
	"duration_minutes": 30,
	"location": "Clinic A",
	"requester_id": "pat-1"
}`

func TestCreateAppointment(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		ledger := &stubLedger{}
		router := newTestServer(ledger, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(validBookingBody)))

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "appt-1", resp.ID)
		assert.Equal(t, "scheduled", resp.Status)

		require.NotNil(t, ledger.lastBook)
		assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), ledger.lastBook.DateTime)
	})

	t.Run("offset timestamps normalize to UTC", func(t *testing.T) {
		ledger := &stubLedger{}
		router := newTestServer(ledger, nil, nil)

		body := strings.Replace(validBookingBody, "2026-03-02T09:30:00Z", "2026-03-02T11:30:00+02:00", 1)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), ledger.lastBook.DateTime.UTC())
	})

	t.Run("malformed json", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing required fields", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(`{"doctor_id":"doc-1"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		body := strings.Replace(validBookingBody, "2026-03-02T09:30:00Z", "tomorrow", 1)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("domain errors map to statuses", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{"slot taken", booking.ErrSlotTaken, http.StatusBadRequest},
			{"outside schedule", booking.ErrSlotNotAvailable, http.StatusBadRequest},
			{"blocked", booking.ErrSlotBlocked, http.StatusBadRequest},
			{"validation", booking.ErrValidation, http.StatusBadRequest},
			{"doctor missing", booking.ErrNotFound, http.StatusNotFound},
			{"forbidden", booking.ErrForbidden, http.StatusForbidden},
			{"unknown", context.DeadlineExceeded, http.StatusInternalServerError},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				router := newTestServer(&stubLedger{bookErr: tc.err}, nil, nil)

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(validBookingBody)))

				assert.Equal(t, tc.want, rec.Code)

				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error)
			})
		}
	})
}

func TestCancelAppointment(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		router := newTestServer(&stubLedger{}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		req.Header.Set("X-Actor-ID", "pat-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
	})

	t.Run("missing actor header", func(t *testing.T) {
		router := newTestServer(&stubLedger{}, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/cancel", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("forbidden actor", func(t *testing.T) {
		router := newTestServer(&stubLedger{cancelErr: booking.ErrForbidden}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		req.Header.Set("X-Actor-ID", "stranger")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAvailableDates(t *testing.T) {
	t.Run("lists dates", func(t *testing.T) {
		resolver := &stubResolver{dates: []string{"2026-03-02", "2026-03-09"}}
		router := newTestServer(nil, resolver, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/doc-1/available-dates?location=Clinic+A", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp AvailableDatesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"2026-03-02", "2026-03-09"}, resp.Dates)
	})

	t.Run("missing location", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/doc-1/available-dates", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		router := newTestServer(nil, &stubResolver{err: booking.ErrNotFound}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/ghost/available-dates?location=Clinic+A", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAvailableTimes(t *testing.T) {
	t.Run("lists times", func(t *testing.T) {
		resolver := &stubResolver{times: &availability.TimesResult{Times: []string{"09:00", "09:30"}}}
		router := newTestServer(nil, resolver, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/doctors/doc-1/available-times?date=2026-03-02&location=Clinic+A&duration=30", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp AvailableTimesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"09:00", "09:30"}, resp.Times)
		assert.False(t, resp.IsFullyBooked)
		assert.Equal(t, "2026-03-02", resolver.lastDate)
	})

	t.Run("explicit reference instant", func(t *testing.T) {
		resolver := &stubResolver{times: &availability.TimesResult{}}
		router := newTestServer(nil, resolver, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/doctors/doc-1/available-times?date=2026-03-02&location=Clinic+A&duration=30&referenceNow=2026-03-02T10:15:00Z", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC), resolver.lastRef)
	})

	t.Run("missing parameters", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/doc-1/available-times?date=2026-03-02", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad duration", func(t *testing.T) {
		router := newTestServer(nil, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/doctors/doc-1/available-times?date=2026-03-02&location=Clinic+A&duration=soon", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAppointmentListings(t *testing.T) {
	reader := &stubReader{appointments: []model.Appointment{
		{ID: "a1", DoctorID: "doc-1", Status: model.StatusScheduled},
		{ID: "a2", DoctorID: "doc-1", Status: model.StatusScheduled},
	}}
	router := newTestServer(nil, nil, reader)

	for _, path := range []string{
		"/api/patients/pat-1/appointments",
		"/api/doctors/doc-1/appointments?upcoming=true",
		"/api/appointments/?doctor=doc-1",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)

		var resp AppointmentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Results, path)
		assert.Len(t, resp.Appointments, 2, path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestServer(nil, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
