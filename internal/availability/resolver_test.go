package availability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citago/internal/booking"
	"citago/internal/model"
)

type fakeIdentities struct {
	byID map[string]*model.Identity
}

func (f *fakeIdentities) GetIdentity(_ context.Context, id string) (*model.Identity, error) {
	ident, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ident, nil
}

type fakeAppointments struct {
	counts map[string]int
	day    []model.Appointment
}

func (f *fakeAppointments) CountNonCancelledPerDay(_ context.Context, _, _ string, _, _ time.Time) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeAppointments) ListDayAppointments(_ context.Context, _ string, _, _ time.Time, _ string) ([]model.Appointment, error) {
	return f.day, nil
}

func scheduleDoctor() *model.Identity {
	return &model.Identity{
		ID:     "doc-1",
		Name:   "Dr. Vega",
		Role:   model.RoleDoctor,
		Active: true,
		Doctor: &model.DoctorProfile{
			Specialty:            "Dermatology",
			ConsultationDuration: 30,
			Availability: []model.WeeklyScheduleBlock{
				{
					Day: model.Monday,
					TimeRanges: []model.TimeRange{
						{From: "09:00", To: "12:00", Location: "Clinic A"},
					},
				},
			},
		},
	}
}

func newTestResolver(doctor *model.Identity, appts *fakeAppointments) *Resolver {
	logger := zerolog.Nop()
	idents := &fakeIdentities{byID: map[string]*model.Identity{}}
	if doctor != nil {
		idents.byID[doctor.ID] = doctor
	}
	return NewResolver(idents, appts, nil, &logger)
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestListAvailableTimes(t *testing.T) {
	ctx := context.Background()
	// 2026-03-02 is a Monday.
	const date = "2026-03-02"
	farFuture := at(t, "2026-01-01T00:00:00Z")

	t.Run("full schedule when nothing is booked", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		require.NoError(t, err)

		assert.False(t, result.IsFullyBooked)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, result.Times)
	})

	t.Run("booked slot disappears", func(t *testing.T) {
		appts := &fakeAppointments{day: []model.Appointment{
			{DateTime: at(t, "2026-03-02T10:00:00Z"), DurationMinutes: 30, Status: model.StatusScheduled},
		}}
		r := newTestResolver(scheduleDoctor(), appts)

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, result.Times)
	})

	t.Run("cancelled booking does not block", func(t *testing.T) {
		appts := &fakeAppointments{day: []model.Appointment{
			{DateTime: at(t, "2026-03-02T10:00:00Z"), DurationMinutes: 30, Status: model.StatusCancelled},
		}}
		r := newTestResolver(scheduleDoctor(), appts)

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		require.NoError(t, err)
		assert.Contains(t, result.Times, "10:00")
	})

	t.Run("longer booking shades multiple slots", func(t *testing.T) {
		appts := &fakeAppointments{day: []model.Appointment{
			{DateTime: at(t, "2026-03-02T10:00:00Z"), DurationMinutes: 60, Status: model.StatusScheduled},
		}}
		r := newTestResolver(scheduleDoctor(), appts)

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, result.Times)
	})

	t.Run("same-day cutoff drops earlier starts", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, at(t, "2026-03-02T10:15:00Z"))
		require.NoError(t, err)
		assert.Equal(t, []string{"10:30", "11:00", "11:30"}, result.Times)
	})

	t.Run("cutoff keeps a slot starting exactly now", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, at(t, "2026-03-02T10:00:00Z"))
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, result.Times)
	})

	t.Run("cutoff does not apply to other dates", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		// Reference instant is a later date entirely.
		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, at(t, "2026-03-09T10:15:00Z"))
		require.NoError(t, err)
		assert.Len(t, result.Times, 6)
	})

	t.Run("manual blocks do not hide listed slots", func(t *testing.T) {
		// Blocks are enforced at booking time only; a blocked start still
		// shows up here.
		doctor := scheduleDoctor()
		doctor.Doctor.ManualBlocks = map[string][]string{date: {"10:00"}}
		r := newTestResolver(doctor, &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		require.NoError(t, err)
		assert.Contains(t, result.Times, "10:00")
	})

	t.Run("no schedule for the weekday", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", "2026-03-03", "Clinic A", 30, farFuture)
		require.NoError(t, err)
		assert.True(t, result.IsFullyBooked)
		assert.Empty(t, result.Times)
	})

	t.Run("wrong location yields fully booked", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic B", 30, farFuture)
		require.NoError(t, err)
		assert.True(t, result.IsFullyBooked)
	})

	t.Run("duration changes the slot grid", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		result, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 60, farFuture)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00", "11:00"}, result.Times)
	})

	t.Run("invalid date", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})

		_, err := r.ListAvailableTimes(ctx, "doc-1", "02/03/2026", "Clinic A", 30, farFuture)
		assert.ErrorIs(t, err, booking.ErrValidation)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		r := newTestResolver(nil, &fakeAppointments{})

		_, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		assert.ErrorIs(t, err, booking.ErrNotFound)
	})

	t.Run("patient identity is not a doctor", func(t *testing.T) {
		ident := &model.Identity{ID: "doc-1", Role: model.RolePatient, Patient: &model.PatientProfile{}}
		r := newTestResolver(ident, &fakeAppointments{})

		_, err := r.ListAvailableTimes(ctx, "doc-1", date, "Clinic A", 30, farFuture)
		assert.ErrorIs(t, err, booking.ErrNotFound)
	})
}

func TestListAvailableDates(t *testing.T) {
	ctx := context.Background()

	t.Run("scheduled weekdays appear within the horizon", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})
		r.SetHorizonDays(13)

		dates, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		require.NoError(t, err)

		// Two weeks of lookahead holds exactly two Mondays.
		assert.Len(t, dates, 2)
		for _, d := range dates {
			day, err := time.Parse("2006-01-02", d)
			require.NoError(t, err)
			assert.Equal(t, time.Monday, day.Weekday())
		}
	})

	t.Run("date saturates at count times thirty minutes", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})
		r.SetHorizonDays(13)

		full, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		require.NoError(t, err)
		require.Len(t, full, 2)

		// 09:00-12:00 is 180 minutes; 6 bookings x 30 saturate the first
		// Monday regardless of each booking's real duration.
		appts := &fakeAppointments{counts: map[string]int{full[0]: 6}}
		r = newTestResolver(scheduleDoctor(), appts)
		r.SetHorizonDays(13)

		dates, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		require.NoError(t, err)
		assert.Equal(t, full[1:], dates)
	})

	t.Run("five bookings leave the date open", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})
		r.SetHorizonDays(13)
		full, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		require.NoError(t, err)
		require.Len(t, full, 2)

		appts := &fakeAppointments{counts: map[string]int{full[0]: 5}}
		r = newTestResolver(scheduleDoctor(), appts)
		r.SetHorizonDays(13)

		dates, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		require.NoError(t, err)
		assert.Equal(t, full, dates)
	})

	t.Run("other locations contribute no minutes", func(t *testing.T) {
		r := newTestResolver(scheduleDoctor(), &fakeAppointments{})
		r.SetHorizonDays(13)

		dates, err := r.ListAvailableDates(ctx, "doc-1", "Clinic B")
		require.NoError(t, err)
		assert.Empty(t, dates)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		r := newTestResolver(nil, &fakeAppointments{})
		_, err := r.ListAvailableDates(ctx, "doc-1", "Clinic A")
		assert.ErrorIs(t, err, booking.ErrNotFound)
	})
}
