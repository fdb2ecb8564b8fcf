// Package availability turns recurring weekly schedules into bookable dates
// and time slots.
package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"citago/internal/booking"
	"citago/internal/model"
	"citago/internal/slots"
)

// DefaultHorizonDays is how far ahead date-level availability is computed.
const DefaultHorizonDays = 183

// estimatedMinutesPerBooking is the fixed approximation used for date-level
// availability: every non-cancelled appointment counts as 30 minutes
// regardless of its actual duration. Changing this changes observable
// availability results, so it is kept as-is.
const estimatedMinutesPerBooking = 30

// IdentitySource resolves doctors by id.
type IdentitySource interface {
	GetIdentity(ctx context.Context, id string) (*model.Identity, error)
}

// AppointmentSource provides the booked state needed to filter slots.
type AppointmentSource interface {
	CountNonCancelledPerDay(ctx context.Context, doctorID, location string, from, to time.Time) (map[string]int, error)
	ListDayAppointments(ctx context.Context, doctorID string, dayStart, dayEnd time.Time, location string) ([]model.Appointment, error)
}

// TimesResult is the slot listing for one date.
type TimesResult struct {
	Times         []string `json:"times"`
	IsFullyBooked bool     `json:"is_fully_booked"`
}

// Resolver computes candidate slots for a doctor, date and location.
type Resolver struct {
	identities   IdentitySource
	appointments AppointmentSource
	cache        *DatesCache
	horizonDays  int
	logger       *zerolog.Logger
}

// NewResolver wires a resolver. cache may be nil.
func NewResolver(identities IdentitySource, appointments AppointmentSource, cache *DatesCache, logger *zerolog.Logger) *Resolver {
	return &Resolver{
		identities:   identities,
		appointments: appointments,
		cache:        cache,
		horizonDays:  DefaultHorizonDays,
		logger:       logger,
	}
}

// SetHorizonDays overrides the lookahead window. Tests only.
func (r *Resolver) SetHorizonDays(days int) {
	r.horizonDays = days
}

// ListAvailableDates returns the ordered ISO dates within the horizon on
// which the doctor has schedule time left at the location. A date counts as
// available while the estimated booked minutes (bookings × 30) stay below
// the total scheduled minutes.
func (r *Resolver) ListAvailableDates(ctx context.Context, doctorID, location string) ([]string, error) {
	if cached, ok := r.cachedDates(ctx, doctorID, location); ok {
		return cached, nil
	}

	doctor, err := r.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	horizonEnd := today.AddDate(0, 0, r.horizonDays).Add(24*time.Hour - time.Nanosecond)

	counts, err := r.appointments.CountNonCancelledPerDay(ctx, doctorID, location, today, horizonEnd)
	if err != nil {
		return nil, err
	}

	blocksByDay := make(map[model.Weekday]model.WeeklyScheduleBlock)
	for _, block := range doctor.Doctor.Availability {
		if _, ok := blocksByDay[block.Day]; !ok {
			blocksByDay[block.Day] = block
		}
	}

	var dates []string
	for i := 0; i <= r.horizonDays; i++ {
		date := today.AddDate(0, 0, i)
		block, ok := blocksByDay[model.WeekdayOf(date)]
		if !ok {
			continue
		}

		totalMinutes := 0
		for _, tr := range block.TimeRanges {
			if tr.Location != location {
				continue
			}
			totalMinutes += slots.RangeMinutes(tr.From, tr.To)
		}
		if totalMinutes == 0 {
			continue
		}

		dateISO := date.Format("2006-01-02")
		if counts[dateISO]*estimatedMinutesPerBooking < totalMinutes {
			dates = append(dates, dateISO)
		}
	}

	r.storeDates(ctx, doctorID, location, dates)
	return dates, nil
}

// ListAvailableTimes returns the free "HH:MM" starts of duration length for
// the doctor at the location on the given ISO date. Slots on referenceNow's
// calendar date that start strictly before its time of day are cut off;
// future dates are never cut. Manual blocks are not consulted here, only at
// booking time, so a listed slot can still be rejected as blocked.
func (r *Resolver) ListAvailableTimes(ctx context.Context, doctorID, date, location string, durationMinutes int, referenceNow time.Time) (*TimesResult, error) {
	doctor, err := r.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", booking.ErrValidation, date)
	}

	var block *model.WeeklyScheduleBlock
	for i := range doctor.Doctor.Availability {
		if doctor.Doctor.Availability[i].Day == model.WeekdayOf(day) {
			block = &doctor.Doctor.Availability[i]
			break
		}
	}
	if block == nil {
		return &TimesResult{IsFullyBooked: true}, nil
	}

	dayEnd := day.Add(24*time.Hour - time.Nanosecond)
	existing, err := r.appointments.ListDayAppointments(ctx, doctorID, day, dayEnd, location)
	if err != nil {
		return nil, err
	}

	sameDay := referenceNow.UTC().Format("2006-01-02") == date
	nowTimeOfDay := referenceNow.UTC().Format("15:04")

	var available []string
	for _, tr := range block.TimeRanges {
		if tr.Location != location {
			continue
		}
		for _, tod := range slots.Generate(tr.From, tr.To, durationMinutes) {
			if sameDay && tod < nowTimeOfDay {
				continue
			}
			start, err := startInstant(day, tod)
			if err != nil {
				continue
			}
			if booking.IsFree(start, durationMinutes, existing) {
				available = append(available, tod)
			}
		}
	}

	return &TimesResult{
		Times:         available,
		IsFullyBooked: len(available) == 0,
	}, nil
}

func (r *Resolver) loadDoctor(ctx context.Context, doctorID string) (*model.Identity, error) {
	doctor, err := r.identities.GetIdentity(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: doctor not found or invalid role", booking.ErrNotFound)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != model.RoleDoctor || doctor.Doctor == nil {
		return nil, fmt.Errorf("%w: doctor not found or invalid role", booking.ErrNotFound)
	}
	return doctor, nil
}

func (r *Resolver) cachedDates(ctx context.Context, doctorID, location string) ([]string, bool) {
	if r.cache == nil {
		return nil, false
	}
	dates, ok, err := r.cache.Get(ctx, doctorID, location)
	if err != nil {
		r.logger.Debug().Err(err).Msg("availability cache read failed")
		return nil, false
	}
	return dates, ok
}

func (r *Resolver) storeDates(ctx context.Context, doctorID, location string, dates []string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, doctorID, location, dates); err != nil {
		r.logger.Debug().Err(err).Msg("availability cache write failed")
	}
}

func startInstant(day time.Time, timeOfDay string) (time.Time, error) {
	minutes, err := slots.ToMinutes(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minutes) * time.Minute), nil
}
