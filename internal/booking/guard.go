// Package booking owns slot reservation and appointment state transitions.
package booking

import (
	"context"
	"fmt"
	"time"

	"citago/internal/model"
	"citago/internal/slots"
)

// GuardStore is the minimal persistence surface the guard needs for its
// exact-slot fast path. The unique index beneath it remains the source of
// truth; this check only rejects early.
type GuardStore interface {
	ExactSlotTaken(ctx context.Context, doctorID string, at time.Time) (bool, error)
}

// Request is a booking attempt, validated by the guard before persisting.
type Request struct {
	DoctorID        string
	PatientID       string
	Guest           *model.Guest
	DateTime        time.Time // UTC
	DurationMinutes int
	Location        string
	CreatedByDoctor bool
}

// IsFree reports whether the candidate interval [start, start+duration)
// conflicts with any existing non-cancelled appointment. Overlap is strict
// half-open: touching endpoints are not conflicts.
func IsFree(start time.Time, durationMinutes int, existing []model.Appointment) bool {
	for i := range existing {
		if existing[i].Status == model.StatusCancelled {
			continue
		}
		if existing[i].OverlapsWith(start, durationMinutes) {
			return false
		}
	}
	return true
}

// Guard runs the pre-booking policy checks.
type Guard struct {
	store GuardStore
}

// NewGuard creates a guard over the given store.
func NewGuard(store GuardStore) *Guard {
	return &Guard{store: store}
}

// Check validates a booking request against the doctor's recurring schedule,
// existing bookings and manual blocks. Checks run in a fixed order: identity,
// schedule validity, exact-slot uniqueness, manual block.
func (g *Guard) Check(ctx context.Context, doctor *model.Identity, req *Request) error {
	if req.PatientID == "" && !req.Guest.Complete() {
		return fmt.Errorf("%w: either a registered patient or guest info is required", ErrValidation)
	}

	if doctor.Doctor == nil {
		return fmt.Errorf("%w: doctor not found or invalid role", ErrNotFound)
	}

	timeOfDay := req.DateTime.UTC().Format("15:04")
	weekday := model.WeekdayOf(req.DateTime)

	// The requested start must be a member of a generated slot set for this
	// weekday and duration. Note: the schedule validity check spans every
	// time range of the day regardless of location, matching the listing
	// behaviour only loosely (manual blocks are likewise only enforced here,
	// not during listing).
	if !g.withinSchedule(doctor.Doctor, weekday, timeOfDay, req.DurationMinutes) {
		return fmt.Errorf("%w: %s %s is outside the doctor's hours", ErrSlotNotAvailable, weekday, timeOfDay)
	}

	taken, err := g.store.ExactSlotTaken(ctx, req.DoctorID, req.DateTime)
	if err != nil {
		return fmt.Errorf("check existing slot: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: %s already booked", ErrSlotTaken, req.DateTime.Format(time.RFC3339))
	}

	dateKey := req.DateTime.UTC().Format("2006-01-02")
	if doctor.Doctor.IsManuallyBlocked(dateKey, timeOfDay) {
		return fmt.Errorf("%w: %s %s", ErrSlotBlocked, dateKey, timeOfDay)
	}

	return nil
}

func (g *Guard) withinSchedule(profile *model.DoctorProfile, weekday model.Weekday, timeOfDay string, durationMinutes int) bool {
	for _, block := range profile.BlocksFor(weekday) {
		for _, r := range block.TimeRanges {
			if slots.Contains(r.From, r.To, durationMinutes, timeOfDay) {
				return true
			}
		}
	}
	return false
}
