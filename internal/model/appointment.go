package model

import (
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Guest identifies a booking made without a registered patient account.
type Guest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Complete reports whether the guest info is usable for a booking.
func (g *Guest) Complete() bool {
	return g != nil && g.Name != "" && g.Phone != ""
}

// Appointment is a booked (or cancelled) consultation slot.
// Exactly one of PatientID / Guest is set.
type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id,omitempty"`
	Guest           *Guest    `json:"guest,omitempty"`
	DoctorID        string    `json:"doctor_id"`
	DoctorName      string    `json:"doctor_name"`
	DoctorSpecialty string    `json:"doctor_specialty"`
	DateTime        time.Time `json:"date_time"` // UTC
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	CreatedByDoctor bool      `json:"created_by_doctor"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// End returns the exclusive end instant of the appointment interval.
func (a *Appointment) End() time.Time {
	return a.DateTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// OverlapsWith checks the appointment against a candidate interval.
// Uses half-open [start, end) semantics: touching endpoints do not conflict.
func (a *Appointment) OverlapsWith(start time.Time, durationMinutes int) bool {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return a.DateTime.Before(end) && start.Before(a.End())
}

// IsPast reports whether the appointment start is before now.
// "Completed" is derived from time, never stored as a transition.
func (a *Appointment) IsPast(now time.Time) bool {
	return a.DateTime.Before(now)
}

// HasPatient reports whether a registered patient made the booking.
func (a *Appointment) HasPatient() bool {
	return a.PatientID != ""
}

// TimeOfDay returns the UTC start time formatted as "HH:MM".
func (a *Appointment) TimeOfDay() string {
	return a.DateTime.UTC().Format("15:04")
}

// DateKey returns the UTC calendar date formatted as ISO "YYYY-MM-DD".
func (a *Appointment) DateKey() string {
	return a.DateTime.UTC().Format("2006-01-02")
}
