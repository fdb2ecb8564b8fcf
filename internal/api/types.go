package api

import (
	"time"

	"citago/internal/model"
)

// CreateAppointmentRequest is the body of POST /api/appointments.
// Exactly one of RequesterID / Guest must identify the booker.
type CreateAppointmentRequest struct {
	DoctorID        string       `json:"doctor_id" validate:"required"`
	DateTime        string       `json:"date_time" validate:"required"` // RFC3339, UTC
	DurationMinutes int          `json:"duration_minutes" validate:"required,gt=0"`
	Location        string       `json:"location" validate:"required"`
	RequesterID     string       `json:"requester_id,omitempty"`
	Guest           *model.Guest `json:"guest,omitempty"`
	CreatedByDoctor bool         `json:"created_by_doctor,omitempty"`
}

// AppointmentResponse mirrors the persisted appointment.
type AppointmentResponse struct {
	ID              string       `json:"id"`
	PatientID       string       `json:"patient_id,omitempty"`
	Guest           *model.Guest `json:"guest,omitempty"`
	DoctorID        string       `json:"doctor_id"`
	DoctorName      string       `json:"doctor_name"`
	DoctorSpecialty string       `json:"doctor_specialty"`
	DateTime        time.Time    `json:"date_time"`
	DurationMinutes int          `json:"duration_minutes"`
	Location        string       `json:"location"`
	Status          string       `json:"status"`
}

func toAppointmentResponse(a *model.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		Guest:           a.Guest,
		DoctorID:        a.DoctorID,
		DoctorName:      a.DoctorName,
		DoctorSpecialty: a.DoctorSpecialty,
		DateTime:        a.DateTime,
		DurationMinutes: a.DurationMinutes,
		Location:        a.Location,
		Status:          string(a.Status),
	}
}

// AvailableDatesResponse lists the bookable ISO dates within the horizon.
type AvailableDatesResponse struct {
	Dates []string `json:"dates"`
}

// AvailableTimesResponse lists the free "HH:MM" starts for one date.
type AvailableTimesResponse struct {
	Times         []string `json:"times"`
	IsFullyBooked bool     `json:"is_fully_booked"`
}

// AppointmentListResponse is the generic listing envelope.
type AppointmentListResponse struct {
	Results      int                   `json:"results"`
	Appointments []AppointmentResponse `json:"appointments"`
}

// ErrorResponse is the structured error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
