package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citago/internal/availability"
	"citago/internal/booking"
	"citago/internal/db"
	"citago/internal/metrics"
	"citago/internal/model"
)

// Ledger is the booking engine surface the handlers call.
type Ledger interface {
	Book(ctx context.Context, req *booking.Request) (*model.Appointment, error)
	Cancel(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error)
}

// Availability is the slot listing surface.
type Availability interface {
	ListAvailableDates(ctx context.Context, doctorID, location string) ([]string, error)
	ListAvailableTimes(ctx context.Context, doctorID, date, location string, durationMinutes int, referenceNow time.Time) (*availability.TimesResult, error)
}

// AppointmentReader provides the listing queries.
type AppointmentReader interface {
	ListPatientAppointments(ctx context.Context, patientID string, now time.Time, upcoming bool) ([]model.Appointment, error)
	ListDoctorAppointments(ctx context.Context, doctorID string, f db.DoctorAppointmentFilter) ([]model.Appointment, error)
	ListAppointments(ctx context.Context, f db.AppointmentFilter) ([]model.Appointment, error)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_appointment")

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	dateTime, err := time.Parse(time.RFC3339, req.DateTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date_time", "date_time must be RFC3339")
		return
	}

	appt, err := s.ledger.Book(r.Context(), &booking.Request{
		DoctorID:        req.DoctorID,
		PatientID:       req.RequesterID,
		Guest:           req.Guest,
		DateTime:        dateTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		CreatedByDoctor: req.CreatedByDoctor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_appointment")

	appointmentID := chi.URLParam(r, "id")
	actorID := r.Header.Get("X-Actor-ID")
	if actorID == "" {
		writeError(w, http.StatusBadRequest, "missing_actor", "X-Actor-ID header is required")
		return
	}

	appt, err := s.ledger.Cancel(r.Context(), appointmentID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *Server) handleAvailableDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("available_dates")

	doctorID := chi.URLParam(r, "doctorID")
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, http.StatusBadRequest, "missing_location", "location query parameter is required")
		return
	}

	dates, err := s.resolver.ListAvailableDates(r.Context(), doctorID, location)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailableDatesResponse{Dates: dates})
}

func (s *Server) handleAvailableTimes(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("available_times")

	doctorID := chi.URLParam(r, "doctorID")
	q := r.URL.Query()

	date := q.Get("date")
	location := q.Get("location")
	if date == "" || location == "" {
		writeError(w, http.StatusBadRequest, "missing_parameters", "date and location are required")
		return
	}

	duration := 0
	if _, err := fmt.Sscanf(q.Get("duration"), "%d", &duration); err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive integer of minutes")
		return
	}

	referenceNow := time.Now().UTC()
	if raw := q.Get("referenceNow"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reference_now", "referenceNow must be RFC3339")
			return
		}
		referenceNow = parsed.UTC()
	}

	result, err := s.resolver.ListAvailableTimes(r.Context(), doctorID, date, location, duration, referenceNow)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailableTimesResponse{
		Times:         result.Times,
		IsFullyBooked: result.IsFullyBooked,
	})
}

func (s *Server) handlePatientAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("patient_appointments")

	patientID := chi.URLParam(r, "patientID")
	upcoming := r.URL.Query().Get("scope") != "past"

	appts, err := s.reader.ListPatientAppointments(r.Context(), patientID, time.Now().UTC(), upcoming)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(appts))
}

func (s *Server) handleDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("doctor_appointments")

	doctorID := chi.URLParam(r, "doctorID")
	q := r.URL.Query()

	appts, err := s.reader.ListDoctorAppointments(r.Context(), doctorID, db.DoctorAppointmentFilter{
		Upcoming:      q.Get("upcoming") == "true",
		Past:          q.Get("past") == "true",
		Location:      q.Get("location"),
		ExcludeBlocks: q.Get("excludeBlocks") == "true",
		Now:           time.Now().UTC(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(appts))
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_appointments")

	q := r.URL.Query()
	filter := db.AppointmentFilter{
		DoctorID:  q.Get("doctor"),
		PatientID: q.Get("patient"),
		Status:    model.Status(q.Get("status")),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}
		filter.To = &t
	}

	appts, err := s.reader.ListAppointments(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(appts))
}

func (s *Server) handleExportAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_appointments")

	if s.audit == nil || s.lister == nil {
		writeError(w, http.StatusServiceUnavailable, "export_unavailable", "export is not configured")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="appointments_%s.xlsx"`, to.Format("20060102")))

	if err := s.audit.ExportReport(r.Context(), s.lister, from, to, w); err != nil {
		s.logger.Error().Err(err).Msg("appointment export failed")
	}
}

func toListResponse(appts []model.Appointment) AppointmentListResponse {
	out := AppointmentListResponse{
		Results:      len(appts),
		Appointments: make([]AppointmentResponse, 0, len(appts)),
	}
	for i := range appts {
		out.Appointments = append(out.Appointments, toAppointmentResponse(&appts[i]))
	}
	return out
}

// writeDomainError maps the booking error taxonomy to structured responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotAvailable):
		writeError(w, http.StatusBadRequest, "slot_not_available", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusBadRequest, "slot_taken", err.Error())
	case errors.Is(err, booking.ErrSlotBlocked):
		writeError(w, http.StatusBadRequest, "slot_blocked", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
