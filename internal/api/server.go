package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"citago/internal/audit"
)

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP surface and its collaborators.
type Server struct {
	ledger   Ledger
	resolver Availability
	reader   AppointmentReader
	audit    *audit.Service
	lister   audit.AppointmentLister
	pinger   Pinger
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewServer wires the handlers. audit and lister may be nil, which disables
// the export endpoint.
func NewServer(ledger Ledger, resolver Availability, reader AppointmentReader, auditSvc *audit.Service, lister audit.AppointmentLister, pinger Pinger, logger zerolog.Logger) *Server {
	return &Server{
		ledger:   ledger,
		resolver: resolver,
		reader:   reader,
		audit:    auditSvc,
		lister:   lister,
		pinger:   pinger,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(&s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", s.handleCreateAppointment)
			r.Get("/", s.handleListAppointments)
			r.Get("/export", s.handleExportAppointments)
			r.Post("/{id}/cancel", s.handleCancelAppointment)
		})

		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Get("/available-dates", s.handleAvailableDates)
			r.Get("/available-times", s.handleAvailableTimes)
			r.Get("/appointments", s.handleDoctorAppointments)
		})

		r.Get("/patients/{patientID}/appointments", s.handlePatientAppointments)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
