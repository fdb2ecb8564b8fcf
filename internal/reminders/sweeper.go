// Package reminders runs the background sweep that dispatches appointment
// reminder notifications at fixed lead times.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"citago/internal/metrics"
	"citago/internal/model"
	"citago/internal/notify"
)

// AppointmentSource provides the scheduled appointments to sweep.
type AppointmentSource interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

// IdentitySource resolves patients for reminder delivery.
type IdentitySource interface {
	GetIdentity(ctx context.Context, id string) (*model.Identity, error)
}

// Config holds sweep settings.
type Config struct {
	// SweepInterval is how often the sweep runs.
	SweepInterval time.Duration
	// LeadTimes are the reminder offsets before an appointment.
	LeadTimes []time.Duration
	// WindowTolerance widens the target instant in both directions so a
	// tick cannot miss an appointment that falls between ticks.
	WindowTolerance time.Duration
	// SendsPerSecond rate limits outbound notifications.
	SendsPerSecond float64
	// SendTimeout bounds a single dispatch.
	SendTimeout time.Duration
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval:   2 * time.Minute,
		LeadTimes:       []time.Duration{time.Hour, 24 * time.Hour},
		WindowTolerance: 2 * time.Minute,
		SendsPerSecond:  10,
		SendTimeout:     10 * time.Second,
	}
}

// Sweeper periodically scans upcoming appointments and dispatches reminders.
// There is no de-duplication beyond the narrow window: when two ticks'
// windows overlap for the same appointment, a reminder can be sent twice.
type Sweeper struct {
	config       Config
	appointments AppointmentSource
	identities   IdentitySource
	sender       notify.Sender
	limiter      *rate.Limiter
	logger       *zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewSweeper creates a sweeper owned by the process entry point.
func NewSweeper(config Config, appointments AppointmentSource, identities IdentitySource, sender notify.Sender, logger *zerolog.Logger) *Sweeper {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 2 * time.Minute
	}
	if len(config.LeadTimes) == 0 {
		config.LeadTimes = DefaultConfig().LeadTimes
	}
	if config.WindowTolerance <= 0 {
		config.WindowTolerance = 2 * time.Minute
	}
	if config.SendsPerSecond <= 0 {
		config.SendsPerSecond = 10
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}

	return &Sweeper{
		config:       config,
		appointments: appointments,
		identities:   identities,
		sender:       sender,
		limiter:      rate.NewLimiter(rate.Limit(config.SendsPerSecond), 1),
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the sweep loop. Blocks until the context is done or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("interval", s.config.SweepInterval).
		Int("lead_times", len(s.config.LeadTimes)).
		Msg("reminder sweeper started")

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder sweeper stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("reminder sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx, time.Now().UTC())
		}
	}
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning reports whether the sweep loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce performs a single sweep relative to now. Exposed so tests can tick
// manually.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) {
	for _, lead := range s.config.LeadTimes {
		target := now.Add(lead)
		from := target.Add(-s.config.WindowTolerance)
		to := target.Add(s.config.WindowTolerance)

		appts, err := s.appointments.ListScheduledBetween(ctx, from, to)
		if err != nil {
			s.logger.Error().Err(err).Dur("lead", lead).Msg("reminder sweep query failed")
			continue
		}

		for i := range appts {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.remind(ctx, &appts[i], lead)
		}
	}
}

func (s *Sweeper) remind(ctx context.Context, appt *model.Appointment, lead time.Duration) {
	leadLabel := fmt.Sprintf("%d", int(lead.Hours()))

	if !appt.HasPatient() {
		// Guest bookings carry no email; nothing to dispatch.
		return
	}

	patient, err := s.identities.GetIdentity(ctx, appt.PatientID)
	if err != nil || patient.Email == "" {
		metrics.IncReminderSent(leadLabel, "skipped")
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	payload := notify.ReminderPayload{
		Recipient:     patient.Email,
		RecipientName: patient.Name,
		DoctorName:    appt.DoctorName,
		DateTime:      appt.DateTime.UTC().Format("2006-01-02 15:04 UTC"),
		HoursBefore:   int(lead.Hours()),
	}

	if err := s.sender.SendReminder(sendCtx, payload); err != nil {
		metrics.IncReminderSent(leadLabel, "failed")
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Str("recipient", patient.Email).
			Msg("failed to send reminder")
		return
	}

	metrics.IncReminderSent(leadLabel, "sent")
	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("recipient", patient.Email).
		Int("hours_before", payload.HoursBefore).
		Msg("reminder sent")
}
