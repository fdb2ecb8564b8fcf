package notify

import (
	"context"

	"github.com/rs/zerolog"

	"citago/internal/model"
)

// LogSender writes notifications to the log instead of delivering them.
// Used when no SMTP relay is configured and in tests.
type LogSender struct {
	logger *zerolog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendReminder(_ context.Context, p ReminderPayload) error {
	s.logger.Info().
		Str("recipient", p.Recipient).
		Str("doctor", p.DoctorName).
		Str("date_time", p.DateTime).
		Int("hours_before", p.HoursBefore).
		Msg("reminder notification (log only)")
	return nil
}

func (s *LogSender) SendDeactivationNotice(_ context.Context, ident *model.Identity) error {
	s.logger.Info().
		Str("recipient", ident.Email).
		Str("identity_id", ident.ID).
		Msg("deactivation notice (log only)")
	return nil
}

func (s *LogSender) SendCancellationNotice(_ context.Context, p CancellationPayload) error {
	s.logger.Info().
		Str("recipient", p.Recipient).
		Bool("by_doctor", p.ByDoctor).
		Str("date_time", p.DateTime).
		Msg("cancellation notice (log only)")
	return nil
}
