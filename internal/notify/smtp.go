package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"citago/internal/model"
)

// SMTPConfig holds connection settings for the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SendTimeout bounds a single delivery so a stalled relay cannot hang
	// the reminder sweep.
	SendTimeout time.Duration
}

// SMTPSender delivers notifications over SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendReminder(ctx context.Context, p ReminderPayload) error {
	plural := ""
	if p.HoursBefore > 1 {
		plural = "s"
	}
	subject := fmt.Sprintf("Appointment Reminder: %d hour%s left", p.HoursBefore, plural)
	body := fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder that you have an appointment with Dr. %s scheduled at %s.\n\n"+
			"This reminder is sent %d hour%s before your appointment.\n\nBest,\nCitaGo Team",
		p.RecipientName, p.DoctorName, p.DateTime, p.HoursBefore, plural)
	return s.send(ctx, p.Recipient, subject, body)
}

func (s *SMTPSender) SendDeactivationNotice(ctx context.Context, ident *model.Identity) error {
	name := ident.Name
	if name == "" {
		name = "User"
	}
	body := fmt.Sprintf(
		"Dear %s,\n\nYour account has been temporarily deactivated because you've cancelled too many "+
			"appointments. Please contact support or wait 30 days to automatically reset your "+
			"cancellation history.\n\nBest,\nCitaGo Team", name)
	return s.send(ctx, ident.Email, "Account Deactivated Due to Frequent Cancellations", body)
}

func (s *SMTPSender) SendCancellationNotice(ctx context.Context, p CancellationPayload) error {
	if p.ByDoctor {
		body := fmt.Sprintf(
			"Dear %s,\n\nWe regret to inform you that Dr. %s has cancelled your appointment scheduled "+
				"at %s.\n\nBest,\nCitaGo Team", p.RecipientName, p.DoctorName, p.DateTime)
		return s.send(ctx, p.Recipient, "Appointment Cancelled by Doctor", body)
	}
	body := fmt.Sprintf(
		"Dear Dr. %s,\n\nYour patient %s has cancelled their appointment scheduled at %s.\n\n"+
			"Best,\nCitaGo Team", p.RecipientName, p.PatientName, p.DateTime)
	return s.send(ctx, p.Recipient, "Appointment Cancelled by Patient", body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("notification has no recipient")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	// smtp.SendMail has no context support; run it under a deadline so a
	// stalled relay returns instead of blocking the caller.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
	}()

	timeout := time.NewTimer(s.cfg.SendTimeout)
	defer timeout.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-timeout.C:
		return fmt.Errorf("send mail to %s: timed out after %s", to, s.cfg.SendTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
