// Package notify sends best-effort email notifications. Failures are logged
// by callers and never fail the operation that triggered them.
package notify

import (
	"context"

	"citago/internal/model"
)

// ReminderPayload carries everything a reminder email needs.
type ReminderPayload struct {
	Recipient     string
	RecipientName string
	DoctorName    string
	DateTime      string // preformatted UTC timestamp
	HoursBefore   int
}

// CancellationPayload notifies the counterparty of a cancelled appointment.
type CancellationPayload struct {
	Recipient     string
	RecipientName string
	DoctorName    string
	PatientName   string
	DateTime      string
	ByDoctor      bool
}

// Sender is the outbound notification collaborator.
type Sender interface {
	SendReminder(ctx context.Context, p ReminderPayload) error
	SendDeactivationNotice(ctx context.Context, ident *model.Identity) error
	SendCancellationNotice(ctx context.Context, p CancellationPayload) error
}
