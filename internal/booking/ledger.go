package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"citago/internal/db"
	"citago/internal/metrics"
	"citago/internal/model"
	"citago/internal/notify"
)

// cancellationWindow is the rolling period after which the cancellation
// counter resets, and deactivationThreshold the count that deactivates the
// account within it.
const (
	cancellationWindow      = 30 * 24 * time.Hour
	deactivationThreshold   = 3
	notificationSendTimeout = 15 * time.Second
)

// Store is the appointment persistence surface the ledger writes through.
type Store interface {
	GuardStore
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (*model.Appointment, error)
}

// IdentityStore is the identity collaborator, referenced by id only.
type IdentityStore interface {
	GetIdentity(ctx context.Context, id string) (*model.Identity, error)
	SaveIdentity(ctx context.Context, ident *model.Identity) error
}

// Recorder captures booking-domain events for the audit trail.
type Recorder interface {
	Record(ctx context.Context, eventType, appointmentID, actorID, details string)
}

// Invalidator drops cached availability for a doctor after a state change.
type Invalidator interface {
	InvalidateDates(ctx context.Context, doctorID string)
}

// Ledger owns create/cancel state transitions on appointment records.
type Ledger struct {
	store       Store
	identities  IdentityStore
	guard       *Guard
	notifier    notify.Sender
	audit       Recorder
	invalidator Invalidator
	logger      *zerolog.Logger
	now         func() time.Time
}

// NewLedger wires the ledger. audit and invalidator may be nil.
func NewLedger(store Store, identities IdentityStore, notifier notify.Sender, audit Recorder, invalidator Invalidator, logger *zerolog.Logger) *Ledger {
	return &Ledger{
		store:       store,
		identities:  identities,
		guard:       NewGuard(store),
		notifier:    notifier,
		audit:       audit,
		invalidator: invalidator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock. Tests only.
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

// Book validates the request with the guard and persists a scheduled
// appointment. Nothing is written on rejection; a uniqueness-constraint race
// at insert time surfaces as ErrSlotTaken.
func (l *Ledger) Book(ctx context.Context, req *Request) (*model.Appointment, error) {
	doctor, err := l.identities.GetIdentity(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.IncBookingRejected("doctor_not_found")
			return nil, fmt.Errorf("%w: doctor not found or invalid role", ErrNotFound)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != model.RoleDoctor {
		metrics.IncBookingRejected("doctor_not_found")
		return nil, fmt.Errorf("%w: doctor not found or invalid role", ErrNotFound)
	}

	if err := l.guard.Check(ctx, doctor, req); err != nil {
		metrics.IncBookingRejected(rejectionReason(err))
		return nil, err
	}

	appt := &model.Appointment{
		ID:              uuid.NewString(),
		PatientID:       req.PatientID,
		Guest:           req.Guest,
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		DoctorSpecialty: doctor.Doctor.Specialty,
		DateTime:        req.DateTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		CreatedByDoctor: req.CreatedByDoctor,
		Status:          model.StatusScheduled,
	}
	if req.PatientID != "" {
		appt.Guest = nil
	}

	if err := l.store.CreateAppointment(ctx, appt); err != nil {
		if errors.Is(err, db.ErrDuplicateSlot) {
			// Lost the check-then-insert race; the index is authoritative.
			metrics.IncBookingRejected("slot_taken")
			return nil, fmt.Errorf("%w: %s already booked", ErrSlotTaken, req.DateTime.Format(time.RFC3339))
		}
		return nil, err
	}

	metrics.IncBookingCreated(requesterKind(req))
	l.record(ctx, "appointment_booked", appt.ID, req.PatientID,
		fmt.Sprintf("doctor=%s at=%s location=%s", appt.DoctorID, appt.DateTime.Format(time.RFC3339), appt.Location))
	l.invalidate(ctx, appt.DoctorID)

	return appt, nil
}

// Cancel transitions an appointment to cancelled. The actor must be the
// booking patient, the assigned doctor or an admin. Cancelling an already
// cancelled appointment is a no-op and never touches the cancellation
// counter. When the booking patient cancels, the cancellation-abuse policy
// runs: the counter resets after 30 quiet days, and reaching 3 within the
// window deactivates the account.
func (l *Ledger) Cancel(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no appointment found with that ID", ErrNotFound)
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	actor, err := l.identities.GetIdentity(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: actor not found", ErrNotFound)
		}
		return nil, fmt.Errorf("load actor: %w", err)
	}

	isOwner := appt.HasPatient() && appt.PatientID == actor.ID
	isDoctor := appt.DoctorID == actor.ID
	isAdmin := actor.Role == model.RoleAdmin
	if !isOwner && !isDoctor && !isAdmin {
		return nil, fmt.Errorf("%w: you are not authorized to cancel this appointment", ErrForbidden)
	}

	if appt.Status == model.StatusCancelled {
		return appt, nil
	}

	updated, err := l.store.UpdateAppointmentStatus(ctx, appt.ID, model.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	metrics.IncBookingCancelled()
	l.record(ctx, "appointment_cancelled", appt.ID, actorID, "by="+string(actor.Role))
	l.invalidate(ctx, appt.DoctorID)

	if isOwner && actor.Role == model.RolePatient {
		if err := l.applyCancellationPolicy(ctx, actor); err != nil {
			return nil, err
		}
	}

	l.notifyCounterparty(ctx, updated, actor, isDoctor || (isAdmin && !isOwner))

	return updated, nil
}

func (l *Ledger) applyCancellationPolicy(ctx context.Context, patient *model.Identity) error {
	if patient.Patient == nil {
		return nil
	}

	now := l.now()
	policy := patient.Patient

	last := time.Time{}
	if policy.LastCancellationDate != nil {
		last = *policy.LastCancellationDate
	}
	if now.Sub(last) > cancellationWindow {
		policy.CancellationCount = 0
	}
	policy.CancellationCount++
	policy.LastCancellationDate = &now

	if policy.CancellationCount >= deactivationThreshold {
		patient.Active = false
		metrics.IncAccountDeactivated()
		l.record(ctx, "account_deactivated", "", patient.ID,
			fmt.Sprintf("cancellation_count=%d", policy.CancellationCount))
		l.dispatch(ctx, "deactivation notice", patient.Email, func(sendCtx context.Context) error {
			return l.notifier.SendDeactivationNotice(sendCtx, patient)
		})
	}

	if err := l.identities.SaveIdentity(ctx, patient); err != nil {
		return fmt.Errorf("update cancellation policy: %w", err)
	}
	return nil
}

// notifyCounterparty informs the other party of a cancellation: cancelling
// patients trigger a notice to the doctor, cancelling doctors (or admins)
// trigger a notice to the patient.
func (l *Ledger) notifyCounterparty(ctx context.Context, appt *model.Appointment, actor *model.Identity, byDoctor bool) {
	when := appt.DateTime.Format("2006-01-02 15:04 UTC")

	if byDoctor {
		if !appt.HasPatient() {
			return
		}
		patient, err := l.identities.GetIdentity(ctx, appt.PatientID)
		if err != nil || patient.Email == "" {
			// Dangling patient reference; nothing to notify.
			return
		}
		l.dispatch(ctx, "cancellation notice", patient.Email, func(sendCtx context.Context) error {
			return l.notifier.SendCancellationNotice(sendCtx, notify.CancellationPayload{
				Recipient:     patient.Email,
				RecipientName: patient.Name,
				DoctorName:    appt.DoctorName,
				DateTime:      when,
				ByDoctor:      true,
			})
		})
		return
	}

	doctor, err := l.identities.GetIdentity(ctx, appt.DoctorID)
	if err != nil || doctor.Email == "" {
		return
	}
	l.dispatch(ctx, "cancellation notice", doctor.Email, func(sendCtx context.Context) error {
		return l.notifier.SendCancellationNotice(sendCtx, notify.CancellationPayload{
			Recipient:     doctor.Email,
			RecipientName: doctor.Name,
			PatientName:   actor.Name,
			DateTime:      when,
			ByDoctor:      false,
		})
	})
}

// dispatch sends a notification best-effort: failures are logged and never
// propagate to the caller.
func (l *Ledger) dispatch(ctx context.Context, kind, recipient string, send func(context.Context) error) {
	sendCtx, cancel := context.WithTimeout(ctx, notificationSendTimeout)
	defer cancel()
	if err := send(sendCtx); err != nil {
		l.logger.Error().Err(err).Str("recipient", recipient).Msgf("failed to send %s", kind)
	}
}

func (l *Ledger) record(ctx context.Context, eventType, appointmentID, actorID, details string) {
	if l.audit != nil {
		l.audit.Record(ctx, eventType, appointmentID, actorID, details)
	}
}

func (l *Ledger) invalidate(ctx context.Context, doctorID string) {
	if l.invalidator != nil {
		l.invalidator.InvalidateDates(ctx, doctorID)
	}
}

func requesterKind(req *Request) string {
	switch {
	case req.CreatedByDoctor:
		return "doctor"
	case req.PatientID != "":
		return "patient"
	default:
		return "guest"
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "missing_identity"
	case errors.Is(err, ErrSlotNotAvailable):
		return "outside_schedule"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrSlotBlocked):
		return "slot_blocked"
	case errors.Is(err, ErrNotFound):
		return "doctor_not_found"
	default:
		return "internal"
	}
}
