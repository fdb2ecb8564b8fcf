package booking

import "errors"

// Domain errors surfaced at the booking and cancellation boundary. The API
// layer maps these to structured responses; none are swallowed.
var (
	// ErrValidation marks malformed or missing input, e.g. incomplete guest info.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an absent doctor, patient or appointment.
	ErrNotFound = errors.New("not found")

	// ErrSlotNotAvailable marks a request outside the doctor's recurring hours.
	ErrSlotNotAvailable = errors.New("time slot not valid for doctor availability")

	// ErrSlotTaken marks an exact (doctor, dateTime) double booking.
	ErrSlotTaken = errors.New("this time slot is not available")

	// ErrSlotBlocked marks a time the doctor has manually blocked for that date.
	ErrSlotBlocked = errors.New("this time slot is blocked by the doctor")

	// ErrForbidden marks an unauthorized cancellation or admin action.
	ErrForbidden = errors.New("not authorized")
)
