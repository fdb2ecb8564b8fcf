package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"citago/internal/model"
)

const appointmentColumns = `id, patient_id, guest_name, guest_phone, doctor_id,
	doctor_name, doctor_specialty, date_time, duration_minutes, location,
	created_by_doctor, status, created_at, updated_at`

// CreateAppointment persists a new appointment. A violation of the
// (doctor_id, date_time) uniqueness index is returned as ErrDuplicateSlot.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	var guestName, guestPhone any
	if a.Guest != nil {
		guestName = a.Guest.Name
		guestPhone = a.Guest.Phone
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (id, patient_id, guest_name, guest_phone, doctor_id,
			doctor_name, doctor_specialty, date_time, duration_minutes, location,
			created_by_doctor, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, nullable(a.PatientID), guestName, guestPhone, a.DoctorID,
		a.DoctorName, a.DoctorSpecialty, a.DateTime.UTC(), a.DurationMinutes, a.Location,
		a.CreatedByDoctor, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// GetAppointment loads one appointment. Returns sql.ErrNoRows when absent.
func (db *DB) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointmentRow(row)
}

// UpdateAppointmentStatus sets the status and returns the updated record.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) (*model.Appointment, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}
	return db.GetAppointment(ctx, id)
}

// ExactSlotTaken reports whether a non-cancelled appointment already occupies
// the exact (doctor, dateTime) pair.
func (db *DB) ExactSlotTaken(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = ? AND date_time = ? AND status != 'cancelled'`,
		doctorID, at.UTC(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check exact slot: %w", err)
	}
	return count > 0, nil
}

// ListDayAppointments returns the non-cancelled appointments of a doctor at a
// location within [dayStart, dayEnd], ordered by start time.
func (db *DB) ListDayAppointments(ctx context.Context, doctorID string, dayStart, dayEnd time.Time, location string) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE doctor_id = ? AND date_time >= ? AND date_time <= ?
		  AND location = ? AND status != 'cancelled'
		ORDER BY date_time`,
		doctorID, dayStart.UTC(), dayEnd.UTC(), location)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// CountNonCancelledPerDay maps ISO dates to the number of non-cancelled
// appointments for the doctor/location between from and to inclusive.
func (db *DB) CountNonCancelledPerDay(ctx context.Context, doctorID, location string, from, to time.Time) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date(date_time), COUNT(*) FROM appointments
		WHERE doctor_id = ? AND location = ?
		  AND date_time >= ? AND date_time <= ?
		  AND status != 'cancelled'
		GROUP BY date(date_time)`,
		doctorID, location, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("count appointments per day: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[day] = count
	}
	return counts, rows.Err()
}

// ListPatientAppointments returns a patient's appointments split by "now":
// upcoming ascending, past descending.
func (db *DB) ListPatientAppointments(ctx context.Context, patientID string, now time.Time, upcoming bool) ([]model.Appointment, error) {
	cmp, order := "<", "DESC"
	if upcoming {
		cmp, order = ">=", "ASC"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE patient_id = ? AND date_time `+cmp+` ?
		 ORDER BY date_time `+order,
		patientID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// DoctorAppointmentFilter narrows ListDoctorAppointments.
type DoctorAppointmentFilter struct {
	Upcoming      bool
	Past          bool
	Location      string
	ExcludeBlocks bool // skip rows the doctor created as self-blocks
	Now           time.Time
}

// ListDoctorAppointments returns a doctor's non-cancelled appointments,
// ordered by start time.
func (db *DB) ListDoctorAppointments(ctx context.Context, doctorID string, f DoctorAppointmentFilter) ([]model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE doctor_id = ? AND status != 'cancelled'`
	args := []any{doctorID}

	if f.Upcoming {
		query += ` AND date_time >= ?`
		args = append(args, f.Now.UTC())
	}
	if f.Past {
		query += ` AND date_time < ?`
		args = append(args, f.Now.UTC())
	}
	if f.Location != "" {
		query += ` AND location = ?`
		args = append(args, f.Location)
	}
	if f.ExcludeBlocks {
		query += ` AND created_by_doctor = 0`
	}
	query += ` ORDER BY date_time`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// AppointmentFilter narrows ListAppointments for the admin surface.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Status    model.Status
	From      *time.Time
	To        *time.Time
}

// ListAppointments returns appointments matching the filter, ordered by
// start time.
func (db *DB) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	var conds []string
	var args []any

	if f.DoctorID != "" {
		conds = append(conds, "doctor_id = ?")
		args = append(args, f.DoctorID)
	}
	if f.PatientID != "" {
		conds = append(conds, "patient_id = ?")
		args = append(args, f.PatientID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		conds = append(conds, "date_time >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "date_time <= ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date_time`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListScheduledBetween returns scheduled appointments whose start falls in
// [from, to]. Used by the reminder sweep.
func (db *DB) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE date_time >= ? AND date_time <= ? AND status = 'scheduled'
		ORDER BY date_time`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list scheduled between: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointmentRow(row *sql.Row) (*model.Appointment, error) {
	var a model.Appointment
	var patientID, guestName, guestPhone sql.NullString

	err := row.Scan(
		&a.ID, &patientID, &guestName, &guestPhone, &a.DoctorID,
		&a.DoctorName, &a.DoctorSpecialty, &a.DateTime, &a.DurationMinutes, &a.Location,
		&a.CreatedByDoctor, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	applyNullables(&a, patientID, guestName, guestPhone)
	return &a, nil
}

func scanAppointments(rows *sql.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var patientID, guestName, guestPhone sql.NullString
		err := rows.Scan(
			&a.ID, &patientID, &guestName, &guestPhone, &a.DoctorID,
			&a.DoctorName, &a.DoctorSpecialty, &a.DateTime, &a.DurationMinutes, &a.Location,
			&a.CreatedByDoctor, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		applyNullables(&a, patientID, guestName, guestPhone)
		out = append(out, a)
	}
	return out, rows.Err()
}

func applyNullables(a *model.Appointment, patientID, guestName, guestPhone sql.NullString) {
	a.DateTime = a.DateTime.UTC()
	if patientID.Valid {
		a.PatientID = patientID.String
	}
	if guestName.Valid || guestPhone.Valid {
		a.Guest = &model.Guest{Name: guestName.String, Phone: guestPhone.String}
	}
}
