package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"citago/internal/db"
	"citago/internal/model"
)

// AppointmentLister provides the appointment rows for the export.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, f db.AppointmentFilter) ([]model.Appointment, error)
}

// ExportReport writes an xlsx report with an Appointments sheet and an
// Events sheet covering [from, to], to w.
func (s *Service) ExportReport(ctx context.Context, appointments AppointmentLister, from, to time.Time, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	appts, err := appointments.ListAppointments(ctx, db.AppointmentFilter{From: &from, To: &to})
	if err != nil {
		return fmt.Errorf("load appointments for export: %w", err)
	}

	file.SetSheetName("Sheet1", "Appointments")
	headers := []string{"ID", "Doctor", "Specialty", "Patient", "Guest", "Date", "Time", "Duration", "Location", "Status"}
	if err := writeRow(file, "Appointments", 1, headers); err != nil {
		return err
	}
	for i, a := range appts {
		patient := a.PatientID
		guest := ""
		if a.Guest != nil {
			guest = fmt.Sprintf("%s (%s)", a.Guest.Name, a.Guest.Phone)
		}
		row := []string{
			a.ID, a.DoctorName, a.DoctorSpecialty, patient, guest,
			a.DateKey(), a.TimeOfDay(), fmt.Sprintf("%d min", a.DurationMinutes),
			a.Location, string(a.Status),
		}
		if err := writeRow(file, "Appointments", i+2, row); err != nil {
			return err
		}
	}

	events, err := s.store.ListAuditEvents(ctx, from)
	if err != nil {
		return fmt.Errorf("load events for export: %w", err)
	}

	if _, err := file.NewSheet("Events"); err != nil {
		return fmt.Errorf("create events sheet: %w", err)
	}
	if err := writeRow(file, "Events", 1, []string{"Time", "Event", "Appointment", "Actor", "Details"}); err != nil {
		return err
	}
	for i, ev := range events {
		row := []string{
			ev.CreatedAt.UTC().Format(time.RFC3339),
			ev.EventType, ev.AppointmentID, ev.ActorID, ev.Details,
		}
		if err := writeRow(file, "Events", i+2, row); err != nil {
			return err
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
