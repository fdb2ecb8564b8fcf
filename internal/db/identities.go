package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"citago/internal/model"
)

type profileBlob struct {
	Doctor  *model.DoctorProfile  `json:"doctor,omitempty"`
	Patient *model.PatientProfile `json:"patient,omitempty"`
	Clinic  *model.ClinicProfile  `json:"clinic,omitempty"`
}

// GetIdentity loads an identity by id. Returns sql.ErrNoRows when absent.
func (db *DB) GetIdentity(ctx context.Context, id string) (*model.Identity, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, active, profile, created_at, updated_at
		FROM identities
		WHERE id = ?`,
		id,
	)
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*model.Identity, error) {
	var ident model.Identity
	var phone sql.NullString
	var profile string

	err := row.Scan(
		&ident.ID, &ident.Name, &ident.Email, &phone, &ident.Role,
		&ident.Active, &profile, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		ident.Phone = phone.String
	}

	var blob profileBlob
	if err := json.Unmarshal([]byte(profile), &blob); err != nil {
		return nil, fmt.Errorf("decode profile for identity %s: %w", ident.ID, err)
	}
	ident.Doctor = blob.Doctor
	ident.Patient = blob.Patient
	ident.Clinic = blob.Clinic

	return &ident, nil
}

// SaveIdentity inserts or replaces an identity record after validating the
// role/profile pairing.
func (db *DB) SaveIdentity(ctx context.Context, ident *model.Identity) error {
	if err := ident.Validate(); err != nil {
		return err
	}

	profile, err := json.Marshal(profileBlob{
		Doctor:  ident.Doctor,
		Patient: ident.Patient,
		Clinic:  ident.Clinic,
	})
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	now := time.Now().UTC()
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	ident.UpdatedAt = now

	_, err = db.ExecContext(ctx, `
		INSERT INTO identities (id, name, email, phone, role, active, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			role = excluded.role,
			active = excluded.active,
			profile = excluded.profile,
			updated_at = excluded.updated_at`,
		ident.ID, ident.Name, ident.Email, nullable(ident.Phone), ident.Role,
		ident.Active, string(profile), ident.CreatedAt, ident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity %s: %w", ident.ID, err)
	}
	return nil
}

// DeleteIdentity removes an identity and hard-deletes every appointment that
// references it, either as doctor or as patient.
func (db *DB) DeleteIdentity(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete identity: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM appointments WHERE doctor_id = ? OR patient_id = ?`, id, id); err != nil {
		return fmt.Errorf("cascade delete appointments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete identity %s: %w", id, err)
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
