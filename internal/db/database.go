// Package db provides sqlite-backed storage for identities, appointments
// and audit events.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicateSlot is returned when the (doctor_id, date_time) uniqueness
// constraint rejects an insert. It is the authoritative double-booking
// signal beneath the application-level check.
var ErrDuplicateSlot = errors.New("duplicate appointment slot")

// DB wraps sql.DB for the booking service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Identities are owned by the identity subsystem; the booking core
		// reads them and updates the embedded profile state.
		`CREATE TABLE IF NOT EXISTS identities (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT UNIQUE NOT NULL,
            phone TEXT,
            role TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT 1,
            profile TEXT NOT NULL DEFAULT '{}',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS appointments (
            id TEXT PRIMARY KEY,
            patient_id TEXT,
            guest_name TEXT,
            guest_phone TEXT,
            doctor_id TEXT NOT NULL,
            doctor_name TEXT NOT NULL,
            doctor_specialty TEXT NOT NULL,
            date_time DATETIME NOT NULL,
            duration_minutes INTEGER NOT NULL,
            location TEXT NOT NULL,
            created_by_doctor BOOLEAN NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'scheduled',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS audit_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            appointment_id TEXT,
            actor_id TEXT,
            details TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// The partial unique index is the final backstop against the
		// check-then-insert race on the same doctor/slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_doctor_slot
            ON appointments(doctor_id, date_time) WHERE status != 'cancelled'`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_doctor_time ON appointments(doctor_id, date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status_time ON appointments(status, date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Backup copies the database file to dest.
func (db *DB) Backup(dest string) error {
	var path string
	if err := db.QueryRow("PRAGMA database_list").Scan(new(int), new(string), &path); err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}
	if path == "" {
		return errors.New("in-memory database cannot be backed up")
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy backup: %w", err)
	}
	return nil
}

// CleanupBackups removes backup files in dir older than retention.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// Ping verifies the connection with a short deadline.
func (db *DB) Ping(ctx context.Context) error {
	ctxPing, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return db.PingContext(ctxPing)
}
