package model

import (
	"fmt"
	"time"
)

// Role discriminates the profile variant carried by an identity.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleClinic  Role = "clinic"
)

// Weekday names match the recurring schedule entries ("Monday".."Sunday").
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// WeekdayOf maps a UTC instant to its schedule weekday.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.UTC().Weekday().String())
}

// TimeRange is one open interval of a doctor's day at a given location.
// From and To are "HH:MM" times of day, From < To.
type TimeRange struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Location string `json:"location"`
}

// WeeklyScheduleBlock is the recurring availability for one weekday.
type WeeklyScheduleBlock struct {
	Day        Weekday     `json:"day"`
	TimeRanges []TimeRange `json:"time_ranges"`
}

// DoctorProfile holds the scheduling state of a doctor identity.
type DoctorProfile struct {
	Specialty            string                `json:"specialty"`
	ConsultationDuration int                   `json:"consultation_duration"` // minutes
	Availability         []WeeklyScheduleBlock `json:"availability"`
	// ManualBlocks maps an ISO date to blocked "HH:MM" start times,
	// overriding the weekly recurrence for that date only.
	ManualBlocks map[string][]string `json:"manual_blocks,omitempty"`
}

// BlocksFor returns the schedule blocks for a weekday. The schema does not
// forbid multiple entries per day, so all matches are returned.
func (p *DoctorProfile) BlocksFor(day Weekday) []WeeklyScheduleBlock {
	var out []WeeklyScheduleBlock
	for _, b := range p.Availability {
		if b.Day == day {
			out = append(out, b)
		}
	}
	return out
}

// IsManuallyBlocked checks whether the "HH:MM" start is blocked on dateKey.
func (p *DoctorProfile) IsManuallyBlocked(dateKey, timeOfDay string) bool {
	for _, t := range p.ManualBlocks[dateKey] {
		if t == timeOfDay {
			return true
		}
	}
	return false
}

// PatientProfile carries the cancellation-abuse throttling state.
type PatientProfile struct {
	CancellationCount    int        `json:"cancellation_count"`
	LastCancellationDate *time.Time `json:"last_cancellation_date,omitempty"`
}

// ClinicProfile is kept minimal; clinics only manage doctor references here.
type ClinicProfile struct {
	Verified       bool     `json:"verified"`
	DoctorsManaged []string `json:"doctors_managed,omitempty"`
}

// Identity is a user record owned by the identity subsystem and referenced
// by appointments via ID. The profile variant is selected by Role.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Doctor  *DoctorProfile  `json:"doctor,omitempty"`
	Patient *PatientProfile `json:"patient,omitempty"`
	Clinic  *ClinicProfile  `json:"clinic,omitempty"`
}

// Validate enforces the role/profile pairing and schedule invariants.
func (id *Identity) Validate() error {
	switch id.Role {
	case RoleDoctor:
		if id.Doctor == nil || id.Patient != nil || id.Clinic != nil {
			return fmt.Errorf("identity %s: doctor role requires exactly a doctor profile", id.ID)
		}
		for _, block := range id.Doctor.Availability {
			if !validWeekday(block.Day) {
				return fmt.Errorf("identity %s: invalid weekday %q", id.ID, block.Day)
			}
			for _, r := range block.TimeRanges {
				if r.From >= r.To {
					return fmt.Errorf("identity %s: time range %s-%s on %s: from must precede to",
						id.ID, r.From, r.To, block.Day)
				}
			}
		}
	case RolePatient:
		if id.Patient == nil || id.Doctor != nil || id.Clinic != nil {
			return fmt.Errorf("identity %s: patient role requires exactly a patient profile", id.ID)
		}
	case RoleClinic:
		if id.Clinic == nil || id.Doctor != nil || id.Patient != nil {
			return fmt.Errorf("identity %s: clinic role requires exactly a clinic profile", id.ID)
		}
	case RoleAdmin:
		if id.Doctor != nil || id.Patient != nil || id.Clinic != nil {
			return fmt.Errorf("identity %s: admin role carries no profile", id.ID)
		}
	default:
		return fmt.Errorf("identity %s: unknown role %q", id.ID, id.Role)
	}
	return nil
}

func validWeekday(d Weekday) bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}
