// Package slots turns a time-of-day range into discrete bookable start times.
package slots

import (
	"fmt"
	"strconv"
	"strings"
)

// Generate produces every "HH:MM" start t in [from, to) such that
// t+interval still fits before to, stepping by interval minutes from from.
// Returns nil when interval <= 0 or from >= to. Pure and deterministic.
func Generate(from, to string, intervalMinutes int) []string {
	if intervalMinutes <= 0 {
		return nil
	}

	start, err := ToMinutes(from)
	if err != nil {
		return nil
	}
	end, err := ToMinutes(to)
	if err != nil {
		return nil
	}
	if start >= end {
		return nil
	}

	var out []string
	for cursor := start; cursor+intervalMinutes <= end; cursor += intervalMinutes {
		out = append(out, FromMinutes(cursor))
	}
	return out
}

// Contains reports whether timeOfDay is a member of the generated slot set.
func Contains(from, to string, intervalMinutes int, timeOfDay string) bool {
	for _, s := range Generate(from, to, intervalMinutes) {
		if s == timeOfDay {
			return true
		}
	}
	return false
}

// ToMinutes parses an "HH:MM" time of day into minutes since midnight.
func ToMinutes(timeOfDay string) (int, error) {
	parts := strings.Split(timeOfDay, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", timeOfDay)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", timeOfDay, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", timeOfDay, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day out of range: %s", timeOfDay)
	}

	return hour*60 + minute, nil
}

// FromMinutes formats minutes since midnight as a zero-padded "HH:MM".
func FromMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RangeMinutes returns the length of [from, to) in minutes, or 0 when the
// range is malformed or inverted.
func RangeMinutes(from, to string) int {
	start, err := ToMinutes(from)
	if err != nil {
		return 0
	}
	end, err := ToMinutes(to)
	if err != nil {
		return 0
	}
	if end <= start {
		return 0
	}
	return end - start
}
