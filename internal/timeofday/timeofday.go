// Package timeofday does minute arithmetic on wall-clock strings such as "08:15".
// Results are always zero-padded 24-hour "HH:MM" so they sort lexicographically.
package timeofday

import (
	"fmt"
	"strconv"
	"strings"

	"fahrplan/internal/domain"
)

const minutesPerDay = 24 * 60

// Parse splits "H:MM", "HH:MM" or "HH:MM:SS" into hour and minute.
// Seconds are accepted and dropped.
func Parse(clock string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("%w: clock %q", domain.ErrParse, clock)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hour in %q", domain.ErrParse, clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: minute in %q", domain.ErrParse, clock)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, 0, fmt.Errorf("%w: second in %q", domain.ErrParse, clock)
		}
	}
	return hour, minute, nil
}

// Format renders hour and minute as "HH:MM", wrapping both into a single day
func Format(hour, minute int) string {
	total := (hour%24*60 + minute%minutesPerDay) % minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// AddMinutes shifts clock by delta minutes modulo one day. A zero delta
// returns clock unchanged, even if it is not zero-padded.
func AddMinutes(clock string, delta int) (string, error) {
	if delta == 0 {
		return clock, nil
	}

	hour, minute, err := Parse(clock)
	if err != nil {
		return "", err
	}

	return Format(hour, minute+delta%minutesPerDay), nil
}

// Valid reports whether clock is a zero-padded "HH:MM" or "HH:MM:SS" within a day
func Valid(clock string) bool {
	if len(clock) != 5 && len(clock) != 8 {
		return false
	}
	hour, minute, err := Parse(clock)
	if err != nil {
		return false
	}
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60
}
