package busboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"fahrplan/internal/domain"
	"fahrplan/internal/timeofday"
)

// StatusCancelled is the literal the monitor shows for a dropped departure
const StatusCancelled = "cancelled"

// maxDelayMinutes bounds the delays we believe; anything beyond a day is noise
const maxDelayMinutes = 24 * 60

// Parse maps bus rows to schedule entries. Rows whose route is not a bus are
// dropped. Rows with an unreadable clock are skipped and reported in the
// returned error; the remaining entries are still returned.
func Parse(rows []domain.RawRow) ([]domain.ScheduleEntry, error) {
	entries := make([]domain.ScheduleEntry, 0, len(rows))
	var errs []error

	for i, row := range rows {
		if !domain.IsBusRoute(row.Route) {
			continue
		}
		e, err := toEntry(row)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d (%s): %w", i, row.Route, err))
			continue
		}
		entries = append(entries, e)
	}

	return entries, errors.Join(errs...)
}

func toEntry(row domain.RawRow) (domain.ScheduleEntry, error) {
	clock, err := NormalizeClock(row.Time)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}

	possible := PossibleDelay(row.Status)

	e := domain.ScheduleEntry{
		Time:        clock,
		Gate:        domain.GateUnknown,
		Delay:       possible,
		Route:       row.Route,
		Destination: domain.AbbreviateDestination(row.Direction),
		Type:        domain.TransportBus,
	}
	if possible.Known && possible.Minutes < 0 {
		e.Delay = domain.DelayOf(0)
	}

	switch {
	case strings.TrimSpace(row.Status) == StatusCancelled:
		e.Status = domain.StatusCancelled
		e.ExpectedTime = clock
		return e, nil
	case possible.Known && possible.Minutes > 0:
		e.Status = domain.StatusDelayed
	default:
		e.Status = domain.StatusOnTime
	}

	e.ExpectedTime, err = timeofday.AddMinutes(clock, e.Delay.Minutes)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	if !timeofday.Valid(e.Time) || !timeofday.Valid(e.ExpectedTime) {
		return domain.ScheduleEntry{}, fmt.Errorf("%w: unpadded clock %q -> %q", domain.ErrParse, e.Time, e.ExpectedTime)
	}
	return e, nil
}

// NormalizeClock converts "2:30 pm" to "14:30" and "9:05 am" to "09:05".
// The pm branch adds 12 hours without special casing 12 pm, which the
// monitor never shows in practice; the hour wraps into the day.
func NormalizeClock(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty time cell", domain.ErrParse)
	}

	hour, minute, err := timeofday.Parse(fields[0])
	if err != nil {
		return "", err
	}

	if len(fields) > 1 && strings.EqualFold(fields[len(fields)-1], "pm") {
		hour += 12
	}
	return timeofday.Format(hour, minute), nil
}

// PossibleDelay reads the minutes after the first "+" of a status such as
// "+5" or "ca. +12 min". Statuses without "+", without digits after it or
// with more than a day of delay yield an unknown delay.
func PossibleDelay(status string) domain.Delay {
	parts := strings.SplitN(status, "+", 2)
	if len(parts) < 2 {
		return domain.UnknownDelay
	}
	n, ok := leadingInt(parts[1])
	if !ok || n > maxDelayMinutes || n < -maxDelayMinutes {
		return domain.UnknownDelay
	}
	return domain.DelayOf(n)
}

// leadingInt parses an optionally signed integer prefix, ignoring what follows
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
