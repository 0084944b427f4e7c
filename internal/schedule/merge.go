// Package schedule combines the per-source entry lists into one departure board.
package schedule

import (
	"slices"
	"strings"

	"fahrplan/internal/domain"
)

// Merge concatenates a and b and orders the result by scheduled time.
//
// Times compare as plain strings, which is chronological only because both
// parsers emit zero-padded 24-hour clocks. Entries without a time go last.
// The sort is stable, so equal times keep their input order with a before b.
// The inputs are not modified.
func Merge(a, b []domain.ScheduleEntry) []domain.ScheduleEntry {
	merged := make([]domain.ScheduleEntry, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)

	slices.SortStableFunc(merged, compareTime)
	return merged
}

func compareTime(x, y domain.ScheduleEntry) int {
	switch {
	case x.Time == "" && y.Time == "":
		return 0
	case x.Time == "":
		return 1
	case y.Time == "":
		return -1
	default:
		return strings.Compare(x.Time, y.Time)
	}
}

// Filter returns the entries matching f, keeping their order
func Filter(entries []domain.ScheduleEntry, f domain.Filter) []domain.ScheduleEntry {
	result := make([]domain.ScheduleEntry, 0, len(entries))
	if f == domain.FilterAll || f == "" {
		return append(result, entries...)
	}
	for _, e := range entries {
		if f.Matches(e) {
			result = append(result, e)
		}
	}
	return result
}

// CountByType returns the number of bus and train entries
func CountByType(entries []domain.ScheduleEntry) (buses, trains int) {
	for _, e := range entries {
		switch e.Type {
		case domain.TransportBus:
			buses++
		case domain.TransportTrain:
			trains++
		}
	}
	return buses, trains
}
