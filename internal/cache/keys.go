package cache

import (
	"fmt"

	"fahrplan/internal/domain"
)

const (
	KeyScheduleLatest  = "schedule:latest"
	KeyScheduleVersion = "schedule:version"
)

// KeyScheduleFiltered holds the latest entries of one transport type
func KeyScheduleFiltered(f domain.Filter) string {
	return fmt.Sprintf("schedule:%s", f)
}
