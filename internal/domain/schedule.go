package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TransportType distinguishes buses from trains
type TransportType string

const (
	TransportBus   TransportType = "bus"
	TransportTrain TransportType = "train"
)

// TypeOf derives the transport type from a route label
func TypeOf(route string) TransportType {
	if IsBusRoute(route) {
		return TransportBus
	}
	return TransportTrain
}

// IsBusRoute reports whether the label contains "bus", ignoring case
func IsBusRoute(route string) bool {
	return strings.Contains(strings.ToLower(route), "bus")
}

// Status is the shared realtime vocabulary of both sources.
// Upstream codes without a mapping are carried lower-cased.
type Status string

const (
	StatusOnTime    Status = "on-time"
	StatusDelayed   Status = "delayed"
	StatusCancelled Status = "cancelled"
)

// GateUnknown is reported for entries without a platform
const GateUnknown = "A-E"

// Delay is a minute count that may be unknown. Unknown delays encode as JSON null.
type Delay struct {
	Minutes int
	Known   bool
}

func DelayOf(minutes int) Delay {
	return Delay{Minutes: minutes, Known: true}
}

// UnknownDelay is the placeholder for a delay the upstream text did not carry
var UnknownDelay = Delay{}

func (d Delay) String() string {
	if !d.Known {
		return "unknown"
	}
	return strconv.Itoa(d.Minutes)
}

func (d Delay) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(d.Minutes)), nil
}

func (d *Delay) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = UnknownDelay
		return nil
	}
	var m int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = DelayOf(m)
	return nil
}

// ScheduleEntry is one departure in the canonical shape served to display clients
type ScheduleEntry struct {
	Time         string        `json:"time"`
	Gate         string        `json:"gate,omitempty"`
	Status       Status        `json:"status"`
	Delay        Delay         `json:"delay"`
	ExpectedTime string        `json:"expectedTime"`
	Route        string        `json:"route"`
	Destination  string        `json:"destination"`
	Type         TransportType `json:"type"`
}

// RawRow is one departure row as extracted from the bus board markup
type RawRow struct {
	Time      string `json:"time"`
	Route     string `json:"route"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
}

// AbbreviateDestination shortens "Hauptbahnhof" to "Hbf"
func AbbreviateDestination(s string) string {
	return strings.ReplaceAll(s, "Hauptbahnhof", "Hbf")
}

// Source names used in logs, metrics and source status
const (
	SourceRail = "rail"
	SourceBus  = "bus"
)

// SourceStatus describes the outcome of the last fetch of one upstream source
type SourceStatus struct {
	Name      string    `json:"name"`
	OK        bool      `json:"ok"`
	Entries   int       `json:"entries"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Schedule is the merged result of a single poll
type Schedule struct {
	Entries     []ScheduleEntry `json:"entries"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Sources     []SourceStatus  `json:"sources"`
}

// Degraded reports whether at least one source failed during the poll
func (s *Schedule) Degraded() bool {
	for _, src := range s.Sources {
		if !src.OK {
			return true
		}
	}
	return false
}

// Filter selects entries by transport type
type Filter string

const (
	FilterAll   Filter = "all"
	FilterBus   Filter = "bus"
	FilterTrain Filter = "train"
)

// ParseFilter accepts "", "all", "bus" and "train"
func ParseFilter(s string) (Filter, bool) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterBus:
		return FilterBus, true
	case FilterTrain:
		return FilterTrain, true
	default:
		return "", false
	}
}

// Matches reports whether the entry passes the filter
func (f Filter) Matches(e ScheduleEntry) bool {
	switch f {
	case FilterBus:
		return e.Type == TransportBus
	case FilterTrain:
		return e.Type == TransportTrain
	default:
		return true
	}
}
