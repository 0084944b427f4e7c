package rmv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fahrplan/internal/domain"
)

// Realtime status codes reported by the departure board
const (
	StatusNone    = "NONE"
	StatusDelayed = "DELAYED"
	StatusFailure = "FAILURE"
	StatusOnTime  = "ONTIME"
)

// Journey is one departure of the rail departure board
type Journey struct {
	Time      string `json:"time"`
	Track     Track  `json:"track"`
	Mot       Mot    `json:"mot"`
	Direction string `json:"direction"`
	RTInfo    RTInfo `json:"rtInfo"`
}

type Track struct {
	Platform string `json:"platform"`
}

// Mot is the means of transport, e.g. "RB 33" or "Bus 620"
type Mot struct {
	Name string `json:"name"`
}

// RTInfo carries the realtime deviation of a journey
type RTInfo struct {
	Status    string  `json:"status"`
	ProgDelay Minutes `json:"progDelay"`
	ProgTime  string  `json:"progTime"`
	Time      string  `json:"time"`
}

// Minutes accepts both 5 and "5" since the board is not consistent about it
type Minutes int

func (m *Minutes) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("minutes %s: %w", data, err)
	}
	*m = Minutes(n)
	return nil
}

type board struct {
	Journeys *[]Journey `json:"journeys"`
}

// trailingComma matches a comma directly before a closing brace or bracket.
// The board encoder emits those; strict JSON does not allow them.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// RepairTrailingCommas removes the trailing commas the board encoder leaves behind
func RepairTrailingCommas(raw []byte) []byte {
	return trailingComma.ReplaceAll(raw, []byte("$1"))
}

// Decode repairs the payload and returns its journey list in upstream order
func Decode(raw []byte) ([]Journey, error) {
	repaired := RepairTrailingCommas(bytes.TrimSpace(raw))

	var b board
	if err := json.Unmarshal(repaired, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if b.Journeys == nil {
		return nil, fmt.Errorf("%w: no journeys list", domain.ErrMalformedPayload)
	}
	return *b.Journeys, nil
}

// Parse turns the raw board payload into schedule entries
func Parse(raw []byte) ([]domain.ScheduleEntry, error) {
	journeys, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return ToEntries(journeys), nil
}

// ToEntries drops journeys without realtime information and maps the rest
func ToEntries(journeys []Journey) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(journeys))
	for _, j := range journeys {
		if !hasRealtime(j) {
			continue
		}
		entries = append(entries, toEntry(j))
	}
	return entries
}

func hasRealtime(j Journey) bool {
	status := strings.TrimSpace(j.RTInfo.Status)
	return status != "" && status != StatusNone
}

func toEntry(j Journey) domain.ScheduleEntry {
	e := domain.ScheduleEntry{
		Time:        j.Time,
		Gate:        j.Track.Platform,
		Delay:       domain.DelayOf(0),
		Route:       j.Mot.Name,
		Destination: domain.AbbreviateDestination(j.Direction),
		Type:        domain.TypeOf(j.Mot.Name),
	}

	switch code := strings.TrimSpace(j.RTInfo.Status); code {
	case StatusDelayed:
		e.Status = domain.StatusDelayed
		e.Delay = domain.DelayOf(max(int(j.RTInfo.ProgDelay), 0))
		e.ExpectedTime = j.RTInfo.ProgTime
	case StatusFailure:
		// cancellations keep the original slot
		e.Status = domain.StatusCancelled
		e.ExpectedTime = j.Time
	case StatusOnTime:
		e.Status = domain.StatusOnTime
		e.ExpectedTime = j.RTInfo.ProgTime
	default:
		e.Status = domain.Status(strings.ToLower(code))
		e.ExpectedTime = j.RTInfo.Time
	}

	return e
}
