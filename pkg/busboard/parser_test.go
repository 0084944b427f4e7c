package busboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fahrplan/internal/domain"
)

func TestParseCancelledRow(t *testing.T) {
	entries, err := Parse([]domain.RawRow{
		{Time: "2:30 pm", Route: "Bus 12", Status: "cancelled", Direction: "Hauptbahnhof"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, domain.ScheduleEntry{
		Time:         "14:30",
		Gate:         domain.GateUnknown,
		Status:       domain.StatusCancelled,
		Delay:        domain.UnknownDelay,
		ExpectedTime: "14:30",
		Route:        "Bus 12",
		Destination:  "Hbf",
		Type:         domain.TransportBus,
	}, entries[0])
}

func TestParseStatuses(t *testing.T) {
	tests := []struct {
		name         string
		row          domain.RawRow
		wantStatus   domain.Status
		wantDelay    domain.Delay
		wantTime     string
		wantExpected string
	}{
		{
			name:         "delayed",
			row:          domain.RawRow{Time: "9:55 am", Route: "Bus 620", Status: "+7", Direction: "Bingen"},
			wantStatus:   domain.StatusDelayed,
			wantDelay:    domain.DelayOf(7),
			wantTime:     "09:55",
			wantExpected: "10:02",
		},
		{
			name:         "delay wraps midnight",
			row:          domain.RawRow{Time: "11:58 pm", Route: "Nachtbus N1", Status: "+5", Direction: "Mainz"},
			wantStatus:   domain.StatusDelayed,
			wantDelay:    domain.DelayOf(5),
			wantTime:     "23:58",
			wantExpected: "00:03",
		},
		{
			name:         "zero delay is on time",
			row:          domain.RawRow{Time: "10:10 am", Route: "Bus 612", Status: "+0", Direction: "Mainz"},
			wantStatus:   domain.StatusOnTime,
			wantDelay:    domain.DelayOf(0),
			wantTime:     "10:10",
			wantExpected: "10:10",
		},
		{
			name:         "no realtime",
			row:          domain.RawRow{Time: "10:10 am", Route: "Bus 612", Status: "", Direction: "Mainz"},
			wantStatus:   domain.StatusOnTime,
			wantDelay:    domain.UnknownDelay,
			wantTime:     "10:10",
			wantExpected: "10:10",
		},
		{
			name:         "non numeric delay is unknown",
			row:          domain.RawRow{Time: "1:05 pm", Route: "BUS 640", Status: "+ca", Direction: "Bad Kreuznach"},
			wantStatus:   domain.StatusOnTime,
			wantDelay:    domain.UnknownDelay,
			wantTime:     "13:05",
			wantExpected: "13:05",
		},
		{
			name:         "early departure",
			row:          domain.RawRow{Time: "1:05 pm", Route: "Bus 640", Status: "-2", Direction: "Bad Kreuznach"},
			wantStatus:   domain.StatusOnTime,
			wantDelay:    domain.UnknownDelay,
			wantTime:     "13:05",
			wantExpected: "13:05",
		},
		{
			name:         "cancelled literal with padding",
			row:          domain.RawRow{Time: "8:00 am", Route: "Bus 620", Status: " cancelled ", Direction: "Mainz Hauptbahnhof"},
			wantStatus:   domain.StatusCancelled,
			wantDelay:    domain.UnknownDelay,
			wantTime:     "08:00",
			wantExpected: "08:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse([]domain.RawRow{tt.row})
			require.NoError(t, err)
			require.Len(t, entries, 1)

			e := entries[0]
			assert.Equal(t, tt.wantStatus, e.Status)
			assert.Equal(t, tt.wantDelay, e.Delay)
			assert.Equal(t, tt.wantTime, e.Time)
			assert.Equal(t, tt.wantExpected, e.ExpectedTime)
			assert.Equal(t, domain.GateUnknown, e.Gate)
			assert.Equal(t, domain.TransportBus, e.Type)
		})
	}
}

func TestParseDropsNonBusRows(t *testing.T) {
	entries, err := Parse([]domain.RawRow{
		{Time: "8:00 am", Route: "RB 33", Status: "", Direction: "Mainz"},
		{Time: "8:05 am", Route: "Bus 620", Status: "", Direction: "Bingen"},
		{Time: "8:10 am", Route: "Tram 50", Status: "", Direction: "Mainz"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bus 620", entries[0].Route)
}

func TestParseSkipsUnreadableClock(t *testing.T) {
	entries, err := Parse([]domain.RawRow{
		{Time: "soon", Route: "Bus 1", Status: "", Direction: "A"},
		{Time: "8:05 am", Route: "Bus 2", Status: "", Direction: "B"},
	})
	assert.ErrorIs(t, err, domain.ErrParse)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bus 2", entries[0].Route)
}

func TestParseClampsNegativeDelay(t *testing.T) {
	entries, err := Parse([]domain.RawRow{{Time: "8:05 am", Route: "Bus 2", Status: "+-3", Direction: "B"}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DelayOf(0), entries[0].Delay)
	assert.Equal(t, domain.StatusOnTime, entries[0].Status)
	assert.Equal(t, "08:05", entries[0].ExpectedTime)
}

func TestNormalizeClock(t *testing.T) {
	tests := map[string]string{
		"2:30 pm":  "14:30",
		"2:30 PM":  "14:30",
		"9:05 am":  "09:05",
		"11:59 pm": "23:59",
		"10:00":    "10:00",
		"12:15 pm": "00:15",
		"12:15 am": "12:15",
	}
	for in, want := range tests {
		got, err := NormalizeClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeClock("")
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestPossibleDelay(t *testing.T) {
	assert.Equal(t, domain.DelayOf(5), PossibleDelay("+5"))
	assert.Equal(t, domain.DelayOf(12), PossibleDelay("ca. +12 min"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("pünktlich"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("+"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("-4"))
	assert.Equal(t, domain.DelayOf(1440), PossibleDelay("+1440"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("+1441"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("+99999999999"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("+9223372036854775807"))
	assert.Equal(t, domain.UnknownDelay, PossibleDelay("+99999999999999999999"))
}

func TestParseBoundsAbsurdDelays(t *testing.T) {
	for _, status := range []string{"+99999999999", "+9223372036854775807", "+-9223372036854775808"} {
		done := make(chan []domain.ScheduleEntry, 1)
		go func() {
			entries, err := Parse([]domain.RawRow{{Time: "8:00 am", Route: "Bus 1", Status: status, Direction: "Mainz"}})
			assert.NoError(t, err)
			done <- entries
		}()

		select {
		case entries := <-done:
			require.Len(t, entries, 1, status)
			assert.Equal(t, domain.UnknownDelay, entries[0].Delay, status)
			assert.Equal(t, domain.StatusOnTime, entries[0].Status, status)
			assert.Equal(t, "08:00", entries[0].ExpectedTime, status)
		case <-time.After(2 * time.Second):
			t.Fatalf("Parse did not return for status %q", status)
		}
	}
}
