package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fahrplan/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs    []published
	err     error
	drained bool
	closed  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

type countingMetrics struct {
	ok, failed int
}

func (m *countingMetrics) NATSPublishedInc()  { m.ok++ }
func (m *countingMetrics) NATSPublishErrInc() { m.failed++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSchedule() *domain.Schedule {
	return &domain.Schedule{
		Entries: []domain.ScheduleEntry{
			{Time: "08:01:00", Route: "RE 2", Type: domain.TransportTrain, Status: domain.StatusOnTime},
			{Time: "08:10", Route: "Bus 620", Type: domain.TransportBus, Status: domain.StatusDelayed, Delay: domain.DelayOf(3)},
			{Time: "08:20", Route: "Bus 612", Type: domain.TransportBus, Status: domain.StatusOnTime},
		},
		GeneratedAt: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
		Sources:     []domain.SourceStatus{{Name: "rail", OK: true}, {Name: "bus", OK: false}},
	}
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "ingelheim_bf", subjectToken(" ingelheim.bf "))
	assert.Equal(t, "a_b_c", subjectToken("a b*c"))
	assert.Equal(t, "_", subjectToken(""))
}

func TestSubjects(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{}, "fahrplan", nil, discardLogger())
	assert.Equal(t, "fahrplan.schedule", p.Subject(domain.FilterAll))
	assert.Equal(t, "fahrplan.schedule.bus", p.Subject(domain.FilterBus))
	assert.Equal(t, "fahrplan.schedule.train", p.Subject(domain.FilterTrain))
}

func TestPublishSchedule(t *testing.T) {
	conn := &fakeConn{}
	m := &countingMetrics{}
	p := NewNATSPublisher(conn, "fahrplan", m, discardLogger())

	require.NoError(t, p.PublishSchedule(context.Background(), testSchedule()))
	require.Len(t, conn.msgs, 3)
	assert.Equal(t, 3, m.ok)

	counts := map[string]int{}
	for _, msg := range conn.msgs {
		var decoded ScheduleMessage
		require.NoError(t, json.Unmarshal(msg.data, &decoded))
		assert.True(t, decoded.Degraded)
		counts[msg.subject] = len(decoded.Entries)
	}
	assert.Equal(t, map[string]int{
		"fahrplan.schedule":       3,
		"fahrplan.schedule.bus":   2,
		"fahrplan.schedule.train": 1,
	}, counts)
}

func TestPublishScheduleError(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	m := &countingMetrics{}
	p := NewNATSPublisher(conn, "fahrplan", m, discardLogger())

	err := p.PublishSchedule(context.Background(), testSchedule())
	assert.ErrorContains(t, err, "fahrplan.schedule")
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 0, m.ok)
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	NewNATSPublisher(conn, "fahrplan", nil, discardLogger()).Close()
	assert.True(t, conn.drained)
	assert.True(t, conn.closed)
}
