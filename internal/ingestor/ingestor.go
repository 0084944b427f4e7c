package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/schedule"
	"fahrplan/internal/store"
)

// Source is one upstream departure board
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.ScheduleEntry, error)
}

// Sink receives every schedule whose entries differ from the previous poll
type Sink interface {
	PublishSchedule(ctx context.Context, sched *domain.Schedule) error
}

type Metrics interface {
	ObserveFetch(source string, entries int, err error, kind string)
	ObservePoll(d time.Duration, entries int, degraded bool)
}

// Ingestor polls both sources and keeps the store's schedule current.
//
// A source that fails contributes no entries; the other source's entries are
// still merged and published. When both fail the schedule is empty. Failures
// are logged and counted, never returned to HTTP clients.
type Ingestor struct {
	rail, bus    Source
	store        *store.Store
	sinks        []Sink
	metrics      Metrics
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	ready   bool
	readyMu sync.RWMutex
}

type Option func(*Ingestor)

func WithSinks(sinks ...Sink) Option {
	return func(i *Ingestor) { i.sinks = append(i.sinks, sinks...) }
}

func WithMetrics(m Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

func New(rail, bus Source, store *store.Store, pollInterval time.Duration, logger *slog.Logger, opts ...Option) *Ingestor {
	i := &Ingestor{
		rail:         rail,
		bus:          bus,
		store:        store,
		pollInterval: pollInterval,
		logger:       logger.With("component", "ingestor"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Ingestor) Run(ctx context.Context) {
	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	i.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.poll(ctx)
		}
	}
}

// Refresh runs a single poll and returns the schedule it produced
func (i *Ingestor) Refresh(ctx context.Context) *domain.Schedule {
	return i.poll(ctx)
}

type fetchResult struct {
	entries []domain.ScheduleEntry
	status  domain.SourceStatus
}

func (i *Ingestor) poll(ctx context.Context) *domain.Schedule {
	start := time.Now()

	var wg sync.WaitGroup
	var railRes, busRes fetchResult

	wg.Add(2)

	go func() {
		defer wg.Done()
		railRes = i.fetch(ctx, i.rail)
	}()

	go func() {
		defer wg.Done()
		busRes = i.fetch(ctx, i.bus)
	}()

	wg.Wait()

	sched := &domain.Schedule{
		Entries:     schedule.Merge(railRes.entries, busRes.entries),
		GeneratedAt: i.now(),
		Sources:     []domain.SourceStatus{railRes.status, busRes.status},
	}

	changed := i.store.Update(sched)
	if changed {
		i.publish(ctx, sched)
	}

	if i.metrics != nil {
		i.metrics.ObservePoll(time.Since(start), len(sched.Entries), sched.Degraded())
	}

	if !i.IsReady() && (railRes.status.OK || busRes.status.OK) {
		i.setReady(true)
		i.logger.Info("ingestor ready", "rail", len(railRes.entries), "bus", len(busRes.entries))
	}

	i.logger.Debug("poll completed",
		"rail", len(railRes.entries),
		"bus", len(busRes.entries),
		"total", len(sched.Entries),
		"changed", changed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return sched
}

func (i *Ingestor) fetch(ctx context.Context, src Source) fetchResult {
	name := src.Name()
	entries, err := src.Fetch(ctx)
	if err != nil {
		err = &domain.SourceError{Source: name, Err: err}
	}
	status := domain.SourceStatus{Name: name, FetchedAt: i.now()}

	switch {
	case err == nil:
		status.OK = true
	case len(entries) > 0:
		// some rows were unreadable, keep the rest
		status.OK = true
		status.Error = err.Error()
		i.logger.Warn("source returned partial result", "source", name, "entries", len(entries), "error", err)
	default:
		entries = nil
		status.Error = err.Error()
		i.logger.Error("failed to fetch source", "source", name, "kind", errorKind(err), "error", err)
	}
	status.Entries = len(entries)

	if i.metrics != nil {
		var observed error
		if !status.OK {
			observed = err
		}
		i.metrics.ObserveFetch(name, len(entries), observed, errorKind(err))
	}

	return fetchResult{entries: entries, status: status}
}

func (i *Ingestor) publish(ctx context.Context, sched *domain.Schedule) {
	for _, sink := range i.sinks {
		if err := sink.PublishSchedule(ctx, sched); err != nil {
			i.logger.Error("failed to publish schedule", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrUpstreamFetch):
		return "fetch"
	case errors.Is(err, domain.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, domain.ErrExtraction):
		return "extraction"
	case errors.Is(err, domain.ErrParse):
		return "parse"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

func (i *Ingestor) IsReady() bool {
	i.readyMu.RLock()
	defer i.readyMu.RUnlock()
	return i.ready
}

func (i *Ingestor) setReady(ready bool) {
	i.readyMu.Lock()
	defer i.readyMu.Unlock()
	i.ready = ready
}
