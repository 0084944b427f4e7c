package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/schedule"
)

// KV is the subset of RedisCache the snapshot cache needs
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	SetJSONCompressed(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSONCompressed(ctx context.Context, key string, dest any) (bool, error)
}

// ScheduleRestorer is satisfied by the store
type ScheduleRestorer interface {
	Update(sched *domain.Schedule) bool
}

// SnapshotCache persists the latest schedule so a restarted instance has
// something to serve before its first poll finishes.
type SnapshotCache struct {
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(kv KV, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger.With("component", "snapshot_cache"),
	}
}

// PublishSchedule stores the full schedule plus one plain JSON list per transport type
func (c *SnapshotCache) PublishSchedule(ctx context.Context, sched *domain.Schedule) error {
	start := time.Now()

	if err := c.kv.SetJSONCompressed(ctx, KeyScheduleLatest, sched, c.ttl); err != nil {
		return fmt.Errorf("storing schedule: %w", err)
	}

	for _, f := range []domain.Filter{domain.FilterBus, domain.FilterTrain} {
		if err := c.kv.SetJSON(ctx, KeyScheduleFiltered(f), schedule.Filter(sched.Entries, f), c.ttl); err != nil {
			return fmt.Errorf("storing %s schedule: %w", f, err)
		}
	}

	version := strconv.FormatInt(sched.GeneratedAt.Unix(), 10)
	if err := c.kv.Set(ctx, KeyScheduleVersion, []byte(version), c.ttl); err != nil {
		return fmt.Errorf("storing schedule version: %w", err)
	}

	c.logger.Debug("cached schedule", "entries", len(sched.Entries), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Load returns the cached schedule, or nil when there is none
func (c *SnapshotCache) Load(ctx context.Context) (*domain.Schedule, error) {
	var sched domain.Schedule
	found, err := c.kv.GetJSONCompressed(ctx, KeyScheduleLatest, &sched)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if sched.Entries == nil {
		sched.Entries = []domain.ScheduleEntry{}
	}
	return &sched, nil
}

// Restore copies the cached schedule into dst. It reports whether one was found.
func (c *SnapshotCache) Restore(ctx context.Context, dst ScheduleRestorer) (bool, error) {
	sched, err := c.Load(ctx)
	if err != nil || sched == nil {
		return false, err
	}
	dst.Update(sched)
	c.logger.Info("restored cached schedule", "entries", len(sched.Entries), "generated_at", sched.GeneratedAt)
	return true, nil
}
