package store

import (
	"slices"
	"sync"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/schedule"
)

// Store keeps the most recent merged schedule
type Store struct {
	mu       sync.RWMutex
	current  *domain.Schedule
	updated  time.Time
	versions uint64
}

func New() *Store {
	return &Store{}
}

// Update replaces the schedule and reports whether its entries changed
func (s *Store) Update(sched *domain.Schedule) bool {
	next := cloneSchedule(sched)

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.current == nil || hasChanged(s.current.Entries, next.Entries)
	s.current = next
	s.updated = time.Now()
	if changed {
		s.versions++
	}
	return changed
}

// Snapshot returns a copy of the current schedule, or false before the first update
func (s *Store) Snapshot() (*domain.Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return cloneSchedule(s.current), true
}

// List returns the current entries matching f. It never returns nil.
func (s *Store) List(f domain.Filter) []domain.ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return []domain.ScheduleEntry{}
	}
	return schedule.Filter(s.current.Entries, f)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return len(s.current.Entries)
}

func (s *Store) CountByType() (buses, trains int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0, 0
	}
	return schedule.CountByType(s.current.Entries)
}

// Version increases each time Update stores different entries
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

func cloneSchedule(sched *domain.Schedule) *domain.Schedule {
	if sched == nil {
		return &domain.Schedule{Entries: []domain.ScheduleEntry{}, Sources: []domain.SourceStatus{}}
	}
	cp := *sched
	cp.Entries = append(make([]domain.ScheduleEntry, 0, len(sched.Entries)), sched.Entries...)
	cp.Sources = append(make([]domain.SourceStatus, 0, len(sched.Sources)), sched.Sources...)
	return &cp
}

func hasChanged(old, new []domain.ScheduleEntry) bool {
	return !slices.Equal(old, new)
}
