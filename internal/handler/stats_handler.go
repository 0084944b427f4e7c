package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/store"
)

// Stats tracks server-wide counters
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesIn     atomic.Int64
	wsMessagesOut    atomic.Int64
	rateLimitBlocked atomic.Int64
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

// CountRequests increments the request counter for every request passing through
func (s *Stats) CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.IncRequests()
		next.ServeHTTP(w, r)
	})
}

type ClientCounter interface {
	ClientCount() int
}

type StatsHandler struct {
	store   *store.Store
	clients ClientCounter
	stats   *Stats
	version string
}

func NewStatsHandler(s *store.Store, clients ClientCounter, stats *Stats, version string) *StatsHandler {
	return &StatsHandler{
		store:   s,
		clients: clients,
		stats:   stats,
		version: version,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Schedule  ScheduleStatsResponse  `json:"schedule"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type ScheduleStatsResponse struct {
	Total     int                   `json:"total"`
	Buses     int                   `json:"buses"`
	Trains    int                   `json:"trains"`
	Version   uint64                `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Degraded  bool                  `json:"degraded"`
	Sources   []domain.SourceStatus `json:"sources"`
}

type WebSocketStatsResponse struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.stats.startTime)

	buses, trains := h.store.CountByType()
	sched := ScheduleStatsResponse{
		Total:     buses + trains,
		Buses:     buses,
		Trains:    trains,
		Version:   h.store.Version(),
		UpdatedAt: h.store.UpdatedAt(),
		Sources:   []domain.SourceStatus{},
	}
	if snap, ok := h.store.Snapshot(); ok {
		sched.Degraded = snap.Degraded()
		if snap.Sources != nil {
			sched.Sources = snap.Sources
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     h.stats.startTime,
			RequestCount:  h.stats.requestCount.Load(),
			RateLimited:   h.stats.rateLimitBlocked.Load(),
			Version:       h.version,
		},
		Schedule: sched,
		WebSocket: WebSocketStatsResponse{
			Clients:     h.clients.ClientCount(),
			Connections: h.stats.wsConnections.Load(),
			MessagesIn:  h.stats.wsMessagesIn.Load(),
			MessagesOut: h.stats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	})
}
