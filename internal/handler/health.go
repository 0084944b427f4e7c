package handler

import (
	"net/http"
	"time"

	"fahrplan/internal/store"
)

// Readiness is satisfied by the ingestor
type Readiness interface {
	IsReady() bool
}

type HealthHandler struct {
	ready Readiness
	store *store.Store
}

func NewHealthHandler(ready Readiness, s *store.Store) *HealthHandler {
	return &HealthHandler{
		ready: ready,
		store: s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	EntryCount int       `json:"entryCount"`
	Version    uint64    `json:"version"`
	ServerTime time.Time `json:"serverTime"`
}

// Readyz reports 503 until a poll has had at least one source succeed
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:      ready,
		EntryCount: h.store.Count(),
		Version:    h.store.Version(),
		ServerTime: time.Now(),
	})
}
