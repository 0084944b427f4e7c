package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/store"
)

type ScheduleHandler struct {
	store *store.Store
}

func NewScheduleHandler(store *store.Store) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

// Board serves the bare entry array consumed by the departure displays
func (h *ScheduleHandler) Board(w http.ResponseWriter, r *http.Request) {
	f, ok := parseTypeParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.store.List(f))
}

type ScheduleResponse struct {
	Entries     []domain.ScheduleEntry `json:"entries"`
	Count       int                    `json:"count"`
	GeneratedAt *time.Time             `json:"generatedAt"`
	ServerTime  time.Time              `json:"serverTime"`
	Sources     []domain.SourceStatus  `json:"sources"`
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	f, ok := parseTypeParam(w, r)
	if !ok {
		return
	}

	resp := ScheduleResponse{
		Entries:    h.store.List(f),
		ServerTime: time.Now(),
		Sources:    []domain.SourceStatus{},
	}
	if sched, ok := h.store.Snapshot(); ok {
		resp.GeneratedAt = &sched.GeneratedAt
		if sched.Sources != nil {
			resp.Sources = sched.Sources
		}
	}
	resp.Count = len(resp.Entries)

	respondJSON(w, http.StatusOK, resp)
}

func parseTypeParam(w http.ResponseWriter, r *http.Request) (domain.Filter, bool) {
	f, ok := domain.ParseFilter(r.URL.Query().Get("type"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid type parameter: must be bus, train or all")
	}
	return f, ok
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
