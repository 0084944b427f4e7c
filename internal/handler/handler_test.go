package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fahrplan/internal/domain"
	"fahrplan/internal/hub"
	"fahrplan/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore() *store.Store {
	s := store.New()
	s.Update(&domain.Schedule{
		Entries: []domain.ScheduleEntry{
			{Time: "08:01:00", Gate: "2", Route: "RE 2", Destination: "Koblenz Hbf", Type: domain.TransportTrain, Status: domain.StatusOnTime, ExpectedTime: "08:01:00"},
			{Time: "08:10", Route: "Bus 620", Destination: "Mainz", Type: domain.TransportBus, Status: domain.StatusDelayed, Delay: domain.DelayOf(3), ExpectedTime: "08:13"},
		},
		GeneratedAt: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
		Sources: []domain.SourceStatus{
			{Name: domain.SourceRail, OK: true, Entries: 1},
			{Name: domain.SourceBus, OK: true, Entries: 1},
		},
	})
	return s
}

func TestBoardReturnsBareArray(t *testing.T) {
	h := NewScheduleHandler(seededStore())

	rec := httptest.NewRecorder()
	h.Board(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "RE 2", entries[0]["route"])
	assert.Nil(t, entries[0]["delay"])
	assert.Equal(t, float64(3), entries[1]["delay"])
}

func TestBoardFiltersByType(t *testing.T) {
	h := NewScheduleHandler(seededStore())

	rec := httptest.NewRecorder()
	h.Board(rec, httptest.NewRequest(http.MethodGet, "/?type=bus", nil))

	var entries []domain.ScheduleEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Bus 620", entries[0].Route)
}

func TestBoardEmptyBeforeFirstPoll(t *testing.T) {
	h := NewScheduleHandler(store.New())

	rec := httptest.NewRecorder()
	h.Board(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestBoardRejectsInvalidType(t *testing.T) {
	h := NewScheduleHandler(seededStore())

	rec := httptest.NewRecorder()
	h.Board(rec, httptest.NewRequest(http.MethodGet, "/?type=tram", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid type parameter")
}

func TestGetScheduleEnvelope(t *testing.T) {
	h := NewScheduleHandler(seededStore())

	rec := httptest.NewRecorder()
	h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/v1/schedule?type=train", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.NotNil(t, resp.GeneratedAt)
	assert.True(t, resp.GeneratedAt.Equal(time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)))
	assert.Len(t, resp.Sources, 2)
}

func TestGetScheduleBeforeFirstPoll(t *testing.T) {
	h := NewScheduleHandler(store.New())

	rec := httptest.NewRecorder()
	h.GetSchedule(rec, httptest.NewRequest(http.MethodGet, "/v1/schedule", nil))

	assert.Contains(t, rec.Body.String(), `"entries":[]`)
	assert.Contains(t, rec.Body.String(), `"generatedAt":null`)
	assert.Contains(t, rec.Body.String(), `"sources":[]`)
}

type readiness bool

func (r readiness) IsReady() bool { return bool(r) }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(readiness(false), store.New())

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = NewHealthHandler(readiness(true), seededStore())
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Equal(t, 2, resp.EntryCount)
	assert.Equal(t, uint64(1), resp.Version)
}

type fixedClients int

func (f fixedClients) ClientCount() int { return int(f) }

func TestStats(t *testing.T) {
	stats := NewStats()
	stats.IncRateLimitBlocked()
	h := NewStatsHandler(seededStore(), fixedClients(4), stats, "test")

	rec := httptest.NewRecorder()
	stats.CountRequests(http.HandlerFunc(h.GetStats)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Server.RequestCount)
	assert.Equal(t, int64(1), resp.Server.RateLimited)
	assert.Equal(t, "test", resp.Server.Version)
	assert.Equal(t, 2, resp.Schedule.Total)
	assert.Equal(t, 1, resp.Schedule.Buses)
	assert.Equal(t, 1, resp.Schedule.Trains)
	assert.False(t, resp.Schedule.Degraded)
	assert.Equal(t, 4, resp.WebSocket.Clients)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://ingelheim-fahrplan.web.app"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ingelheim-fahrplan.web.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://ingelheim-fahrplan.web.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGzipMiddleware(t *testing.T) {
	body := strings.Repeat(`{"time":"08:00"}`, 200)
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), len(body))
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"ingelheim-fahrplan.web.app", "localhost:5173"},
		OriginPatterns([]string{"https://ingelheim-fahrplan.web.app", "http://localhost:5173"}))
	assert.Equal(t, []string{"*"}, OriginPatterns([]string{"https://a.example", "*"}))
}

func readJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWebSocketSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := seededStore()
	h := hub.NewHub(discardLogger())
	go h.Run(ctx)

	stats := NewStats()
	ws := NewWSHandler(h, s, stats, []string{"*"}, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(ws.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var snap hub.SnapshotMessage
	readJSON(t, ctx, conn, &snap)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, domain.FilterAll, snap.Payload.Filter)
	assert.Len(t, snap.Payload.Entries, 2)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"subscribe","payload":{"filter":"bus"}}`)))
	readJSON(t, ctx, conn, &snap)
	assert.Equal(t, domain.FilterBus, snap.Payload.Filter)
	require.Len(t, snap.Payload.Entries, 1)
	assert.Equal(t, "Bus 620", snap.Payload.Entries[0].Route)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"subscribe","payload":{"filter":"tram"}}`)))
	var errMsg ErrorMessage
	readJSON(t, ctx, conn, &errMsg)
	assert.Equal(t, "error", errMsg.Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	var pong PongMessage
	readJSON(t, ctx, conn, &pong)
	assert.Equal(t, "pong", pong.Type)

	sched, _ := s.Snapshot()
	require.NoError(t, h.PublishSchedule(ctx, sched))
	readJSON(t, ctx, conn, &snap)
	assert.Equal(t, domain.FilterBus, snap.Payload.Filter)
	assert.Len(t, snap.Payload.Entries, 1)

	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, int64(1), stats.wsConnections.Load())
}
