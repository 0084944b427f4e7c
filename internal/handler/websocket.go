package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"fahrplan/internal/domain"
	"fahrplan/internal/hub"
	"fahrplan/internal/store"
)

type WSHandler struct {
	hub            *hub.Hub
	store          *store.Store
	stats          *Stats
	originPatterns []string
	logger         *slog.Logger
}

func NewWSHandler(h *hub.Hub, s *store.Store, stats *Stats, originPatterns []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:            h,
		store:          s,
		stats:          stats,
		originPatterns: originPatterns,
		logger:         logger.With("component", "websocket"),
	}
}

// OriginPatterns turns allowed CORS origins into websocket host patterns
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	Filter string `json:"filter"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 64)

	h.hub.Register(client)
	h.stats.IncWSConnections()
	defer h.stats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.sendSnapshot(client)

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		h.stats.IncWSMessagesIn()

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					h.sendJSON(client, ErrorMessage{Type: "error", Message: "invalid subscribe payload"})
					continue
				}
			}
			f, ok := domain.ParseFilter(payload.Filter)
			if !ok {
				h.sendJSON(client, ErrorMessage{Type: "error", Message: "invalid filter: must be bus, train or all"})
				continue
			}
			h.hub.Subscribe(client, f)
			h.sendSnapshot(client)

		case "ping":
			h.sendJSON(client, PongMessage{Type: "pong"})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			h.stats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sendSnapshot sends the current schedule, or an empty one before the first poll
func (h *WSHandler) sendSnapshot(client *hub.Client) {
	sched, ok := h.store.Snapshot()
	if !ok {
		sched = &domain.Schedule{Entries: []domain.ScheduleEntry{}}
	}

	data, err := hub.BuildSnapshot(sched, client.Filter())
	if err != nil {
		h.logger.Error("failed to encode snapshot", "client_id", client.ID, "error", err)
		return
	}
	if !h.hub.Send(client, data) {
		h.logger.Debug("failed to send snapshot", "client_id", client.ID)
	}
}

func (h *WSHandler) sendJSON(client *hub.Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.hub.Send(client, data)
}
