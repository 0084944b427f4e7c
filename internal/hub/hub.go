package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"fahrplan/internal/domain"
	"fahrplan/internal/schedule"
)

type Client struct {
	ID     string
	Send   chan []byte
	filter domain.Filter
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		filter: domain.FilterAll,
	}
}

func (c *Client) Filter() domain.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

func (c *Client) SetFilter(f domain.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// Hub fans every new schedule out to the connected websocket clients,
// each filtered to the transport type the client subscribed to.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	unregister chan *Client
	broadcast  chan *domain.Schedule
	done       chan struct{}

	onCount func(int)
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan *domain.Schedule, 8),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
}

// OnClientCount registers a callback invoked with the client count after
// every registration change. It must be set before the first Register.
func (h *Hub) OnClientCount(fn func(int)) {
	h.onCount = fn
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return

		case client := <-h.unregister:
			h.removeClient(client)

		case sched := <-h.broadcast:
			h.fanout(sched)
		}
	}
}

// Subscribe changes the filter applied to the client's snapshots
func (h *Hub) Subscribe(client *Client, f domain.Filter) {
	client.SetFilter(f)
}

// Broadcast queues a schedule for fan-out; it drops the schedule if the hub is backed up
func (h *Hub) Broadcast(sched *domain.Schedule) {
	if sched == nil {
		return
	}
	select {
	case h.broadcast <- sched:
	default:
		h.logger.Warn("broadcast channel full, dropping schedule", "entries", len(sched.Entries))
	}
}

// PublishSchedule lets the hub act as an ingestor sink
func (h *Hub) PublishSchedule(_ context.Context, sched *domain.Schedule) error {
	h.Broadcast(sched)
	return nil
}

// Register adds the client immediately so Send can reach it right away
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", "client_id", client.ID, "total", total)
	h.notifyCount(total)
}

// Send queues data for a single registered client. It reports false if the
// client is gone or its buffer is full.
func (h *Hub) Send(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type SnapshotMessage struct {
	Type    string          `json:"type"`
	Payload SnapshotPayload `json:"payload"`
}

type SnapshotPayload struct {
	Filter      domain.Filter          `json:"filter"`
	Entries     []domain.ScheduleEntry `json:"entries"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// BuildSnapshot encodes the entries of sched that pass f
func BuildSnapshot(sched *domain.Schedule, f domain.Filter) ([]byte, error) {
	return json.Marshal(SnapshotMessage{
		Type: "snapshot",
		Payload: SnapshotPayload{
			Filter:      f,
			Entries:     schedule.Filter(sched.Entries, f),
			GeneratedAt: sched.GeneratedAt,
		},
	})
}

func (h *Hub) fanout(sched *domain.Schedule) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// one encoding per filter, not per client
	encoded := make(map[domain.Filter][]byte, 3)

	for client := range h.clients {
		f := client.Filter()
		data, ok := encoded[f]
		if !ok {
			var err error
			data, err = BuildSnapshot(sched, f)
			if err != nil {
				h.logger.Error("failed to encode snapshot", "filter", f, "error", err)
				continue
			}
			encoded[f] = data
		}

		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client unregistered", "client_id", client.ID, "total", total)
	h.notifyCount(total)
}

func (h *Hub) notifyCount(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
}
