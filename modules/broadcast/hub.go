package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// outBufferSize is the per-client outbound queue. A client that cannot
// drain its queue has events dropped rather than blocking the hub.
const outBufferSize = 256

// Envelope is the wire format for every server-to-client event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one registered connection. The hub only ever writes to the
// outbound channel; the owning connection drains it from its write pump.
type Client struct {
	ID     string
	UserID string

	out  chan []byte
	once sync.Once
}

// NewClient creates a client for a connection.
func NewClient(id, userID string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		out:    make(chan []byte, outBufferSize),
	}
}

// Outbound returns the channel the connection's write pump drains. The
// channel is closed when the client is unregistered.
func (c *Client) Outbound() <-chan []byte {
	return c.out
}

// Send enqueues a direct, single-recipient payload (acks, error events)
// on the same outbound queue the hub uses, so the connection has exactly
// one writer. It reports false when the queue is full or closed.
func (c *Client) Send(raw []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.out <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.out) })
}

// Hub routes events to the connections subscribed to each room. It
// enforces no access rules; callers validate before subscribing.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // clientID -> client
	rooms   map[string]map[string]*Client // roomID -> clientID -> client
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  slog.Default(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes a client from the hub and from every room it was
// subscribed to, then closes its outbound channel. Safe to call more
// than once.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	for roomID, members := range h.rooms {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	client.close()
}

// Subscribe adds a client to a room. Subscribing an already-subscribed
// client is a no-op.
func (h *Hub) Subscribe(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][clientID] = client
}

// Unsubscribe removes a client from a room.
func (h *Hub) Unsubscribe(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// IsSubscribed reports whether a client is subscribed to a room.
func (h *Hub) IsSubscribed(clientID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][clientID]
	return ok
}

// Publish delivers an event to every client subscribed to a room.
func (h *Hub) Publish(roomID, event string, data any) {
	h.publish(roomID, event, data, "")
}

// PublishExcept delivers an event to every subscribed client except one,
// used for typing signals that must not echo back to the sender.
func (h *Hub) PublishExcept(roomID, event string, data any, exceptClientID string) {
	h.publish(roomID, event, data, exceptClientID)
}

func (h *Hub) publish(roomID, event string, data any, exceptClientID string) {
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.rooms[roomID] {
		if id == exceptClientID {
			continue
		}
		select {
		case client.out <- raw:
		default:
			h.logger.Warn("Dropping event for slow client", "clientID", id, "event", event)
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll unregisters every client. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
}
