package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/roomchat/modules/broadcast"
	"github.com/example/roomchat/modules/chat"
	"github.com/example/roomchat/modules/history"
	"github.com/example/roomchat/modules/identity"
	"github.com/example/roomchat/modules/storage"
)

// identityKey is the Locals key the upgrade middleware stores the
// authenticated identity under.
const identityKey = "identity"

// sessionCookie is the cookie the auth collaborator sets on login.
const sessionCookie = "session"

// Send rate limit per connection.
const (
	sendRatePerSecond = 10
	sendBurst         = 20
)

// Client-to-server event names.
const (
	clientJoinRoom    = "join_room"
	clientLeaveRoom   = "leave_room"
	clientTyping      = "typing"
	clientSendMessage = "send_message"
)

// EventMessageAck is the single-recipient response to send_message.
const EventMessageAck = "message_ack"

// Handlers holds the collaborators every request needs.
type Handlers struct {
	svc      *chat.Service
	hub      *broadcast.Hub
	resolver *identity.Resolver
	history  *history.Service
	repo     *storage.Repository
	logger   *slog.Logger
}

// NewHandlers creates the gateway handler set.
func NewHandlers(svc *chat.Service, hub *broadcast.Hub, resolver *identity.Resolver, historySvc *history.Service, repo *storage.Repository) *Handlers {
	return &Handlers{
		svc:      svc,
		hub:      hub,
		resolver: resolver,
		history:  historySvc,
		repo:     repo,
		logger:   slog.Default(),
	}
}

// authenticate extracts the session credential from the cookie or the
// Authorization header and resolves it to an identity.
func (h *Handlers) authenticate(c *fiber.Ctx) (*identity.Identity, error) {
	token := c.Cookies(sessionCookie)
	if token == "" {
		auth := c.Get(fiber.HeaderAuthorization)
		token = strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			token = ""
		}
	}
	return h.resolver.Resolve(c.Context(), token)
}

// clientEnvelope is the wire format for client-to-server events.
type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type typingRequest struct {
	RoomID string `json:"roomId"`
}

type sendMessageRequest struct {
	RoomID       string `json:"roomId"`
	Content      string `json:"content"`
	ClientTempID string `json:"clientTempId"`
	Seq          int64  `json:"seq"`
}

// messageAck correlates an ack with the client's request when a seq was
// provided.
type messageAck struct {
	chat.Ack
	Seq int64 `json:"seq,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// HandleWebSocket owns one connection from upgrade to disconnect: the
// read loop, the write pump, the joined-room set and the exactly-once
// cleanup. The identity was bound by the upgrade middleware and never
// changes for the life of the connection.
func (h *Handlers) HandleWebSocket(conn *websocket.Conn) {
	id, ok := conn.Locals(identityKey).(*identity.Identity)
	if !ok {
		conn.Close()
		return
	}

	connID := uuid.New().String()
	client := broadcast.NewClient(connID, id.UserID)
	h.hub.Register(client)

	// The write pump is the connection's only writer. Acks and error
	// events are funneled through the same outbound queue as room
	// broadcasts, so no two goroutines ever write concurrently.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for raw := range client.Outbound() {
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}()

	joined := make(map[string]bool)
	limiter := rate.NewLimiter(sendRatePerSecond, sendBurst)

	h.logger.Info("Connection opened", "connID", connID, "userID", id.UserID)

	defer func() {
		for roomID := range joined {
			h.svc.LeaveRoom(roomID, id.UserID)
		}
		h.hub.Unregister(connID)
		wg.Wait()
		conn.Close()
		h.logger.Info("Connection closed", "connID", connID, "userID", id.UserID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env clientEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(client, "malformed event")
			continue
		}

		switch env.Event {
		case clientJoinRoom:
			h.handleJoin(client, id, env.Data, joined)
		case clientLeaveRoom:
			h.handleLeave(client, id, env.Data, joined)
		case clientTyping:
			h.handleTyping(client, id, env.Data, joined)
		case clientSendMessage:
			h.handleSend(client, id, env.Data, limiter)
		default:
			h.sendError(client, "unknown event")
		}
	}
}

func (h *Handlers) handleJoin(client *broadcast.Client, id *identity.Identity, data json.RawMessage, joined map[string]bool) {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "malformed event")
		return
	}

	members, err := h.svc.JoinRoom(context.Background(), req.RoomID, id.UserID, id.Name)
	if err != nil {
		h.sendError(client, chat.CodeFor(err))
		return
	}

	// Subscribe after the join succeeds, then hand the joiner the
	// snapshot directly: the bus broadcast may have raced ahead of the
	// subscription, and a duplicate snapshot is harmless.
	h.hub.Subscribe(client.ID, req.RoomID)
	joined[req.RoomID] = true
	h.send(client, broadcast.EventRoomMembers, broadcast.RoomMembersPayload{
		RoomID:  req.RoomID,
		Members: members,
	})
}

func (h *Handlers) handleLeave(client *broadcast.Client, id *identity.Identity, data json.RawMessage, joined map[string]bool) {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil || !joined[req.RoomID] {
		return
	}

	delete(joined, req.RoomID)
	h.hub.Unsubscribe(client.ID, req.RoomID)
	h.svc.LeaveRoom(req.RoomID, id.UserID)
}

func (h *Handlers) handleTyping(client *broadcast.Client, id *identity.Identity, data json.RawMessage, joined map[string]bool) {
	var req typingRequest
	if err := json.Unmarshal(data, &req); err != nil || !joined[req.RoomID] {
		return
	}
	if err := h.svc.Typing(req.RoomID, id.UserID, id.Name, client.ID); err != nil {
		h.logger.Warn("Typing relay failed", "roomID", req.RoomID, "error", err)
	}
}

// handleSend does not require a prior join: access is validated on every
// send, same as the HTTP fallback path.
func (h *Handlers) handleSend(client *broadcast.Client, id *identity.Identity, data json.RawMessage, limiter *rate.Limiter) {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "malformed event")
		return
	}

	if !limiter.Allow() {
		h.send(client, EventMessageAck, messageAck{
			Ack: chat.Ack{OK: false, Error: "rate_limited"},
			Seq: req.Seq,
		})
		return
	}

	msg, err := h.svc.SendMessage(context.Background(), req.RoomID, id.UserID, req.Content, req.ClientTempID)
	var ack chat.Ack
	if err != nil {
		ack = chat.AckFor("", err)
	} else {
		ack = chat.AckFor(msg.ID, nil)
	}
	h.send(client, EventMessageAck, messageAck{Ack: ack, Seq: req.Seq})
}

// send delivers a single-recipient event through the client's outbound
// queue.
func (h *Handlers) send(client *broadcast.Client, event string, data any) {
	raw, err := json.Marshal(broadcast.Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal event", "event", event, "error", err)
		return
	}
	if !client.Send(raw) {
		h.logger.Warn("Dropping event for slow client", "clientID", client.ID, "event", event)
	}
}

func (h *Handlers) sendError(client *broadcast.Client, message string) {
	h.send(client, broadcast.EventError, errorPayload{Message: message})
}
