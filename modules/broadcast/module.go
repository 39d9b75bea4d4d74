package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/events"
)

// Wire event names for server-to-client delivery.
const (
	EventMessageCreated = "message_created"
	EventTyping         = "typing"
	EventRoomMembers    = "room_members"
	EventError          = "error"
)

// TypingPayload is the wire shape of a typing signal.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	User     string `json:"user"`
	SenderID string `json:"senderId"`
}

// RoomMembersPayload is the wire shape of a presence snapshot.
type RoomMembersPayload struct {
	RoomID  string          `json:"roomId"`
	Members []domain.Member `json:"members"`
}

// Module consumes chat events from the EventBus and fans them out to
// the subscribed connections through the hub.
type Module struct {
	hub *Hub
}

// Compile-time interface checks
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventConsumerModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule() *Module {
	return &Module{hub: NewHub()}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[broadcast] Module started")
	return nil
}

// Stop disconnects every client.
func (m *Module) Stop(_ context.Context) error {
	count := m.hub.ClientCount()
	m.hub.CloseAll()
	log.Printf("[broadcast] Module stopped - %d clients were connected", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageCreatedV1, m.handleMessageCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.TypingV1, m.handleTyping, m,
	); err != nil {
		return fmt.Errorf("failed to register Typing consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomMembersV1, m.handleRoomMembers, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomMembers consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: MessageCreated, Typing, RoomMembers")
	return nil
}

func (m *Module) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	m.hub.Publish(event.RoomID, EventMessageCreated, domain.MessageView{
		ID:           event.ID,
		RoomID:       event.RoomID,
		SenderID:     event.SenderID,
		Content:      event.Content,
		CreatedAt:    event.CreatedAt,
		ClientTempID: event.ClientTempID,
	})
	return nil
}

func (m *Module) handleTyping(_ context.Context, event events.TypingEvent, _ *mono.Msg) error {
	m.hub.PublishExcept(event.RoomID, EventTyping, TypingPayload{
		RoomID:   event.RoomID,
		User:     event.User,
		SenderID: event.SenderID,
	}, event.ExcludeConnID)
	return nil
}

func (m *Module) handleRoomMembers(_ context.Context, event events.RoomMembersEvent, _ *mono.Msg) error {
	m.hub.Publish(event.RoomID, EventRoomMembers, RoomMembersPayload{
		RoomID:  event.RoomID,
		Members: event.Members,
	})
	return nil
}

// GetHub returns the hub for the gateway module to use.
func (m *Module) GetHub() *Hub {
	return m.hub
}
