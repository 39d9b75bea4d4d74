package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"

	"github.com/example/roomchat/events"
	"github.com/example/roomchat/modules/presence"
	"github.com/example/roomchat/modules/storage"
)

// Module wires the chat service into the application: it owns the
// presence registry and publishes chat events on the EventBus.
type Module struct {
	storage  *storage.Module
	registry *presence.Registry
	eventBus mono.EventBus
	service  *Service
}

// Compile-time interface checks
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(storageModule *storage.Module) *Module {
	return &Module{
		storage:  storageModule,
		registry: presence.NewRegistry(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageCreatedV1.ToBase(),
		events.TypingV1.ToBase(),
		events.RoomMembersV1.ToBase(),
	}
}

// Init builds the service once the storage module has a repository.
func (m *Module) Init(_ mono.ServiceContainer) error {
	repo := m.storage.Repository()
	if repo == nil {
		return fmt.Errorf("chat: storage module not initialized")
	}
	m.service = NewService(repo, m.registry, m)
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[chat] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[chat] Module stopped")
	return nil
}

// Service returns the chat service for the gateway.
func (m *Module) Service() *Service {
	return m.service
}

// Registry returns the presence registry.
func (m *Module) Registry() *presence.Registry {
	return m.registry
}

// MessageCreated publishes a MessageCreated event.
func (m *Module) MessageCreated(event events.MessageCreatedEvent) error {
	return events.MessageCreatedV1.Publish(m.eventBus, event, nil)
}

// Typing publishes a Typing event.
func (m *Module) Typing(event events.TypingEvent) error {
	return events.TypingV1.Publish(m.eventBus, event, nil)
}

// RoomMembers publishes a RoomMembers event.
func (m *Module) RoomMembers(event events.RoomMembersEvent) error {
	return events.RoomMembersV1.Publish(m.eventBus, event, nil)
}
