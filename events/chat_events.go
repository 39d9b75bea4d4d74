package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/roomchat/domain/chat"
)

// MessageCreatedEvent is emitted after a message has been durably
// persisted. ClientTempID is relayed unchanged so the sending client can
// reconcile its optimistic placeholder.
type MessageCreatedEvent struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	SenderID     string    `json:"sender_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	ClientTempID string    `json:"client_temp_id,omitempty"`
}

// TypingEvent is an ephemeral typing signal. ExcludeConnID names the
// originating connection, which must not receive its own signal.
type TypingEvent struct {
	RoomID        string `json:"room_id"`
	User          string `json:"user"`
	SenderID      string `json:"sender_id"`
	ExcludeConnID string `json:"exclude_conn_id"`
}

// RoomMembersEvent carries a full presence snapshot for a room. A fresh
// snapshot is published after every presence mutation, so clients never
// have to apply incremental diffs.
type RoomMembersEvent struct {
	RoomID  string          `json:"room_id"`
	Members []domain.Member `json:"members"`
}

// Event definitions for the room-coordination engine.
var (
	MessageCreatedV1 = helper.EventDefinition[MessageCreatedEvent](
		"chat",
		"MessageCreated",
		"v1",
	)

	TypingV1 = helper.EventDefinition[TypingEvent](
		"chat",
		"Typing",
		"v1",
	)

	RoomMembersV1 = helper.EventDefinition[RoomMembersEvent](
		"chat",
		"RoomMembers",
		"v1",
	)
)
