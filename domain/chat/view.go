package chat

import "time"

// MessageView is the client-facing shape of a message, shared by the
// realtime broadcast and the history endpoint.
type MessageView struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"roomId"`
	SenderID     string    `json:"senderId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	ClientTempID string    `json:"clientTempId,omitempty"`
}

// NewMessageView converts a persisted message for the wire. tempID is
// the client-supplied idempotency token, relayed unchanged so the sender
// can reconcile its optimistic placeholder; it is empty for everything
// except realtime broadcasts of a fresh send.
func NewMessageView(m Message, tempID string) MessageView {
	return MessageView{
		ID:           m.ID,
		RoomID:       m.RoomID,
		SenderID:     m.SenderID,
		Content:      m.Content,
		CreatedAt:    m.CreatedAt,
		ClientTempID: tempID,
	}
}
