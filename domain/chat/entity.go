package chat

import "time"

// User is a registered account. Credential handling (passwords, email
// verification) lives in the auth collaborator; the engine only reads
// ids and display names.
type User struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Name  string `json:"name"`
	Email string `json:"email" gorm:"uniqueIndex"`
}

// Room is a persisted chat room. The engine treats rooms as read-only;
// they are created and mutated by the room CRUD collaborator.
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMember links a user to a private room's roster. Membership is
// meaningful only when the room is private.
type RoomMember struct {
	RoomID string `gorm:"primaryKey"`
	UserID string `gorm:"primaryKey;index"`
}

// Message is an immutable chat message. CreatedAt is truncated to
// millisecond precision so pagination cursors round-trip exactly. The
// total order for pagination is (CreatedAt desc, ID desc); ids are
// UUIDv7 so the tiebreaker follows creation order.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	RoomID    string    `json:"room_id" gorm:"index:idx_messages_room_created,priority:1"`
	SenderID  string    `json:"sender_id" gorm:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_messages_room_created,priority:2"`
}

// Member is one entry of a room presence snapshot: a user currently
// connected to the room through at least one live connection.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
