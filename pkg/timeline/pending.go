// Package timeline implements the client side of the optimistic-send
// contract: a pending set keyed by temporary id, merged with confirmed
// history into one display-ordered sequence. Everything here is pure
// state manipulation, decoupled from any network layer.
package timeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	domain "github.com/example/roomchat/domain/chat"
)

// Item is one renderable message: either a confirmed message or an
// optimistic placeholder still waiting for its ack.
type Item struct {
	domain.MessageView
	Pending bool
}

// PendingSet tracks optimistic messages by temporary id. At most one
// entry exists per temp id, and each is resolved at most once.
type PendingSet struct {
	items []Item
	index map[string]int // tempID -> position in items
}

// NewPendingSet creates an empty pending set.
func NewPendingSet() *PendingSet {
	return &PendingSet{index: make(map[string]int)}
}

// Add registers an optimistic message under a fresh temp id, stamped
// with the local clock. Adding a temp id that already exists is a no-op:
// one placeholder per send.
func (s *PendingSet) Add(tempID, roomID, senderID, content string, localNow time.Time) {
	if _, exists := s.index[tempID]; exists {
		return
	}
	s.index[tempID] = len(s.items)
	s.items = append(s.items, Item{
		MessageView: domain.MessageView{
			ID:           tempID,
			RoomID:       roomID,
			SenderID:     senderID,
			Content:      content,
			CreatedAt:    localNow,
			ClientTempID: tempID,
		},
		Pending: true,
	})
}

// Resolve replaces the placeholder matching the broadcast's temp id
// with the confirmed message. It reports whether a replacement happened;
// a second resolve for the same temp id, or one for an unknown temp id,
// does nothing.
func (s *PendingSet) Resolve(confirmed domain.MessageView) bool {
	if confirmed.ClientTempID == "" {
		return false
	}
	i, ok := s.index[confirmed.ClientTempID]
	if !ok {
		return false
	}
	delete(s.index, confirmed.ClientTempID)

	confirmed.ClientTempID = ""
	s.items[i] = Item{MessageView: confirmed, Pending: false}
	return true
}

// Fail removes the placeholder for a send that was rejected, so nothing
// stays stuck in pending state. Unknown or already-resolved temp ids
// are ignored.
func (s *PendingSet) Fail(tempID string) {
	i, ok := s.index[tempID]
	if !ok {
		return
	}
	delete(s.index, tempID)
	s.items = append(s.items[:i], s.items[i+1:]...)
	for id, pos := range s.index {
		if pos > i {
			s.index[id] = pos - 1
		}
	}
}

// Items returns the current pending-set contents, confirmed entries
// included, in insertion order.
func (s *PendingSet) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// PendingCount returns the number of unresolved placeholders.
func (s *PendingSet) PendingCount() int {
	return len(s.index)
}

// NewTempID generates a temp id unique within a sender session.
func NewTempID() string {
	return fmt.Sprintf("tmp_%s_%s",
		strconv.FormatInt(time.Now().UnixMilli(), 36),
		uuid.New().String()[:8],
	)
}
