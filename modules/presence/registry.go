// Package presence tracks which users are currently connected to which
// rooms. A user with several connections (multiple tabs or devices) is
// counted once per connection and shown once per room.
package presence

import (
	"sort"
	"sync"

	domain "github.com/example/roomchat/domain/chat"
)

type entry struct {
	name  string
	count int
}

// Registry is the in-process presence table: room -> user -> refcount.
// All mutations are serialized by a single mutex; join and leave for the
// same (room, user) pair can therefore never interleave.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*entry)}
}

// Join records one more connection of a user in a room and returns the
// resulting full member snapshot. The first connection creates the
// entry; further connections only bump its count.
func (r *Registry) Join(roomID, userID, name string) []domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]*entry)
		r.rooms[roomID] = room
	}

	if e, ok := room[userID]; ok {
		e.count++
	} else {
		room[userID] = &entry{name: name, count: 1}
	}

	return r.snapshotLocked(roomID)
}

// Leave records that one connection of a user left a room and returns
// the resulting snapshot plus whether the room is now empty. The entry
// disappears when its last connection leaves; leaving a room or user
// that is not present is a no-op.
func (r *Registry) Leave(roomID, userID string) ([]domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		return nil, true
	}

	if e, ok := room[userID]; ok {
		e.count--
		if e.count <= 0 {
			delete(room, userID)
		}
	}

	if len(room) == 0 {
		delete(r.rooms, roomID)
		return nil, true
	}
	return r.snapshotLocked(roomID), false
}

// Members returns the current snapshot for a room without mutating it.
func (r *Registry) Members(roomID string) []domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(roomID)
}

// Count returns the reference count for a (room, user) pair.
func (r *Registry) Count(roomID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room := r.rooms[roomID]; room != nil {
		if e, ok := room[userID]; ok {
			return e.count
		}
	}
	return 0
}

// RoomCount returns the number of rooms with at least one present user.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// snapshotLocked builds a deterministic member list. Callers must hold
// the mutex.
func (r *Registry) snapshotLocked(roomID string) []domain.Member {
	room := r.rooms[roomID]
	members := make([]domain.Member, 0, len(room))
	for id, e := range room {
		members = append(members, domain.Member{ID: id, Name: e.name})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}
