package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/events"
	"github.com/example/roomchat/modules/presence"
	"github.com/example/roomchat/modules/storage"
)

type fakeStore struct {
	rooms      map[string]*domain.Room
	members    map[string]map[string]bool
	appended   []*domain.Message
	appendErr  error
	roomErr    error
	nextSerial int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:   make(map[string]*domain.Room),
		members: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) addRoom(id string, private bool, memberIDs ...string) {
	f.rooms[id] = &domain.Room{ID: id, Name: id, IsPrivate: private}
	f.members[id] = make(map[string]bool)
	for _, m := range memberIDs {
		f.members[id][m] = true
	}
}

func (f *fakeStore) AppendMessage(_ context.Context, roomID, senderID, content string) (*domain.Message, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.nextSerial++
	msg := &domain.Message{
		ID:        fmt.Sprintf("m%d", f.nextSerial),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	f.appended = append(f.appended, msg)
	return msg, nil
}

func (f *fakeStore) GetRoom(_ context.Context, id string) (*domain.Room, error) {
	if f.roomErr != nil {
		return nil, f.roomErr
	}
	room, ok := f.rooms[id]
	if !ok {
		return nil, storage.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeStore) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	return f.members[roomID][userID], nil
}

type fakePublisher struct {
	messages []events.MessageCreatedEvent
	typing   []events.TypingEvent
	members  []events.RoomMembersEvent
}

func (f *fakePublisher) MessageCreated(e events.MessageCreatedEvent) error {
	f.messages = append(f.messages, e)
	return nil
}

func (f *fakePublisher) Typing(e events.TypingEvent) error {
	f.typing = append(f.typing, e)
	return nil
}

func (f *fakePublisher) RoomMembers(e events.RoomMembersEvent) error {
	f.members = append(f.members, e)
	return nil
}

func newTestService() (*Service, *fakeStore, *presence.Registry, *fakePublisher) {
	store := newFakeStore()
	registry := presence.NewRegistry()
	pub := &fakePublisher{}
	return NewService(store, registry, pub), store, registry, pub
}

func TestService_SendMessage_ValidationOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(*fakeStore)
		userID  string
		roomID  string
		content string
		wantErr error
	}{
		{
			name:    "unauthenticated before anything else",
			setup:   func(s *fakeStore) {},
			userID:  "",
			roomID:  "missing",
			content: "",
			wantErr: ErrUnauthenticated,
		},
		{
			name:    "empty room id is invalid",
			setup:   func(s *fakeStore) {},
			userID:  "alice",
			roomID:  "",
			content: "hi",
			wantErr: ErrInvalidRoom,
		},
		{
			name:    "room existence before content",
			setup:   func(s *fakeStore) {},
			userID:  "alice",
			roomID:  "missing",
			content: "",
			wantErr: ErrRoomNotFound,
		},
		{
			name: "membership before content",
			setup: func(s *fakeStore) {
				s.addRoom("r1", true, "alice")
			},
			userID:  "bob",
			roomID:  "r1",
			content: "",
			wantErr: ErrAccessDenied,
		},
		{
			name: "content checked last",
			setup: func(s *fakeStore) {
				s.addRoom("r1", true, "alice")
			},
			userID:  "alice",
			roomID:  "r1",
			content: "   ",
			wantErr: ErrInvalidContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, pub := newTestService()
			tt.setup(store)

			_, err := svc.SendMessage(ctx, tt.roomID, tt.userID, tt.content, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendMessage() error = %v, want %v", err, tt.wantErr)
			}
			if len(pub.messages) != 0 {
				t.Error("failed send must not publish a broadcast")
			}
			if len(store.appended) != 0 {
				t.Error("failed send must not persist a message")
			}
		})
	}
}

func TestService_SendMessage_ContentBounds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		length int
		wantOK bool
	}{
		{name: "empty rejected", length: 0, wantOK: false},
		{name: "single char accepted", length: 1, wantOK: true},
		{name: "max length accepted", length: 2000, wantOK: true},
		{name: "over max rejected", length: 2001, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestService()
			store.addRoom("r1", false)

			content := strings.Repeat("x", tt.length)
			_, err := svc.SendMessage(ctx, "r1", "alice", content, "")

			if tt.wantOK && err != nil {
				t.Errorf("SendMessage() error = %v, want nil", err)
			}
			if !tt.wantOK && !errors.Is(err, ErrInvalidContent) {
				t.Errorf("SendMessage() error = %v, want ErrInvalidContent", err)
			}
		})
	}
}

func TestService_SendMessage_BroadcastCarriesTempID(t *testing.T) {
	ctx := context.Background()
	svc, store, _, pub := newTestService()
	store.addRoom("r1", false)

	msg, err := svc.SendMessage(ctx, "r1", "alice", "  hello  ", "t1")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if msg.Content != "hello" {
		t.Errorf("content not trimmed: %q", msg.Content)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d MessageCreated events, want exactly 1", len(pub.messages))
	}
	got := pub.messages[0]
	if got.ClientTempID != "t1" {
		t.Errorf("ClientTempID = %q, want t1 unchanged", got.ClientTempID)
	}
	if got.ID != msg.ID || got.RoomID != "r1" || got.SenderID != "alice" {
		t.Errorf("broadcast payload %+v does not match persisted message %+v", got, msg)
	}
}

func TestService_SendMessage_PersistFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _, pub := newTestService()
	store.addRoom("r1", false)
	store.appendErr = errors.New("disk on fire")

	_, err := svc.SendMessage(ctx, "r1", "alice", "hello", "t1")
	if !errors.Is(err, ErrInternal) {
		t.Errorf("SendMessage() error = %v, want ErrInternal", err)
	}
	if len(pub.messages) != 0 {
		t.Error("failed persist must not broadcast")
	}
	if CodeFor(err) != CodeInternal {
		t.Errorf("CodeFor() = %q, want %q", CodeFor(err), CodeInternal)
	}
}

func TestService_JoinRoom_PrivateRoomDenied(t *testing.T) {
	ctx := context.Background()
	svc, store, registry, pub := newTestService()
	store.addRoom("r1", true, "alice")

	// Member joins fine and a snapshot goes out.
	members, err := svc.JoinRoom(ctx, "r1", "alice", "Alice")
	if err != nil {
		t.Fatalf("JoinRoom() member error = %v", err)
	}
	if len(members) != 1 || members[0].ID != "alice" {
		t.Errorf("JoinRoom() snapshot = %v, want [alice]", members)
	}
	if len(pub.members) != 1 {
		t.Fatalf("published %d RoomMembers events, want 1", len(pub.members))
	}

	// Non-member is denied and leaves no presence behind.
	_, err = svc.JoinRoom(ctx, "r1", "bob", "Bob")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("JoinRoom() non-member error = %v, want ErrAccessDenied", err)
	}
	if registry.Count("r1", "bob") != 0 {
		t.Error("denied join must not create a presence entry")
	}
	if len(pub.members) != 1 {
		t.Error("denied join must not publish a snapshot")
	}
}

func TestService_LeaveRoom_PublishesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, store, registry, pub := newTestService()
	store.addRoom("r1", false)

	if _, err := svc.JoinRoom(ctx, "r1", "alice", "Alice"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}

	svc.LeaveRoom("r1", "alice")

	if registry.Count("r1", "alice") != 0 {
		t.Error("LeaveRoom() left a presence entry behind")
	}
	if len(pub.members) != 2 {
		t.Fatalf("published %d RoomMembers events, want 2", len(pub.members))
	}
	last := pub.members[len(pub.members)-1]
	if len(last.Members) != 0 {
		t.Errorf("final snapshot = %v, want empty", last.Members)
	}
	if last.Members == nil {
		t.Error("final snapshot should marshal as [] not null")
	}
}

func TestService_Typing_ExcludesSender(t *testing.T) {
	svc, _, _, pub := newTestService()

	if err := svc.Typing("r1", "alice", "Alice", "conn-1"); err != nil {
		t.Fatalf("Typing() error = %v", err)
	}

	if len(pub.typing) != 1 {
		t.Fatalf("published %d Typing events, want 1", len(pub.typing))
	}
	got := pub.typing[0]
	if got.ExcludeConnID != "conn-1" {
		t.Errorf("ExcludeConnID = %q, want conn-1", got.ExcludeConnID)
	}
	if got.User != "Alice" || got.SenderID != "alice" {
		t.Errorf("typing payload %+v incomplete", got)
	}

	if err := svc.Typing("", "alice", "Alice", "conn-1"); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("Typing() with empty room error = %v, want ErrInvalidRoom", err)
	}
}
