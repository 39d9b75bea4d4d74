package storage

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/roomchat/domain/chat"
)

// setupTestRepo creates an in-memory SQLite database for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewRepository(db)
}

func TestRepository_AppendMessage(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	room, err := repo.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	msg, err := repo.AppendMessage(ctx, room.ID, "user1", "hello")
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if msg.ID == "" {
		t.Error("AppendMessage() message ID should not be empty")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("AppendMessage() CreatedAt should not be zero")
	}
	if !msg.CreatedAt.Equal(msg.CreatedAt.Truncate(time.Millisecond)) {
		t.Errorf("AppendMessage() CreatedAt %v not truncated to milliseconds", msg.CreatedAt)
	}

	// Ids must follow creation order so they can break timestamp ties.
	msg2, err := repo.AppendMessage(ctx, room.ID, "user1", "second")
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if msg2.ID <= msg.ID {
		t.Errorf("AppendMessage() ids not ascending: %q then %q", msg.ID, msg2.ID)
	}
}

func TestRepository_ListMessagesBefore(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	room, _ := repo.CreateRoom(ctx, "general", false)

	var all []*domain.Message
	for i := 0; i < 5; i++ {
		msg, err := repo.AppendMessage(ctx, room.ID, "user1", "msg")
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		all = append(all, msg)
	}

	t.Run("no cursor returns newest first", func(t *testing.T) {
		msgs, err := repo.ListMessagesBefore(ctx, room.ID, nil, 3)
		if err != nil {
			t.Fatalf("ListMessagesBefore() error = %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("ListMessagesBefore() returned %d messages, want 3", len(msgs))
		}
		if msgs[0].ID != all[4].ID {
			t.Errorf("first message = %q, want newest %q", msgs[0].ID, all[4].ID)
		}
	})

	t.Run("cursor excludes boundary message", func(t *testing.T) {
		cur := &MessageCursor{CreatedAt: all[2].CreatedAt, ID: all[2].ID}
		msgs, err := repo.ListMessagesBefore(ctx, room.ID, cur, 10)
		if err != nil {
			t.Fatalf("ListMessagesBefore() error = %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("ListMessagesBefore() returned %d messages, want 2", len(msgs))
		}
		for _, m := range msgs {
			if m.ID >= all[2].ID {
				t.Errorf("message %q should be strictly older than cursor %q", m.ID, all[2].ID)
			}
		}
	})

	t.Run("other room messages excluded", func(t *testing.T) {
		other, _ := repo.CreateRoom(ctx, "other", false)
		if _, err := repo.AppendMessage(ctx, other.ID, "user2", "elsewhere"); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		msgs, err := repo.ListMessagesBefore(ctx, room.ID, nil, 50)
		if err != nil {
			t.Fatalf("ListMessagesBefore() error = %v", err)
		}
		if len(msgs) != 5 {
			t.Errorf("ListMessagesBefore() returned %d messages, want 5", len(msgs))
		}
	})
}

func TestRepository_ListMessagesBefore_TimestampCollisions(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	room, _ := repo.CreateRoom(ctx, "general", false)

	// Force every message onto the same timestamp so only the id
	// tiebreaker orders them.
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	for _, id := range ids {
		msg := &domain.Message{
			ID:        id,
			RoomID:    room.ID,
			SenderID:  "user1",
			Content:   "same instant",
			CreatedAt: ts,
		}
		if err := repo.db.WithContext(ctx).Create(msg).Error; err != nil {
			t.Fatalf("failed to insert colliding message: %v", err)
		}
	}

	// Walk the pages and verify exhaustive, duplicate-free enumeration.
	var seen []string
	var cursor *MessageCursor
	for {
		msgs, err := repo.ListMessagesBefore(ctx, room.ID, cursor, 2)
		if err != nil {
			t.Fatalf("ListMessagesBefore() error = %v", err)
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			seen = append(seen, m.ID)
		}
		last := msgs[len(msgs)-1]
		cursor = &MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	want := []string{"a6", "a5", "a4", "a3", "a2", "a1"}
	if len(seen) != len(want) {
		t.Fatalf("paged walk saw %d messages, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestRepository_RoomAccess(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	private, _ := repo.CreateRoom(ctx, "secret", true)
	if err := repo.AddMember(ctx, private.ID, "alice"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	t.Run("unknown room", func(t *testing.T) {
		if _, err := repo.GetRoom(ctx, "nope"); err != ErrRoomNotFound {
			t.Errorf("GetRoom() error = %v, want ErrRoomNotFound", err)
		}
	})

	t.Run("membership", func(t *testing.T) {
		ok, err := repo.IsMember(ctx, private.ID, "alice")
		if err != nil {
			t.Fatalf("IsMember() error = %v", err)
		}
		if !ok {
			t.Error("IsMember() = false for roster member")
		}

		ok, err = repo.IsMember(ctx, private.ID, "bob")
		if err != nil {
			t.Fatalf("IsMember() error = %v", err)
		}
		if ok {
			t.Error("IsMember() = true for non-member")
		}
	})

	t.Run("add member twice is a no-op", func(t *testing.T) {
		if err := repo.AddMember(ctx, private.ID, "alice"); err != nil {
			t.Errorf("AddMember() second call error = %v", err)
		}
	})
}

func TestRepository_GetUserNames(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	alice, _ := repo.CreateUser(ctx, "Alice", "alice@example.com")
	bob, _ := repo.CreateUser(ctx, "Bob", "bob@example.com")

	names, err := repo.GetUserNames(ctx, []string{alice.ID, bob.ID, "ghost"})
	if err != nil {
		t.Fatalf("GetUserNames() error = %v", err)
	}

	if len(names) != 2 {
		t.Errorf("GetUserNames() returned %d names, want 2", len(names))
	}
	if names[alice.ID] != "Alice" {
		t.Errorf("name for %q = %q, want Alice", alice.ID, names[alice.ID])
	}
	if _, ok := names["ghost"]; ok {
		t.Error("GetUserNames() should not include unknown ids")
	}

	empty, err := repo.GetUserNames(ctx, nil)
	if err != nil {
		t.Fatalf("GetUserNames(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("GetUserNames(nil) returned %d names, want 0", len(empty))
	}
}
