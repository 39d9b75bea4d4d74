package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/example/roomchat/domain/chat"
)

var (
	// ErrRoomNotFound is returned when a room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// MessageCursor is the exclusive lower bound for a history page: the
// next page contains only messages strictly older than (CreatedAt, ID)
// in the (created_at desc, id desc) total order.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

// Repository provides access to rooms, users and messages.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the schema for all chat entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.RoomMember{},
		&domain.Message{},
	)
}

// AppendMessage persists a new message, assigning a UUIDv7 id and the
// server timestamp. The timestamp is truncated to millisecond precision
// so it survives a cursor round trip.
func (r *Repository) AppendMessage(ctx context.Context, roomID, senderID, content string) (*domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := &domain.Message{
		ID:        id.String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// ListMessagesBefore returns up to limit messages of a room strictly
// older than the cursor, newest first. A nil cursor starts from the
// newest message. Ties on created_at are broken by id descending.
func (r *Repository) ListMessagesBefore(ctx context.Context, roomID string, before *MessageCursor, limit int) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if before != nil {
		q = q.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			before.CreatedAt, before.CreatedAt, before.ID,
		)
	}

	var msgs []domain.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// GetRoom retrieves a room by id.
func (r *Repository) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// IsMember reports whether a user is on a room's roster.
func (r *Repository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// GetUserNames resolves display names for a set of user ids. Unknown ids
// are simply absent from the result.
func (r *Repository) GetUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var users []domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve user names: %w", err)
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// CreateUser persists a new user. Used by the auth collaborator and by
// seeding.
func (r *Repository) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	user := &domain.User{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// CreateRoom persists a new room.
func (r *Repository) CreateRoom(ctx context.Context, name string, isPrivate bool) (*domain.Room, error) {
	room := &domain.Room{
		ID:        uuid.New().String(),
		Name:      name,
		IsPrivate: isPrivate,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// ListRooms returns all rooms, newest first.
func (r *Repository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// AddMember adds a user to a private room's roster. Adding an existing
// member is a no-op.
func (r *Repository) AddMember(ctx context.Context, roomID, userID string) error {
	err := r.db.WithContext(ctx).
		Where(&domain.RoomMember{RoomID: roomID, UserID: userID}).
		FirstOrCreate(&domain.RoomMember{RoomID: roomID, UserID: userID}).Error
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}
