package chat

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/events"
	"github.com/example/roomchat/modules/storage"
)

// Store is the slice of the repository the service needs: message
// persistence and room access data.
type Store interface {
	AppendMessage(ctx context.Context, roomID, senderID, content string) (*domain.Message, error)
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// Presence is the refcounted live-membership registry.
type Presence interface {
	Join(roomID, userID, name string) []domain.Member
	Leave(roomID, userID string) ([]domain.Member, bool)
}

// Publisher fans events out to the broadcast layer.
type Publisher interface {
	MessageCreated(event events.MessageCreatedEvent) error
	Typing(event events.TypingEvent) error
	RoomMembers(event events.RoomMembersEvent) error
}

// Service coordinates room joins, message ingest and typing relay. It
// holds no connection state; the gateway owns connections and calls in.
type Service struct {
	store    Store
	presence Presence
	pub      Publisher
	logger   *slog.Logger
}

// NewService creates a new chat service.
func NewService(store Store, presence Presence, pub Publisher) *Service {
	return &Service{
		store:    store,
		presence: presence,
		pub:      pub,
		logger:   slog.Default(),
	}
}

// checkAccess validates that a room exists and that the user may enter
// it. Private rooms require roster membership.
func (s *Service) checkAccess(ctx context.Context, roomID, userID string) error {
	if roomID == "" {
		return ErrInvalidRoom
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		s.logger.Error("Room lookup failed", "roomID", roomID, "error", err)
		return ErrInternal
	}

	if room.IsPrivate {
		ok, err := s.store.IsMember(ctx, roomID, userID)
		if err != nil {
			s.logger.Error("Membership check failed", "roomID", roomID, "userID", userID, "error", err)
			return ErrInternal
		}
		if !ok {
			return ErrAccessDenied
		}
	}
	return nil
}

// JoinRoom validates access, records presence and publishes the fresh
// member snapshot. It returns the snapshot for the caller.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID, name string) ([]domain.Member, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.checkAccess(ctx, roomID, userID); err != nil {
		return nil, err
	}

	members := s.presence.Join(roomID, userID, name)
	s.publishMembers(roomID, members)

	s.logger.Info("User joined room", "userID", userID, "roomID", roomID)
	return members, nil
}

// LeaveRoom releases one presence slot and publishes the snapshot that
// results, including the empty one when the last user leaves.
func (s *Service) LeaveRoom(roomID, userID string) {
	members, _ := s.presence.Leave(roomID, userID)
	s.publishMembers(roomID, members)
}

// SendMessage validates, persists and broadcasts a message. Validation
// order is fixed: authentication, room existence, membership, content.
// The returned message feeds the single ack to the sending connection.
func (s *Service) SendMessage(ctx context.Context, roomID, userID, content, clientTempID string) (*domain.Message, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.checkAccess(ctx, roomID, userID); err != nil {
		return nil, err
	}

	normalized, err := NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, roomID, userID, normalized)
	if err != nil {
		s.logger.Error("Message persist failed", "roomID", roomID, "error", err)
		return nil, ErrInternal
	}

	if err := s.pub.MessageCreated(events.MessageCreatedEvent{
		ID:           msg.ID,
		RoomID:       msg.RoomID,
		SenderID:     msg.SenderID,
		Content:      msg.Content,
		CreatedAt:    msg.CreatedAt,
		ClientTempID: clientTempID,
	}); err != nil {
		// The message is durable; the sender still gets its ack and can
		// reconcile from history.
		s.logger.Error("MessageCreated publish failed", "messageID", msg.ID, "error", err)
	}

	return msg, nil
}

// Typing relays an ephemeral typing signal to everyone in the room but
// the originating connection. Best effort, nothing persisted.
func (s *Service) Typing(roomID, userID, name, excludeConnID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if roomID == "" {
		return ErrInvalidRoom
	}

	if err := s.pub.Typing(events.TypingEvent{
		RoomID:        roomID,
		User:          name,
		SenderID:      userID,
		ExcludeConnID: excludeConnID,
	}); err != nil {
		s.logger.Warn("Typing publish failed", "roomID", roomID, "error", err)
	}
	return nil
}

func (s *Service) publishMembers(roomID string, members []domain.Member) {
	if members == nil {
		members = []domain.Member{}
	}
	if err := s.pub.RoomMembers(events.RoomMembersEvent{RoomID: roomID, Members: members}); err != nil {
		s.logger.Error("RoomMembers publish failed", "roomID", roomID, "error", err)
	}
}
