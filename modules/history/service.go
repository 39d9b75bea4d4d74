// Package history serves cursor-paginated message pages with resolved
// sender names.
package history

import (
	"context"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/storage"
)

// Page size bounds. Requests above the maximum are clamped, not
// rejected.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Store is the slice of the repository the service reads.
type Store interface {
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	ListMessagesBefore(ctx context.Context, roomID string, before *storage.MessageCursor, limit int) ([]domain.Message, error)
	GetUserNames(ctx context.Context, ids []string) (map[string]string, error)
}

// NameCache fronts the user table for display names. Nil disables
// caching entirely.
type NameCache interface {
	GetNames(ctx context.Context, ids []string) (found map[string]string, missed []string)
	SetNames(ctx context.Context, names map[string]string)
}

// Page is one slice of a room's history, newest first. NextCursor is
// set iff the page is full, which hints that older messages may exist.
type Page struct {
	Items       []domain.MessageView `json:"items"`
	NextCursor  *string              `json:"nextCursor"`
	SenderNames map[string]string    `json:"senderNames"`
}

// Service lists message history.
type Service struct {
	store Store
	names NameCache
}

// NewService creates a history service. names may be nil.
func NewService(store Store, names NameCache) *Service {
	return &Service{store: store, names: names}
}

// ClampLimit normalizes a requested page size: zero or negative falls
// back to the default, oversized requests are clamped to the maximum.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ListMessages returns the page of a room's messages strictly older
// than the cursor, with sender names resolved for every distinct sender
// in the page. Errors: ErrBadCursor, storage.ErrRoomNotFound.
func (s *Service) ListMessages(ctx context.Context, roomID, cursor string, limit int) (*Page, error) {
	before, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessagesBefore(ctx, roomID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	page := &Page{
		Items:       make([]domain.MessageView, 0, len(msgs)),
		SenderNames: map[string]string{},
	}
	for _, m := range msgs {
		page.Items = append(page.Items, domain.NewMessageView(m, ""))
	}

	// A full page suggests more data; the cursor points at the last
	// returned item. It can occasionally point past the final message,
	// in which case the next request simply returns an empty page.
	if len(msgs) == limit {
		token := EncodeCursor(msgs[len(msgs)-1])
		page.NextCursor = &token
	}

	names, err := s.resolveNames(ctx, distinctSenders(msgs))
	if err != nil {
		return nil, err
	}
	page.SenderNames = names

	return page, nil
}

func distinctSenders(msgs []domain.Message) []string {
	seen := make(map[string]bool, len(msgs))
	var ids []string
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	return ids
}

// resolveNames reads through the cache when one is configured and
// backfills misses from storage.
func (s *Service) resolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	if s.names == nil {
		names, err := s.store.GetUserNames(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sender names: %w", err)
		}
		return names, nil
	}

	found, missed := s.names.GetNames(ctx, ids)
	if len(missed) == 0 {
		return found, nil
	}

	fromStore, err := s.store.GetUserNames(ctx, missed)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender names: %w", err)
	}
	s.names.SetNames(ctx, fromStore)

	for id, name := range fromStore {
		found[id] = name
	}
	return found, nil
}
