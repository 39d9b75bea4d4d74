package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/storage"
)

// ErrBadCursor is returned for a cursor that does not parse.
var ErrBadCursor = errors.New("malformed cursor")

// EncodeCursor renders the position of a message as an opaque page
// token: epoch milliseconds and message id joined by an underscore. The
// composite form keeps pagination exact when several messages share a
// timestamp at a page boundary.
func EncodeCursor(m domain.Message) string {
	return fmt.Sprintf("%d_%s", m.CreatedAt.UnixMilli(), m.ID)
}

// DecodeCursor parses a page token back into the exclusive lower bound
// for the next page. An empty token means "start from the newest".
func DecodeCursor(token string) (*storage.MessageCursor, error) {
	if token == "" {
		return nil, nil
	}

	msStr, id, ok := strings.Cut(token, "_")
	if !ok || id == "" {
		return nil, ErrBadCursor
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil {
		return nil, ErrBadCursor
	}

	return &storage.MessageCursor{
		CreatedAt: time.UnixMilli(ms).UTC(),
		ID:        id,
	}, nil
}
