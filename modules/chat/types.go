package chat

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Content bounds, counted in characters after trimming.
const (
	MinContentLength = 1
	MaxContentLength = 2000
)

// Failure taxonomy for room operations. The gateway maps these to ws
// ack codes and HTTP statuses; they are never broadcast to a room.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidRoom     = errors.New("invalid room id")
	ErrRoomNotFound    = errors.New("room not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidContent  = errors.New("invalid content")
	ErrInternal        = errors.New("internal error")
)

// Ack codes carried in send_message responses.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeInvalidRoom     = "invalid_room"
	CodeRoomNotFound    = "room_not_found"
	CodeAccessDenied    = "access_denied"
	CodeInvalidContent  = "invalid_content"
	CodeInternal        = "internal_error"
)

// CodeFor maps a taxonomy error to its wire ack code. Unknown errors are
// reported as internal so nothing leaks to the client.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrInvalidRoom):
		return CodeInvalidRoom
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrInvalidContent):
		return CodeInvalidContent
	default:
		return CodeInternal
	}
}

// NormalizeContent trims a raw message body and validates its length.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(content)
	if n < MinContentLength || n > MaxContentLength {
		return "", ErrInvalidContent
	}
	return content, nil
}

// Ack is the single-recipient response to a send_message request.
type Ack struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// AckFor builds the ack for a completed send.
func AckFor(messageID string, err error) Ack {
	if err != nil {
		return Ack{OK: false, Error: CodeFor(err)}
	}
	return Ack{OK: true, ID: messageID}
}
