package gateway

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/chat"
	"github.com/example/roomchat/modules/history"
	"github.com/example/roomchat/modules/identity"
	"github.com/example/roomchat/modules/storage"
)

// RequireAuth authenticates the request and stores the identity for
// downstream handlers.
func (h *Handlers) RequireAuth(c *fiber.Ctx) error {
	id, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid session",
		})
	}
	c.Locals(identityKey, id)
	return c.Next()
}

func identityFrom(c *fiber.Ctx) *identity.Identity {
	id, _ := c.Locals(identityKey).(*identity.Identity)
	return id
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Me returns the authenticated principal.
func (h *Handlers) Me(c *fiber.Ctx) error {
	id := identityFrom(c)
	return c.JSON(fiber.Map{"id": id.UserID, "name": id.Name})
}

// ListRooms returns all rooms, newest first.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.repo.ListRooms(c.Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

type createRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

// CreateRoom creates a room. The creator is added to the roster so a
// private room is usable immediately.
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room name is required",
		})
	}

	room, err := h.repo.CreateRoom(c.Context(), req.Name, req.IsPrivate)
	if err != nil {
		h.logger.Error("Failed to create room", "error", err)
		return fiber.ErrInternalServerError
	}

	id := identityFrom(c)
	if err := h.repo.AddMember(c.Context(), room.ID, id.UserID); err != nil {
		h.logger.Error("Failed to add creator to roster", "roomID", room.ID, "error", err)
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// ListRoomMessages serves one cursor page of a room's history.
func (h *Handlers) ListRoomMessages(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if uuid.Validate(roomID) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid room id",
		})
	}

	page, err := h.history.ListMessages(c.Context(), roomID, c.Query("cursor"), c.QueryInt("limit"))
	if err != nil {
		switch {
		case errors.Is(err, history.ErrBadCursor):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid cursor",
			})
		case errors.Is(err, storage.ErrRoomNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "room not found",
			})
		default:
			h.logger.Error("Failed to list messages", "roomID", roomID, "error", err)
			return fiber.ErrInternalServerError
		}
	}

	return c.JSON(page)
}

type postMessageRequest struct {
	Content      string `json:"content"`
	ClientTempID string `json:"clientTempId"`
}

// PostRoomMessage is the non-realtime fallback send. Validation order
// and broadcast behavior match the WebSocket path exactly; only the
// response shape differs.
func (h *Handlers) PostRoomMessage(c *fiber.Ctx) error {
	id := identityFrom(c)
	roomID := c.Params("roomId")

	var req postMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed body",
		})
	}

	msg, err := h.svc.SendMessage(c.Context(), roomID, id.UserID, req.Content, req.ClientTempID)
	if err != nil {
		return sendErrorStatus(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(domain.NewMessageView(*msg, req.ClientTempID))
}

// sendErrorStatus maps the send taxonomy onto HTTP statuses.
func sendErrorStatus(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		status = fiber.StatusUnauthorized
	case errors.Is(err, chat.ErrInvalidRoom), errors.Is(err, chat.ErrInvalidContent):
		status = fiber.StatusBadRequest
	case errors.Is(err, chat.ErrAccessDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, chat.ErrRoomNotFound):
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": chat.CodeFor(err)})
}
