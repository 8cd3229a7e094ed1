package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/chat"
)

// ChatHandler exposes the negotiation thread endpoints.
type ChatHandler struct {
	logger *zap.Logger
	chat   *chat.Service
}

func NewChatHandler(logger *zap.Logger, chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{
		logger: logger,
		chat:   chatSvc,
	}
}

// Post appends a message to the listing's thread.
func (h *ChatHandler) Post(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msg, err := h.chat.Post(c.Context(), currentUser(c), c.Params("listingId"), req.Text)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// History returns the listing's thread, oldest first.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	msgs, err := h.chat.History(c.Context(), c.Params("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"messages": msgs, "count": len(msgs)})
}
