package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shambasmart/marketplace/internal/analysis"
	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/internal/chat"
	"github.com/shambasmart/marketplace/internal/escrow"
	"github.com/shambasmart/marketplace/internal/listing"
	"github.com/shambasmart/marketplace/internal/store"
)

// writeError maps domain errors onto HTTP statuses. Anything unrecognized is
// a 500 with a generic body so internals never leak.
func writeError(c *fiber.Ctx, err error) error {
	var validationErr *escrow.ValidationError
	var conflictErr *escrow.ConflictError

	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Error()})
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": conflictErr.Error()})
	case errors.Is(err, store.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrTransient):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporarily unavailable, retry"})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, chat.ErrEmptyText),
		errors.Is(err, chat.ErrTextTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, listing.ErrNotFarmer), errors.Is(err, escrow.ErrNotBuyer):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, analysis.ErrUnprocessable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
