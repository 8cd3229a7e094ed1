package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/escrow"
)

// EscrowHandler exposes the coordinator's lifecycle operations.
type EscrowHandler struct {
	logger      *zap.Logger
	coordinator *escrow.Coordinator
}

func NewEscrowHandler(logger *zap.Logger, coordinator *escrow.Coordinator) *EscrowHandler {
	return &EscrowHandler{
		logger:      logger,
		coordinator: coordinator,
	}
}

// Start opens (or re-opens) negotiation on a listing.
func (h *EscrowHandler) Start(c *fiber.Ctx) error {
	var req EscrowStartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := currentUser(c)
	snapshot, err := h.coordinator.Start(c.Context(), escrow.StartParams{
		ListingID:         c.Params("listingId"),
		BuyerID:           user.ID,
		BuyerRole:         user.Role,
		RequestedQuantity: req.Quantity,
		Amount:            req.Amount,
	})
	if err != nil {
		h.logger.Warn("api.escrow.start.failed",
			zap.String("listing_id", c.Params("listingId")),
			zap.String("buyer_id", user.ID),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toEscrowResponse(snapshot))
}

// Verify confirms the buyer's funds are held.
func (h *EscrowHandler) Verify(c *fiber.Ctx) error {
	snapshot, err := h.coordinator.Verify(c.Context(), c.Params("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(toEscrowResponse(snapshot))
}

// Release settles the escrow and reconciles the listing's stock.
func (h *EscrowHandler) Release(c *fiber.Ctx) error {
	snapshot, err := h.coordinator.Release(c.Context(), c.Params("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(toEscrowResponse(snapshot))
}

// Get returns the listing's escrow snapshot.
func (h *EscrowHandler) Get(c *fiber.Ctx) error {
	snapshot, err := h.coordinator.Get(c.Context(), c.Params("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(toEscrowResponse(snapshot))
}
