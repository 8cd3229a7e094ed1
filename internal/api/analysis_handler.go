package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/analysis"
)

// AnalysisHandler exposes the AI listing extraction endpoint.
type AnalysisHandler struct {
	logger *zap.Logger
	client *analysis.Client
}

func NewAnalysisHandler(logger *zap.Logger, client *analysis.Client) *AnalysisHandler {
	return &AnalysisHandler{
		logger: logger,
		client: client,
	}
}

// Analyze turns a free-text produce description into a listing draft.
func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	if h.client == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "analysis not enabled"})
	}

	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := currentUser(c)
	draft, err := h.client.ExtractListing(c.Context(), user.ID, req.Description)
	if err != nil {
		h.logger.Warn("api.analyze.failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(draft)
}
