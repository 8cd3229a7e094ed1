package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/internal/jobs"
	"github.com/shambasmart/marketplace/internal/listing"
	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

// Handler serves authentication, listing and market summary endpoints.
type Handler struct {
	logger    *zap.Logger
	auth      *auth.Service
	listings  *listing.Service
	refresher *jobs.SummaryRefresher
}

// NewHandler creates a Handler. refresher may be nil when the summary job is
// not running (in-memory mode).
func NewHandler(logger *zap.Logger, authSvc *auth.Service, listings *listing.Service, refresher *jobs.SummaryRefresher) *Handler {
	return &Handler{
		logger:    logger,
		auth:      authSvc,
		listings:  listings,
		refresher: refresher,
	}
}

// Register handles user signup.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.auth.Register(c.Context(), auth.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
		Location: req.Location,
	})
	if err != nil {
		h.logger.Warn("api.register.failed",
			zap.String("email", req.Email),
			zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles credential verification and token issuance.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	token, user, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(AuthResponse{Token: token, User: user})
}

// Me returns the authenticated user.
func (h *Handler) Me(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(currentUser(c))
}

// CreateListing handles listing creation by the authenticated farmer.
func (h *Handler) CreateListing(c *fiber.Ctx) error {
	var req ListingCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	l, err := h.listings.Create(c.Context(), currentUser(c), listing.CreateParams{
		CropName:     req.CropName,
		Quantity:     req.Quantity,
		QualityScore: req.QualityScore,
		BasePrice:    req.BasePrice,
		CurrentBid:   req.CurrentBid,
		Location: model.Location{
			Name: req.Location.Name,
			Lat:  req.Location.Lat,
			Lng:  req.Location.Lng,
		},
		ImageURL:    req.ImageURL,
		ListingType: model.ListingType(req.ListingType),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(l)
}

// GetListing returns one listing by id.
func (h *Handler) GetListing(c *fiber.Ctx) error {
	l, err := h.listings.Get(c.Context(), c.Params("listingId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(l)
}

// ListListings returns listings matching the query filters.
func (h *Handler) ListListings(c *fiber.Ctx) error {
	f := store.ListingFilter{
		CropName: c.Query("crop"),
		Status:   model.ListingStatus(c.Query("status")),
		Location: c.Query("location"),
	}
	out, err := h.listings.List(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"listings": out, "count": len(out)})
}

// Heatmap returns the aggregated supply heatmap.
func (h *Handler) Heatmap(c *fiber.Ctx) error {
	f := store.HeatmapFilter{
		CropName: c.Query("crop"),
		Status:   model.ListingStatus(c.Query("status")),
	}
	points, err := h.listings.Heatmap(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"points": points})
}

// MarketSummary returns the latest per-crop roll-up.
func (h *Handler) MarketSummary(c *fiber.Ctx) error {
	if h.refresher == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "market summary not enabled"})
	}
	snap := h.refresher.Latest()
	if snap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "summary not computed yet"})
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}
