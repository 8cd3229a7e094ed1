package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/internal/store"
)

// RegisterRoutes wires all endpoints. nc may be nil when NATS is not
// configured; the health check reports it as such.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store,
	authSvc *auth.Service,
	handler *Handler,
	escrowHandler *EscrowHandler,
	chatHandler *ChatHandler,
	analysisHandler *AnalysisHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil {
			checks["nats"] = "not configured"
		} else if !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")

	// Public
	v1.Post("/auth/register", handler.Register)
	v1.Post("/auth/login", handler.Login)
	v1.Get("/listings", handler.ListListings)
	v1.Get("/listings/:listingId", handler.GetListing)
	v1.Get("/heatmap", handler.Heatmap)
	v1.Get("/market/summary", handler.MarketSummary)

	// Authenticated
	authed := v1.Group("", RequireAuth(authSvc))
	authed.Get("/auth/me", handler.Me)
	authed.Post("/listings", handler.CreateListing)
	authed.Post("/listings/analyze", analysisHandler.Analyze)

	authed.Get("/escrow/:listingId", escrowHandler.Get)
	authed.Post("/escrow/:listingId/start", escrowHandler.Start)
	authed.Post("/escrow/:listingId/verify", escrowHandler.Verify)
	authed.Post("/escrow/:listingId/release", escrowHandler.Release)

	authed.Get("/listings/:listingId/messages", chatHandler.History)
	authed.Post("/listings/:listingId/messages", chatHandler.Post)
}
