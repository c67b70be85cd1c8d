package routes

import (
	"context"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/middleware"
	"github.com/dukerupert/wander/internal/router"
	"github.com/dukerupert/wander/internal/telemetry"
)

// RegisterAPIRoutes registers the JSON API used by the storefront client.
// Guests can check out, poll and look up orders; "my orders" needs a bearer
// token.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(
		deps.Auth.WithBuyer,
		telemetry.SentryContextMiddleware(sentryBuyer),
		middleware.MaxBodySize(),
		middleware.Timeout(),
	)

	writes := api.Group(deps.WriteLimiter.Middleware)
	writes.Post("/api/checkout", deps.CheckoutHandler.StartCheckout)
	writes.Post("/api/reminders", deps.RemindersHandler.Schedule)

	reads := api.Group(deps.ReadLimiter.Middleware)
	reads.Get("/api/orders/session/{sessionID}", deps.OrdersHandler.StatusBySession)
	reads.Get("/api/orders/lookup", deps.OrdersHandler.Lookup)

	api.Get("/api/orders/mine", deps.OrdersHandler.Mine, deps.Auth.RequireBuyer)
}

func sentryBuyer(ctx context.Context) *telemetry.UserInfo {
	buyer := domain.BuyerFromContext(ctx)
	if buyer == nil {
		return nil
	}
	return &telemetry.UserInfo{ID: buyer.UserID, Email: buyer.Email}
}
