package routes

import (
	"net/http"

	"github.com/dukerupert/wander/internal/handler/api"
	"github.com/dukerupert/wander/internal/handler/storefront"
	"github.com/dukerupert/wander/internal/middleware"
)

// StorefrontDeps contains dependencies for storefront routes
type StorefrontDeps struct {
	ConfirmationHandler *storefront.ConfirmationHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// APIDeps contains dependencies for API routes
type APIDeps struct {
	CheckoutHandler  *api.CheckoutHandler
	OrdersHandler    *api.OrdersHandler
	RemindersHandler *api.RemindersHandler

	// Auth resolves the optional bearer token on every API request.
	Auth *middleware.BearerAuth

	// WriteLimiter guards checkout and reminder creation.
	WriteLimiter *middleware.RateLimiter

	// ReadLimiter guards the status poller and order lookups.
	ReadLimiter *middleware.RateLimiter
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}
