package routes

import (
	"net/http"

	"github.com/dukerupert/wander/internal/router"
)

// RegisterStorefrontRoutes registers the customer-facing HTML pages.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	r.Get("/checkout/confirmation", deps.ConfirmationHandler.ServeHTTP)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/healthz", deps.Health)
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}
