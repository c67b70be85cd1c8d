// Package router is a thin method-aware layer over http.ServeMux. Route
// groups share a middleware chain, which is how the API splits its write and
// read rate limits and how webhooks get their own body limit.
package router

import (
	"net/http"
	"slices"
)

// Router registers "METHOD /pattern" routes on a shared ServeMux.
type Router struct {
	mux   *http.ServeMux
	chain []Middleware
}

type Middleware func(http.Handler) http.Handler

// New returns a Router whose chain wraps every route registered on it or on
// its groups.
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:   http.NewServeMux(),
		chain: middleware,
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Get serves page and status reads such as /api/orders/session/{sessionID}.
func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, middleware...)
}

// Post serves checkout, reminders and the Stripe webhook.
func (r *Router) Post(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, middleware...)
}

// Handle accepts any http.Handler, e.g. the Prometheus handler on /metrics.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	r.mux.Handle(method+" "+pattern, r.wrap(handler, middleware))
}

// wrap runs the router chain outermost, then the route's own middleware.
func (r *Router) wrap(handler http.Handler, middleware []Middleware) http.Handler {
	combined := append(slices.Clone(r.chain), middleware...)

	result := handler
	for i := len(combined) - 1; i >= 0; i-- {
		result = combined[i](result)
	}
	return result
}

// Group returns a Router on the same mux whose chain extends this one.
// Registering through a group never changes the parent's chain.
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:   r.mux,
		chain: append(slices.Clone(r.chain), middleware...),
	}
}
