package middleware

import (
	"net/http"
	"time"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize covers JSON API requests.
	DefaultMaxBodySize = 1 * MB

	// WebhookMaxBodySize matches the largest payload Stripe sends.
	WebhookMaxBodySize = 64 * KB
)

// MaxBodySize limits the size of request bodies.
// If no size is provided, DefaultMaxBodySize is used.
// Declared oversize bodies get 413 up front; others fail on read.
func MaxBodySize(maxBytes ...int64) func(http.Handler) http.Handler {
	limit := int64(DefaultMaxBodySize)
	if len(maxBytes) > 0 {
		limit = maxBytes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				respondTooLarge(w, r)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Common timeout values
const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// ShortTimeout is for read-only queries
	ShortTimeout = 5 * time.Second
)

// Timeout bounds request processing with http.TimeoutHandler. Work that
// must outlive the request detaches its context explicitly.
func Timeout(timeout ...time.Duration) func(http.Handler) http.Handler {
	d := DefaultTimeout
	if len(timeout) > 0 {
		d = timeout[0]
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":{"code":"internal","message":"Request timeout"}}`)
	}
}
