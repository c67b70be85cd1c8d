// Package domain provides the core order fulfillment types, the ledger
// contracts, and request-scoped context helpers.
package domain

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	buyerContextKey contextKey = iota
	requestIDContextKey
)

// Buyer is the authenticated account attached to a request by the auth
// middleware. Guests have no Buyer in context.
type Buyer struct {
	UserID string
	Email  string
}

// NewContextWithBuyer returns a new context with the buyer attached.
func NewContextWithBuyer(ctx context.Context, buyer *Buyer) context.Context {
	return context.WithValue(ctx, buyerContextKey, buyer)
}

// BuyerFromContext retrieves the buyer from context.
// Returns nil if no buyer is present.
func BuyerFromContext(ctx context.Context) *Buyer {
	buyer, _ := ctx.Value(buyerContextKey).(*Buyer)
	return buyer
}

// BuyerUserIDFromContext returns the buyer's user ID, or "" for guests.
func BuyerUserIDFromContext(ctx context.Context) string {
	if buyer := BuyerFromContext(ctx); buyer != nil {
		return buyer.UserID
	}
	return ""
}

// IsAuthenticated returns true if there is a buyer in context.
func IsAuthenticated(ctx context.Context) bool {
	return BuyerFromContext(ctx) != nil
}

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
