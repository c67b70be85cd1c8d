package billing

import (
	"context"
	"time"
)

// Provider defines the payment processor operations the checkout and
// webhook paths need.
type Provider interface {
	// CreateCheckoutSession creates a hosted, one-time payment session.
	// Metadata is attached to the session and its payment intent so webhook
	// handlers can act on it without another API call.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// ExpireCheckoutSession makes an open session unusable. Used to void a
	// session whose ledger row could not be written.
	ExpireCheckoutSession(ctx context.Context, sessionID string) error

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreateCheckoutSessionParams contains parameters for creating a checkout session.
type CreateCheckoutSessionParams struct {
	// AmountCents is the amount charged, in the smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217), e.g. "usd". Falls back to the provider default.
	Currency string

	// ProductName and ProductDescription appear on the hosted payment page.
	ProductName        string
	ProductDescription string

	// CustomerEmail prefills the payment page and receives the receipt.
	CustomerEmail string

	// SuccessURL may contain {CHECKOUT_SESSION_ID}, which the processor expands.
	SuccessURL string
	CancelURL  string

	Metadata map[string]string

	// IdempotencyKey prevents duplicate sessions for a retried request.
	IdempotencyKey string
}

// CheckoutSession is a created hosted payment session.
type CheckoutSession struct {
	ID          string
	URL         string
	AmountTotal int64
	Currency    string
	ExpiresAt   time.Time
}

// MinimumChargeCents is the smallest amount the processor accepts for USD.
const MinimumChargeCents int64 = 50
