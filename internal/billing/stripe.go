package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	currency string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider configures the Stripe SDK and returns a provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}

	maxRetries := int64(cfg.MaxRetries)
	if cfg.MaxRetries == 0 {
		maxRetries = 2
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	stripe.Key = cfg.APIKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxRetries),
		HTTPClient:        &http.Client{Timeout: timeout},
	}))

	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}

	return &StripeProvider{currency: currency}, nil
}

// CreateCheckoutSession creates a payment-mode Checkout Session with a
// single ad-hoc line item.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if params.AmountCents < MinimumChargeCents {
		return nil, ErrAmountTooSmall
	}

	currency := strings.ToLower(params.Currency)
	if currency == "" {
		currency = s.currency
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name:     stripe.String(params.ProductName),
		Metadata: params.Metadata,
	}
	if params.ProductDescription != "" {
		productData.Description = stripe.String(params.ProductDescription)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					UnitAmount:  stripe.Int64(params.AmountCents),
					ProductData: productData,
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   params.Metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: params.Metadata,
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.IdempotencyKey != "" {
		sessionParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, toStripeError(err)
	}

	return &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		ExpiresAt:   time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// ExpireCheckoutSession expires an open Checkout Session.
func (s *StripeProvider) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if _, err := checkoutsession.Expire(sessionID, &stripe.CheckoutSessionExpireParams{}); err != nil {
		return toStripeError(err)
	}
	return nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against secret.
// API version mismatches are tolerated; the handler only reads fields that
// are stable across versions.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	_, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

func toStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	if stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, stripeErr.Msg)
	}
	return &StripeError{
		Message:       stripeErr.Msg,
		Code:          string(stripeErr.Code),
		StatusCode:    stripeErr.HTTPStatusCode,
		RequestID:     stripeErr.RequestID,
		OriginalError: err,
	}
}
