package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/handler"
	"github.com/dukerupert/wander/internal/middleware"
	"github.com/dukerupert/wander/internal/service"
	"github.com/dukerupert/wander/internal/telemetry"
)

// Stripe event kinds that can carry a successful payment.
const (
	EventCheckoutCompleted           = "checkout.session.completed"
	EventCheckoutAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

// Fulfiller drives a paid checkout session to a terminal order state.
type Fulfiller interface {
	FulfillPaidSession(ctx context.Context, paid service.PaidSession) (service.FulfillmentOutcome, *domain.Order, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider  billing.Provider
	fulfiller Fulfiller
	config    StripeWebhookConfig
	logger    *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from Stripe dashboard
	WebhookSecret string

	// MaxBodyBytes caps the payload read; defaults to middleware.WebhookMaxBodySize.
	MaxBodyBytes int64
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider billing.Provider, fulfiller Fulfiller, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = middleware.WebhookMaxBodySize
	}
	return &StripeHandler{
		provider:  provider,
		fulfiller: fulfiller,
		config:    config,
		logger:    logger.With("handler", "stripe_webhook"),
	}
}

// HandleWebhook verifies and processes one Stripe event.
//
// Anything that is not a paid eSIM checkout is acknowledged with 200 and
// no action. Provisioning failures are recorded on the order and also
// acknowledged. Only a bad signature (401), an unreadable body (400) or a
// ledger error (500, so Stripe retries) produce a non-2xx response.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "webhook.stripe"

	payload, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodyBytes+1))
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook: error reading payload", "error", err)
		handler.ErrorResponse(w, r, domain.Invalid(op, "Error reading request body"))
		return
	}
	if int64(len(payload)) > h.config.MaxBodyBytes {
		handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, op, "Request body too large"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		observeOutcome("invalid_signature")
		handler.ErrorResponse(w, r, domain.Unauthorized(op, "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		observeOutcome("invalid_signature")
		h.logger.WarnContext(r.Context(), "webhook: signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Unauthorized(op, "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil || event.Data == nil {
		h.logger.WarnContext(r.Context(), "webhook: error parsing event", "error", err)
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid JSON"))
		return
	}

	logger := h.logger.With("event_id", event.ID, "event_type", string(event.Type))
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
	}

	paid, ok := h.paidSession(r.Context(), event, logger)
	if !ok {
		observeOutcome("ignored")
		acknowledge(w)
		return
	}

	outcome, order, err := h.fulfiller.FulfillPaidSession(r.Context(), paid)
	if err != nil {
		observeOutcome("error")
		logger.ErrorContext(r.Context(), "webhook: fulfillment failed", "session_id", paid.SessionID, "error", err)
		handler.ErrorResponse(w, r, err)
		return
	}

	observeOutcome(outcome.String())
	attrs := []any{"session_id", paid.SessionID, "outcome", outcome.String()}
	if order != nil {
		attrs = append(attrs, "order_id", order.ID, "status", string(order.Status))
	}
	logger.InfoContext(r.Context(), "webhook: processed", attrs...)

	acknowledge(w)
}

// paidSession extracts a paid eSIM checkout from the event, reporting false
// for every event that should be acknowledged without action.
func (h *StripeHandler) paidSession(ctx context.Context, event stripe.Event, logger *slog.Logger) (service.PaidSession, bool) {
	switch event.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSuccess:
	default:
		logger.DebugContext(ctx, "webhook: event type ignored")
		return service.PaidSession{}, false
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
		logger.WarnContext(ctx, "webhook: error parsing checkout session", "error", err)
		return service.PaidSession{}, false
	}
	logger = logger.With("session_id", session.ID)

	// Async payment methods complete the session before funds arrive; the
	// async_payment_succeeded event follows once they do.
	if event.Type == EventCheckoutCompleted && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		logger.InfoContext(ctx, "webhook: checkout completed but not yet paid", "payment_status", string(session.PaymentStatus))
		return service.PaidSession{}, false
	}

	if !billing.IsESIM(session.Metadata) {
		logger.InfoContext(ctx, "webhook: checkout is not an eSIM purchase")
		return service.PaidSession{}, false
	}

	paidAt := time.Now()
	if event.Created > 0 {
		paidAt = time.Unix(event.Created, 0)
	}

	return service.PaidSession{
		SessionID: session.ID,
		PaidAt:    paidAt,
		Metadata:  session.Metadata,
	}, true
}

func acknowledge(w http.ResponseWriter) {
	handler.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func observeOutcome(outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookOutcome.WithLabelValues(outcome).Inc()
	}
}

