package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v83/webhook"

	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/service"
)

const testSecret = "whsec_test_secret"

type fakeFulfiller struct {
	mu      sync.Mutex
	calls   []service.PaidSession
	outcome service.FulfillmentOutcome
	order   *domain.Order
	err     error
}

func (f *fakeFulfiller) FulfillPaidSession(ctx context.Context, paid service.PaidSession) (service.FulfillmentOutcome, *domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paid)
	return f.outcome, f.order, f.err
}

func (f *fakeFulfiller) Calls() []service.PaidSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.PaidSession(nil), f.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func esimMetadata() map[string]string {
	return billing.OrderMetadata{
		Email:        "traveler@example.com",
		PackageID:    "P1",
		PackageName:  "Japan 5GB",
		CountryCode:  "JP",
		CountryTitle: "Japan",
		DataAmount:   "5GB",
		ValidityDays: 30,
		PriceCents:   1000,
	}.Map()
}

func checkoutEvent(t *testing.T, eventType, paymentStatus string, metadata map[string]string) []byte {
	t.Helper()
	event := map[string]any{
		"id":          "evt_123",
		"object":      "event",
		"type":        eventType,
		"created":     1760000000,
		"api_version": "2025-01-01",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_123",
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"metadata":       metadata,
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func signedRequest(payload []byte, secret string) *http.Request {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func newHandler(f Fulfiller) *StripeHandler {
	return NewStripeHandler(&billing.StripeProvider{}, f, StripeWebhookConfig{WebhookSecret: testSecret}, testLogger())
}

func TestHandleWebhook_PaidCheckoutIsFulfilled(t *testing.T) {
	f := &fakeFulfiller{
		outcome: service.OutcomeCompleted,
		order:   &domain.Order{ID: uuid.New(), Status: domain.OrderStatusCompleted},
	}
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(checkoutEvent(t, EventCheckoutCompleted, "paid", esimMetadata()), testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "cs_test_123", calls[0].SessionID)
	assert.Equal(t, time.Unix(1760000000, 0), calls[0].PaidAt)
	assert.Equal(t, "P1", calls[0].Metadata[billing.MetaPackageID])
}

func TestHandleWebhook_AsyncPaymentSucceeded(t *testing.T) {
	f := &fakeFulfiller{outcome: service.OutcomeCompleted}
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(checkoutEvent(t, EventCheckoutAsyncPaymentSuccess, "paid", esimMetadata()), testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.Calls(), 1)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := &fakeFulfiller{}
	h := newHandler(f)

	payload := checkoutEvent(t, EventCheckoutCompleted, "paid", esimMetadata())

	t.Run("wrong secret", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, signedRequest(payload, "whsec_other"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		h.HandleWebhook(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedRequest(payload, testSecret)
		tampered := bytes.Replace(payload, []byte("cs_test_123"), []byte("cs_test_999"), 1)
		req.Body = io.NopCloser(bytes.NewReader(tampered))

		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	assert.Empty(t, f.Calls(), "no fulfillment on a rejected signature")
}

func TestHandleWebhook_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name          string
		eventType     string
		paymentStatus string
		metadata      map[string]string
	}{
		{"other event type", "payment_intent.succeeded", "paid", esimMetadata()},
		{"expired session", "checkout.session.expired", "unpaid", esimMetadata()},
		{"completed but unpaid", EventCheckoutCompleted, "unpaid", esimMetadata()},
		{"not an esim", EventCheckoutCompleted, "paid", map[string]string{"product_type": "gift_card"}},
		{"no metadata", EventCheckoutCompleted, "paid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFulfiller{}
			h := newHandler(f)

			rec := httptest.NewRecorder()
			h.HandleWebhook(rec, signedRequest(checkoutEvent(t, tt.eventType, tt.paymentStatus, tt.metadata), testSecret))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, f.Calls())
		})
	}
}

func TestHandleWebhook_OutcomesAreAcknowledged(t *testing.T) {
	for _, outcome := range []service.FulfillmentOutcome{
		service.OutcomeCompleted,
		service.OutcomeFailed,
		service.OutcomeDuplicate,
		service.OutcomeUnknownSession,
	} {
		t.Run(outcome.String(), func(t *testing.T) {
			h := newHandler(&fakeFulfiller{outcome: outcome})

			rec := httptest.NewRecorder()
			h.HandleWebhook(rec, signedRequest(checkoutEvent(t, EventCheckoutCompleted, "paid", esimMetadata()), testSecret))

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestHandleWebhook_LedgerErrorAsksForRetry(t *testing.T) {
	f := &fakeFulfiller{err: domain.Internal(errors.New("connection reset"), "fulfillment.fulfill", "failed to claim order")}
	h := newHandler(f)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedRequest(checkoutEvent(t, EventCheckoutCompleted, "paid", esimMetadata()), testSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestHandleWebhook_RejectsOversizedBody(t *testing.T) {
	f := &fakeFulfiller{}
	h := NewStripeHandler(billing.NewMockProvider(), f, StripeWebhookConfig{WebhookSecret: testSecret, MaxBodyBytes: 16}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, f.Calls())
}

func TestHandleWebhook_MalformedJSON(t *testing.T) {
	f := &fakeFulfiller{}
	h := NewStripeHandler(billing.NewMockProvider(), f, StripeWebhookConfig{WebhookSecret: testSecret}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{not json`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.Calls())
}
