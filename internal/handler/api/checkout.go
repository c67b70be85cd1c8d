package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/handler"
	"github.com/dukerupert/wander/internal/service"
)

// maxIdempotencyKeyLen matches Stripe's limit on idempotency keys.
const maxIdempotencyKeyLen = 255

// CheckoutStarter starts a paid checkout for one eSIM package.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

// CheckoutHandler serves POST /api/checkout.
type CheckoutHandler struct {
	checkout CheckoutStarter
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout CheckoutStarter, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// StartCheckout creates a payment session and returns the URL the client
// should redirect to.
//
// The owner is taken from the bearer token when present; guests may check
// out with an email alone. An Idempotency-Key header is forwarded to the
// payment processor.
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "api.checkout"

	var req service.CheckoutRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if buyer := domain.BuyerFromContext(r.Context()); buyer != nil {
		req.OwnerUserID = buyer.UserID
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "Idempotency-Key", "must be at most 255 characters"))
		return
	}
	req.IdempotencyKey = key

	result, err := h.checkout.StartCheckout(r.Context(), req)
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusCreated, result)
}
