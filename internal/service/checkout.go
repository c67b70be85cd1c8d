package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/telemetry"
)

// CheckoutRequest is a buyer's request to pay for one eSIM package.
// Money fields are integer cents.
type CheckoutRequest struct {
	Email               string `json:"email" validate:"required,email"`
	PackageID           string `json:"packageId" validate:"required,max=128"`
	PackageName         string `json:"packageName" validate:"required,max=255"`
	CountryCode         string `json:"countryCode" validate:"required,len=2"`
	CountryTitle        string `json:"countryTitle" validate:"required,max=128"`
	DataAmount          string `json:"dataAmount" validate:"required,max=64"`
	ValidityDays        int32  `json:"validityDays" validate:"gt=0"`
	PriceCents          int64  `json:"priceCents" validate:"gt=0"`
	NetCostCents        int64  `json:"netCostCents" validate:"gte=0"`
	LoyaltyCreditsCents int64  `json:"loyaltyCreditsCents" validate:"gte=0"`

	// OwnerUserID is set from the authenticated buyer, never from the body.
	OwnerUserID string `json:"-"`

	// IdempotencyKey is forwarded to the processor so a retried request
	// returns the same session.
	IdempotencyKey string `json:"-"`
}

// CheckoutResult is returned to the client, which redirects to URL.
type CheckoutResult struct {
	OrderID   uuid.UUID `json:"orderId"`
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
}

// CheckoutConfig holds the URLs the hosted payment page returns to.
type CheckoutConfig struct {
	// SuccessURL may contain {CHECKOUT_SESSION_ID}.
	SuccessURL string
	CancelURL  string
	Currency   string
}

// CheckoutService starts paid eSIM checkouts.
type CheckoutService struct {
	ledger   domain.OrderLedger
	provider billing.Provider
	config   CheckoutConfig
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(ledger domain.OrderLedger, provider billing.Provider, config CheckoutConfig, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		provider: provider,
		config:   config,
		logger:   logger.With("service", "checkout"),
	}
}

// ChargeCents is what the buyer pays after loyalty credits.
func (r CheckoutRequest) ChargeCents() int64 {
	return r.PriceCents - r.LoyaltyCreditsCents
}

// StartCheckout creates a payment session carrying every field fulfillment
// needs, then writes the pending_payment ledger row keyed by that session.
//
// Validation failures return before any session or row exists. If the row
// cannot be written the session is expired so it can never be paid.
func (s *CheckoutService) StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "checkout.start"

	req.Email = strings.TrimSpace(req.Email)
	req.PackageID = strings.TrimSpace(req.PackageID)
	req.CountryCode = strings.ToUpper(strings.TrimSpace(req.CountryCode))

	if err := validateStruct(op, req); err != nil {
		observeCheckout("invalid")
		return nil, err
	}
	if req.LoyaltyCreditsCents > req.PriceCents {
		observeCheckout("invalid")
		return nil, domain.ErrCreditsExceedPrice.WithOp(op)
	}
	if req.ChargeCents() < billing.MinimumChargeCents {
		observeCheckout("invalid")
		return nil, domain.Invalid(op, fmt.Sprintf("Amount due after credits must be at least %d cents", billing.MinimumChargeCents))
	}

	meta := billing.OrderMetadata{
		Email:               req.Email,
		PackageID:           req.PackageID,
		PackageName:         req.PackageName,
		CountryCode:         req.CountryCode,
		CountryTitle:        req.CountryTitle,
		DataAmount:          req.DataAmount,
		ValidityDays:        req.ValidityDays,
		PriceCents:          req.PriceCents,
		NetCostCents:        req.NetCostCents,
		LoyaltyCreditsCents: req.LoyaltyCreditsCents,
		OwnerUserID:         req.OwnerUserID,
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billing.CreateCheckoutSessionParams{
		AmountCents:        req.ChargeCents(),
		Currency:           s.config.Currency,
		ProductName:        fmt.Sprintf("%s eSIM - %s", req.CountryTitle, req.PackageName),
		ProductDescription: fmt.Sprintf("%s, valid %d days", req.DataAmount, req.ValidityDays),
		CustomerEmail:      req.Email,
		SuccessURL:         s.config.SuccessURL,
		CancelURL:          s.config.CancelURL,
		Metadata:           meta.Map(),
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		observeCheckout("payment_error")
		s.logger.ErrorContext(ctx, "checkout: failed to create payment session",
			"package_id", req.PackageID,
			"error", err,
		)
		return nil, domain.Upstream(err, op, "Payment provider is unavailable. Please try again.")
	}

	order, err := s.ledger.CreateOrder(ctx, domain.NewOrder{
		PaymentSessionID:    session.ID,
		BuyerEmail:          req.Email,
		PackageID:           req.PackageID,
		PackageName:         req.PackageName,
		CountryCode:         req.CountryCode,
		CountryTitle:        req.CountryTitle,
		DataAmount:          req.DataAmount,
		ValidityDays:        req.ValidityDays,
		PriceCents:          req.PriceCents,
		NetCostCents:        req.NetCostCents,
		LoyaltyCreditsCents: req.LoyaltyCreditsCents,
		OwnerUserID:         req.OwnerUserID,
	})
	if err != nil {
		observeCheckout("ledger_error")
		s.logger.ErrorContext(ctx, "checkout: failed to record order, expiring session",
			"session_id", session.ID,
			"error", err,
		)
		if expErr := s.provider.ExpireCheckoutSession(context.WithoutCancel(ctx), session.ID); expErr != nil {
			s.logger.ErrorContext(ctx, "checkout: failed to expire orphaned session",
				"session_id", session.ID,
				"error", expErr,
			)
			telemetry.CaptureError(ctx, expErr, map[string]any{"payment_session_id": session.ID})
		}
		return nil, domain.Internal(err, op, "failed to record order")
	}

	observeCheckout("created")
	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.Inc()
	}

	s.logger.InfoContext(ctx, "checkout: session created",
		"order_id", order.ID,
		"session_id", session.ID,
		"package_id", req.PackageID,
		"amount_cents", req.ChargeCents(),
	)

	return &CheckoutResult{
		OrderID:   order.ID,
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func observeCheckout(outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(outcome).Inc()
	}
}
