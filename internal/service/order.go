package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/wander/internal/domain"
)

// OrderSummary is the buyer-facing view of an order. Artifact fields are
// only present once the order is completed.
type OrderSummary struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	PackageName       string     `json:"packageName"`
	CountryCode       string     `json:"countryCode"`
	CountryTitle      string     `json:"countryTitle"`
	DataAmount        string     `json:"dataAmount"`
	ValidityDays      int32      `json:"validityDays"`
	PriceCents        int64      `json:"priceCents"`
	ChargedCents      int64      `json:"chargedCents"`
	SupplierOrderCode string     `json:"orderCode,omitempty"`
	ICCID             string     `json:"iccid,omitempty"`
	QRCodeURL         string     `json:"qrCodeUrl,omitempty"`
	DirectInstallURL  string     `json:"directInstallUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// SessionStatus is the payload served to the confirmation page poller:
//
//	{"status":"processing"}
//	{"success":true,"order":{...}}
//	{"success":false,"error":"..."}
type SessionStatus struct {
	Status  string        `json:"status,omitempty"`
	Success *bool         `json:"success,omitempty"`
	Order   *OrderSummary `json:"order,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Terminal reports whether the poller can stop.
func (s SessionStatus) Terminal() bool {
	return s.Success != nil
}

// OrderQueryService serves the read side of the ledger.
type OrderQueryService struct {
	ledger       domain.OrderLedger
	supportEmail string
	logger       *slog.Logger
}

// NewOrderQueryService creates a new OrderQueryService instance.
func NewOrderQueryService(ledger domain.OrderLedger, supportEmail string, logger *slog.Logger) *OrderQueryService {
	return &OrderQueryService{
		ledger:       ledger,
		supportEmail: supportEmail,
		logger:       logger.With("service", "order_query"),
	}
}

// StatusBySession reports fulfillment progress for a checkout session.
// Unpaid and in-flight orders both read as processing.
func (s *OrderQueryService) StatusBySession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	const op = "orders.status_by_session"

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	order, err := s.ledger.GetOrderBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}

	switch order.Status {
	case domain.OrderStatusPendingPayment, domain.OrderStatusProcessing:
		return &SessionStatus{Status: string(domain.OrderStatusProcessing)}, nil
	case domain.OrderStatusCompleted:
		ok := true
		summary := summarize(order)
		return &SessionStatus{Success: &ok, Order: &summary}, nil
	case domain.OrderStatusFailed:
		ok := false
		return &SessionStatus{Success: &ok, Error: s.failureMessage(order)}, nil
	}

	return nil, domain.Internal(nil, op, "order has unknown status "+string(order.Status))
}

// ListOrdersForBuyer returns the signed-in buyer's visible orders.
func (s *OrderQueryService) ListOrdersForBuyer(ctx context.Context, buyer *domain.Buyer) ([]OrderSummary, error) {
	const op = "orders.list_for_buyer"

	if buyer == nil || (buyer.UserID == "" && buyer.Email == "") {
		return nil, ErrNotAuthenticated
	}

	orders, err := s.ledger.ListOrdersForOwner(ctx, buyer.UserID, buyer.Email)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	return summarizeAll(orders), nil
}

// LookupOrders finds visible orders by supplier order code or buyer email,
// for guests without an account.
func (s *OrderQueryService) LookupOrders(ctx context.Context, code string) ([]OrderSummary, error) {
	const op = "orders.lookup"

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrLookupCodeRequired
	}

	orders, err := s.ledger.ListOrdersByLookup(ctx, code)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to look up orders")
	}
	return summarizeAll(orders), nil
}

func (s *OrderQueryService) failureMessage(order *domain.Order) string {
	msg := "We could not activate your eSIM. Your payment was received and our team has been notified."
	if s.supportEmail != "" {
		msg += " Please contact " + s.supportEmail + " with reference " + order.ID.String() + "."
	}
	return msg
}

func summarize(o *domain.Order) OrderSummary {
	summary := OrderSummary{
		ID:           o.ID.String(),
		Status:       string(o.Status),
		PackageName:  o.PackageName,
		CountryCode:  o.CountryCode,
		CountryTitle: o.CountryTitle,
		DataAmount:   o.DataAmount,
		ValidityDays: o.ValidityDays,
		PriceCents:   o.PriceCents,
		ChargedCents: o.ChargeCents(),
		CreatedAt:    o.CreatedAt,
	}
	if o.Status == domain.OrderStatusCompleted {
		summary.SupplierOrderCode = o.Artifact.SupplierOrderCode
		summary.ICCID = o.Artifact.ICCID
		summary.QRCodeURL = o.Artifact.QRCodeURL
		summary.DirectInstallURL = o.Artifact.DirectInstallURL
		summary.CompletedAt = o.CompletedAt
	}
	return summary
}

func summarizeAll(orders []domain.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		if !orders[i].Status.VisibleToBuyer() {
			continue
		}
		out = append(out, summarize(&orders[i]))
	}
	return out
}
