package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment state of an eSIM order.
//
//	pending_payment -> processing -> completed
//	                              -> failed
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusFailed         OrderStatus = "failed"
)

// ParseOrderStatus converts a stored status string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPendingPayment, OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether no further transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed:
		return true
	case OrderStatusPendingPayment, OrderStatusProcessing:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is a legal forward step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPendingPayment:
		return next == OrderStatusProcessing
	case OrderStatusProcessing:
		return next == OrderStatusCompleted || next == OrderStatusFailed
	case OrderStatusCompleted, OrderStatusFailed:
		return false
	default:
		return false
	}
}

// VisibleToBuyer reports whether an order in this status appears in
// "my orders" and guest lookup results.
func (s OrderStatus) VisibleToBuyer() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusCompleted:
		return true
	case OrderStatusPendingPayment, OrderStatusFailed:
		return false
	default:
		return false
	}
}

// BuyerVisibleStatuses lists the statuses for which VisibleToBuyer is true.
func BuyerVisibleStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusProcessing, OrderStatusCompleted}
}

// Order-related domain errors.
var (
	ErrOrderNotFound      = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrDuplicateDelivery  = &Error{Code: ECONFLICT, Message: "Order already picked up for fulfillment"}
	ErrIllegalTransition  = &Error{Code: ECONFLICT, Message: "Order is not in the expected state"}
	ErrSessionExists      = &Error{Code: ECONFLICT, Message: "An order already exists for this payment session"}
	ErrCreditsExceedPrice = &Error{Code: EINVALID, Message: "Loyalty credits cannot exceed the package price"}
)

// Artifact is the supplier-issued deliverable attached to a completed order.
type Artifact struct {
	SupplierOrderID   string
	SupplierOrderCode string
	ICCID             string
	QRCodeURL         string
	DirectInstallURL  string
}

// Complete reports whether every artifact field is populated.
func (a Artifact) Complete() bool {
	return a.SupplierOrderID != "" &&
		a.SupplierOrderCode != "" &&
		a.ICCID != "" &&
		a.QRCodeURL != "" &&
		a.DirectInstallURL != ""
}

// Order is one row of the fulfillment ledger.
type Order struct {
	ID               uuid.UUID
	PaymentSessionID string
	BuyerEmail       string

	PackageID    string
	PackageName  string
	CountryCode  string
	CountryTitle string
	DataAmount   string
	ValidityDays int32

	PriceCents          int64
	NetCostCents        int64
	LoyaltyCreditsCents int64

	Status   OrderStatus
	Artifact Artifact

	ErrorMessage string

	// OwnerUserID is empty for guest purchases.
	OwnerUserID string

	CreatedAt time.Time
	// UpdatedAt is the time of the last status change.
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CompletedAt *time.Time
}

// ChargeCents is the amount collected by the payment processor.
func (o *Order) ChargeCents() int64 {
	return o.PriceCents - o.LoyaltyCreditsCents
}

// NewOrder carries the immutable descriptors written when a checkout starts.
type NewOrder struct {
	PaymentSessionID    string
	BuyerEmail          string
	PackageID           string
	PackageName         string
	CountryCode         string
	CountryTitle        string
	DataAmount          string
	ValidityDays        int32
	PriceCents          int64
	NetCostCents        int64
	LoyaltyCreditsCents int64
	OwnerUserID         string
}

// OrderLedger persists orders and enforces the status state machine.
// Every mutating method is a conditional write on the current status.
type OrderLedger interface {
	// CreateOrder inserts a pending_payment row. Returns ErrSessionExists when
	// the payment session already has an order.
	CreateOrder(ctx context.Context, params NewOrder) (*Order, error)

	// GetOrderBySession returns ErrOrderNotFound when no row matches.
	GetOrderBySession(ctx context.Context, sessionID string) (*Order, error)

	// ClaimForProcessing moves pending_payment -> processing for the session.
	// Returns ErrOrderNotFound when no row exists and ErrDuplicateDelivery
	// when the row has already left pending_payment.
	ClaimForProcessing(ctx context.Context, sessionID string, paidAt time.Time) (*Order, error)

	// MarkCompleted moves processing -> completed with the artifact.
	// Returns ErrIllegalTransition if the row is not processing.
	MarkCompleted(ctx context.Context, orderID uuid.UUID, artifact Artifact, completedAt time.Time) (*Order, error)

	// MarkFailed moves processing -> failed with an error message.
	// Returns ErrIllegalTransition if the row is not processing.
	MarkFailed(ctx context.Context, orderID uuid.UUID, message string) (*Order, error)

	// ListStaleProcessing returns up to limit orders that entered processing
	// before claimedBefore and have not reached a terminal state, oldest first.
	ListStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int32) ([]Order, error)

	// ListOrdersForOwner returns buyer-visible orders owned by userID or
	// bought with email, newest first.
	ListOrdersForOwner(ctx context.Context, userID, email string) ([]Order, error)

	// ListOrdersByLookup returns buyer-visible orders whose supplier order
	// code or buyer email equals code, newest first.
	ListOrdersByLookup(ctx context.Context, code string) ([]Order, error)
}
