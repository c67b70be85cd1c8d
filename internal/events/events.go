// Package events publishes fulfillment events to NATS for out-of-band
// consumers such as the activation email worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/wander/internal/domain"
)

// Subjects
const (
	SubjectOrderCompleted = "wander.orders.completed"
)

// OrderCompleted is emitted once per order when it reaches completed.
type OrderCompleted struct {
	OrderID           string    `json:"order_id"`
	PaymentSessionID  string    `json:"payment_session_id"`
	Email             string    `json:"email"`
	PackageID         string    `json:"package_id"`
	PackageName       string    `json:"package_name"`
	CountryTitle      string    `json:"country_title"`
	DataAmount        string    `json:"data_amount"`
	ValidityDays      int32     `json:"validity_days"`
	SupplierOrderCode string    `json:"supplier_order_code"`
	ICCID             string    `json:"iccid"`
	QRCodeURL         string    `json:"qr_code_url"`
	DirectInstallURL  string    `json:"direct_install_url"`
	CompletedAt       time.Time `json:"completed_at"`
}

// NewOrderCompleted builds the event from a completed order.
func NewOrderCompleted(order *domain.Order) (*OrderCompleted, error) {
	if order.Status != domain.OrderStatusCompleted {
		return nil, fmt.Errorf("order %s is %s, not completed", order.ID, order.Status)
	}

	evt := &OrderCompleted{
		OrderID:           order.ID.String(),
		PaymentSessionID:  order.PaymentSessionID,
		Email:             order.BuyerEmail,
		PackageID:         order.PackageID,
		PackageName:       order.PackageName,
		CountryTitle:      order.CountryTitle,
		DataAmount:        order.DataAmount,
		ValidityDays:      order.ValidityDays,
		SupplierOrderCode: order.Artifact.SupplierOrderCode,
		ICCID:             order.Artifact.ICCID,
		QRCodeURL:         order.Artifact.QRCodeURL,
		DirectInstallURL:  order.Artifact.DirectInstallURL,
	}
	if order.CompletedAt != nil {
		evt.CompletedAt = *order.CompletedAt
	}
	return evt, nil
}

// DecodeOrderCompleted parses a message body published by a Publisher.
func DecodeOrderCompleted(data []byte) (*OrderCompleted, error) {
	var evt OrderCompleted
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode order completed event: %w", err)
	}
	if evt.OrderID == "" || evt.Email == "" {
		return nil, fmt.Errorf("order completed event missing order_id or email")
	}
	return &evt, nil
}

// Publisher delivers fulfillment events.
type Publisher interface {
	PublishOrderCompleted(ctx context.Context, evt *OrderCompleted) error
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCompleted(context.Context, *OrderCompleted) error { return nil }
