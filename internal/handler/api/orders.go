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

// OrderReader serves the buyer-facing order read models.
type OrderReader interface {
	StatusBySession(ctx context.Context, sessionID string) (*service.SessionStatus, error)
	ListOrdersForBuyer(ctx context.Context, buyer *domain.Buyer) ([]service.OrderSummary, error)
	LookupOrders(ctx context.Context, code string) ([]service.OrderSummary, error)
}

// OrdersHandler serves the order query endpoints.
type OrdersHandler struct {
	orders OrderReader
	logger *slog.Logger
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(orders OrderReader, logger *slog.Logger) *OrdersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrdersHandler{
		orders: orders,
		logger: logger,
	}
}

type ordersResponse struct {
	Orders []service.OrderSummary `json:"orders"`
}

// StatusBySession handles GET /api/orders/session/{sessionID}, polled by the
// confirmation page until the order is terminal.
func (h *OrdersHandler) StatusBySession(w http.ResponseWriter, r *http.Request) {
	status, err := h.orders.StatusBySession(r.Context(), strings.TrimSpace(r.PathValue("sessionID")))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, status)
}

// Mine handles GET /api/orders/mine for the authenticated buyer.
func (h *OrdersHandler) Mine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersForBuyer(r.Context(), domain.BuyerFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

// Lookup handles GET /api/orders/lookup?code=, for guests who have an order
// code or the purchase email but no account.
func (h *OrdersHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.LookupOrders(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, ordersResponse{Orders: orders})
}
