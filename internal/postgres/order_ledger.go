package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// OrderLedger implements domain.OrderLedger using PostgreSQL.
// Status transitions are single conditional UPDATE statements so concurrent
// callers race inside the database, never in process.
type OrderLedger struct {
	repo repository.Querier
}

// Compile-time check to ensure OrderLedger implements domain.OrderLedger.
var _ domain.OrderLedger = (*OrderLedger)(nil)

// NewOrderLedger creates a new OrderLedger instance.
func NewOrderLedger(repo repository.Querier) *OrderLedger {
	return &OrderLedger{repo: repo}
}

func (l *OrderLedger) CreateOrder(ctx context.Context, params domain.NewOrder) (*domain.Order, error) {
	const op = "ledger.create"

	row, err := l.repo.CreateEsimOrder(ctx, repository.CreateEsimOrderParams{
		PaymentSessionID:    params.PaymentSessionID,
		BuyerEmail:          params.BuyerEmail,
		PackageID:           params.PackageID,
		PackageName:         params.PackageName,
		CountryCode:         params.CountryCode,
		CountryTitle:        params.CountryTitle,
		DataAmount:          params.DataAmount,
		ValidityDays:        params.ValidityDays,
		PriceCents:          params.PriceCents,
		NetCostCents:        params.NetCostCents,
		LoyaltyCreditsCents: params.LoyaltyCreditsCents,
		OwnerUserID:         pgText(params.OwnerUserID),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrSessionExists.WithOp(op)
		}
		return nil, domain.Internal(err, op, "failed to create order")
	}

	return mapRepoOrderToDomain(row)
}

func (l *OrderLedger) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	const op = "ledger.get_by_session"

	row, err := l.repo.GetEsimOrderBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound.WithOp(op)
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}

	return mapRepoOrderToDomain(row)
}

func (l *OrderLedger) ClaimForProcessing(ctx context.Context, sessionID string, paidAt time.Time) (*domain.Order, error) {
	const op = "ledger.claim"

	row, err := l.repo.ClaimEsimOrderForProcessing(ctx, repository.ClaimEsimOrderForProcessingParams{
		PaymentSessionID: sessionID,
		PaidAt:           pgTimestamptz(paidAt),
	})
	if err == nil {
		return mapRepoOrderToDomain(row)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to claim order")
	}

	// Zero rows: either the session is unknown or another delivery got here first.
	if _, err := l.repo.GetEsimOrderBySession(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound.WithOp(op)
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}
	return nil, domain.ErrDuplicateDelivery.WithOp(op)
}

func (l *OrderLedger) MarkCompleted(ctx context.Context, orderID uuid.UUID, artifact domain.Artifact, completedAt time.Time) (*domain.Order, error) {
	const op = "ledger.complete"

	if !artifact.Complete() {
		return nil, domain.Invalid(op, "completed orders require every artifact field")
	}

	row, err := l.repo.CompleteEsimOrder(ctx, repository.CompleteEsimOrderParams{
		ID:                pgUUID(orderID),
		SupplierOrderID:   pgText(artifact.SupplierOrderID),
		SupplierOrderCode: pgText(artifact.SupplierOrderCode),
		Iccid:             pgText(artifact.ICCID),
		QrCodeUrl:         pgText(artifact.QRCodeURL),
		DirectInstallUrl:  pgText(artifact.DirectInstallURL),
		CompletedAt:       pgTimestamptz(completedAt),
	})
	if err != nil {
		return nil, l.transitionError(ctx, op, orderID, err)
	}

	return mapRepoOrderToDomain(row)
}

func (l *OrderLedger) MarkFailed(ctx context.Context, orderID uuid.UUID, message string) (*domain.Order, error) {
	const op = "ledger.fail"

	if message == "" {
		return nil, domain.Invalid(op, "failed orders require an error message")
	}

	row, err := l.repo.FailEsimOrder(ctx, repository.FailEsimOrderParams{
		ID:           pgUUID(orderID),
		ErrorMessage: pgText(message),
	})
	if err != nil {
		return nil, l.transitionError(ctx, op, orderID, err)
	}

	return mapRepoOrderToDomain(row)
}

// transitionError classifies a failed processing -> terminal update.
func (l *OrderLedger) transitionError(ctx context.Context, op string, orderID uuid.UUID, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Internal(err, op, "failed to update order")
	}
	if _, err := l.repo.GetEsimOrderStatus(ctx, pgUUID(orderID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound.WithOp(op)
		}
		return domain.Internal(err, op, "failed to get order status")
	}
	return domain.ErrIllegalTransition.WithOp(op)
}

func (l *OrderLedger) ListStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int32) ([]domain.Order, error) {
	const op = "ledger.list_stale"

	rows, err := l.repo.ListStaleEsimOrders(ctx, repository.ListStaleEsimOrdersParams{
		ClaimedBefore: pgTimestamptz(claimedBefore),
		MaxRows:       limit,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list stale orders")
	}

	return mapRepoOrdersToDomain(rows)
}

func (l *OrderLedger) ListOrdersForOwner(ctx context.Context, userID, email string) ([]domain.Order, error) {
	const op = "ledger.list_for_owner"

	rows, err := l.repo.ListEsimOrdersForOwner(ctx, repository.ListEsimOrdersForOwnerParams{
		OwnerUserID: userID,
		Email:       email,
		Statuses:    visibleStatuses(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	return mapRepoOrdersToDomain(rows)
}

func (l *OrderLedger) ListOrdersByLookup(ctx context.Context, code string) ([]domain.Order, error) {
	const op = "ledger.list_by_lookup"

	rows, err := l.repo.ListEsimOrdersByLookup(ctx, repository.ListEsimOrdersByLookupParams{
		Code:     code,
		Statuses: visibleStatuses(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to look up orders")
	}

	return mapRepoOrdersToDomain(rows)
}

// =============================================================================
// Helper Functions
// =============================================================================

func visibleStatuses() []string {
	statuses := domain.BuyerVisibleStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// mapRepoOrderToDomain converts a repository EsimOrder to a domain Order.
func mapRepoOrderToDomain(o repository.EsimOrder) (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(o.Status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.PaymentSessionID, err)
	}

	order := &domain.Order{
		ID:                  uuid.UUID(o.ID.Bytes),
		PaymentSessionID:    o.PaymentSessionID,
		BuyerEmail:          o.BuyerEmail,
		PackageID:           o.PackageID,
		PackageName:         o.PackageName,
		CountryCode:         o.CountryCode,
		CountryTitle:        o.CountryTitle,
		DataAmount:          o.DataAmount,
		ValidityDays:        o.ValidityDays,
		PriceCents:          o.PriceCents,
		NetCostCents:        o.NetCostCents,
		LoyaltyCreditsCents: o.LoyaltyCreditsCents,
		Status:              status,
		Artifact: domain.Artifact{
			SupplierOrderID:   o.SupplierOrderID.String,
			SupplierOrderCode: o.SupplierOrderCode.String,
			ICCID:             o.Iccid.String,
			QRCodeURL:         o.QrCodeUrl.String,
			DirectInstallURL:  o.DirectInstallUrl.String,
		},
		ErrorMessage: o.ErrorMessage.String,
		OwnerUserID:  o.OwnerUserID.String,
		CreatedAt:    o.CreatedAt.Time,
		UpdatedAt:    o.UpdatedAt.Time,
		PaidAt:       timePtr(o.PaidAt),
		CompletedAt:  timePtr(o.CompletedAt),
	}
	if err := checkTerminalRow(order); err != nil {
		return nil, fmt.Errorf("order %s: %w", o.PaymentSessionID, err)
	}
	return order, nil
}

// checkTerminalRow rejects rows whose columns disagree with their status.
func checkTerminalRow(o *domain.Order) error {
	if !o.Status.IsTerminal() {
		if o.Artifact != (domain.Artifact{}) {
			return fmt.Errorf("%s order carries a supplier artifact", o.Status)
		}
		return nil
	}
	switch o.Status {
	case domain.OrderStatusCompleted:
		if !o.Artifact.Complete() {
			return errors.New("completed order is missing artifact fields")
		}
	case domain.OrderStatusFailed:
		if o.ErrorMessage == "" {
			return errors.New("failed order has no error message")
		}
	}
	return nil
}

func mapRepoOrdersToDomain(rows []repository.EsimOrder) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := mapRepoOrderToDomain(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}
