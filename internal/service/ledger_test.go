package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/wander/internal/domain"
)

// memLedger is an in-memory OrderLedger with the same compare-and-swap
// semantics as the Postgres implementation.
type memLedger struct {
	mu        sync.Mutex
	bySession map[string]*domain.Order
	history   map[uuid.UUID][]domain.OrderStatus

	createErr       error
	markFailedErr   error
	markCompleteErr error

	// markFailedBlips and markCompleteBlips fail that many upcoming calls
	// with a transient error before the write goes through.
	markFailedBlips   int
	markCompleteBlips int
	markFailedCalls   int
	markCompleteCalls int
}

var errBlip = errors.New("db blip")

var _ domain.OrderLedger = (*memLedger)(nil)

func newMemLedger() *memLedger {
	return &memLedger{
		bySession: make(map[string]*domain.Order),
		history:   make(map[uuid.UUID][]domain.OrderStatus),
	}
}

func (l *memLedger) CreateOrder(ctx context.Context, p domain.NewOrder) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.createErr != nil {
		return nil, l.createErr
	}
	if _, ok := l.bySession[p.PaymentSessionID]; ok {
		return nil, domain.ErrSessionExists
	}
	o := &domain.Order{
		ID:                  uuid.New(),
		PaymentSessionID:    p.PaymentSessionID,
		BuyerEmail:          p.BuyerEmail,
		PackageID:           p.PackageID,
		PackageName:         p.PackageName,
		CountryCode:         p.CountryCode,
		CountryTitle:        p.CountryTitle,
		DataAmount:          p.DataAmount,
		ValidityDays:        p.ValidityDays,
		PriceCents:          p.PriceCents,
		NetCostCents:        p.NetCostCents,
		LoyaltyCreditsCents: p.LoyaltyCreditsCents,
		OwnerUserID:         p.OwnerUserID,
		Status:              domain.OrderStatusPendingPayment,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	l.bySession[p.PaymentSessionID] = o
	l.history[o.ID] = []domain.OrderStatus{o.Status}
	cp := *o
	return &cp, nil
}

func (l *memLedger) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.bySession[sessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (l *memLedger) ClaimForProcessing(ctx context.Context, sessionID string, paidAt time.Time) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.bySession[sessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPendingPayment {
		return nil, domain.ErrDuplicateDelivery
	}
	o.PaidAt = &paidAt
	l.moveTo(o, domain.OrderStatusProcessing)
	cp := *o
	return &cp, nil
}

func (l *memLedger) MarkCompleted(ctx context.Context, id uuid.UUID, a domain.Artifact, at time.Time) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.markCompleteCalls++
	if l.markCompleteErr != nil {
		return nil, l.markCompleteErr
	}
	if l.markCompleteBlips > 0 {
		l.markCompleteBlips--
		return nil, errBlip
	}
	o, err := l.transitionable(id, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	o.Artifact = a
	o.CompletedAt = &at
	l.moveTo(o, domain.OrderStatusCompleted)
	cp := *o
	return &cp, nil
}

func (l *memLedger) MarkFailed(ctx context.Context, id uuid.UUID, msg string) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.markFailedCalls++
	if l.markFailedErr != nil {
		return nil, l.markFailedErr
	}
	if l.markFailedBlips > 0 {
		l.markFailedBlips--
		return nil, errBlip
	}
	o, err := l.transitionable(id, domain.OrderStatusFailed)
	if err != nil {
		return nil, err
	}
	o.ErrorMessage = msg
	l.moveTo(o, domain.OrderStatusFailed)
	cp := *o
	return &cp, nil
}

func (l *memLedger) transitionable(id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	for _, o := range l.bySession {
		if o.ID != id {
			continue
		}
		if !o.Status.CanTransitionTo(next) {
			return nil, domain.ErrIllegalTransition
		}
		return o, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (l *memLedger) moveTo(o *domain.Order, next domain.OrderStatus) {
	o.Status = next
	o.UpdatedAt = time.Now()
	l.history[o.ID] = append(l.history[o.ID], next)
}

func (l *memLedger) ListStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int32) ([]domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Order
	for _, o := range l.bySession {
		if o.Status == domain.OrderStatusProcessing && o.UpdatedAt.Before(claimedBefore) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) ListOrdersForOwner(ctx context.Context, userID, email string) ([]domain.Order, error) {
	return l.list(func(o *domain.Order) bool {
		return (userID != "" && o.OwnerUserID == userID) || strings.EqualFold(o.BuyerEmail, email)
	}), nil
}

func (l *memLedger) ListOrdersByLookup(ctx context.Context, code string) ([]domain.Order, error) {
	return l.list(func(o *domain.Order) bool {
		return o.Artifact.SupplierOrderCode == code || strings.EqualFold(o.BuyerEmail, code)
	}), nil
}

func (l *memLedger) list(match func(*domain.Order) bool) []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Order
	for _, o := range l.bySession {
		if o.Status.VisibleToBuyer() && match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// seed inserts an order directly in the given status.
func (l *memLedger) seed(o domain.Order) *domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	cp := o
	l.bySession[o.PaymentSessionID] = &cp
	l.history[o.ID] = []domain.OrderStatus{o.Status}
	return &o
}

func (l *memLedger) statusHistory(id uuid.UUID) []domain.OrderStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.OrderStatus(nil), l.history[id]...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
