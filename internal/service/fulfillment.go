package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/events"
	"github.com/dukerupert/wander/internal/supplier"
	"github.com/dukerupert/wander/internal/telemetry"
)

// maxErrorMessageLen bounds the failure text stored on an order.
const maxErrorMessageLen = 500

// FulfillmentOutcome describes what a delivery of a paid-session event did.
type FulfillmentOutcome int

const (
	// OutcomeCompleted: this delivery claimed the order and provisioned it.
	OutcomeCompleted FulfillmentOutcome = iota
	// OutcomeFailed: this delivery claimed the order and the supplier failed.
	OutcomeFailed
	// OutcomeDuplicate: another delivery already claimed the order.
	OutcomeDuplicate
	// OutcomeUnknownSession: no order exists for the session.
	OutcomeUnknownSession
)

func (o FulfillmentOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUnknownSession:
		return "unknown_session"
	}
	return "unknown"
}

// PaidSession is a verified successful payment for a checkout session.
type PaidSession struct {
	SessionID string
	PaidAt    time.Time
	Metadata  map[string]string
}

// StaleProcessingMessage is recorded on orders that were claimed but never
// reached a terminal state.
const StaleProcessingMessage = "fulfillment interrupted before completion was recorded; check supplier orders before refunding"

// FulfillmentConfig bounds how hard a claimed order is pushed to a terminal
// state. Zero values take the defaults.
type FulfillmentConfig struct {
	// WriteAttempts is how many times a terminal ledger write is tried.
	WriteAttempts int
	// WriteBackoff is the wait before the second attempt, doubled after each.
	WriteBackoff time.Duration
	// StaleAfter is how long an order may sit in processing before a
	// redelivery or sweep fails it. Must exceed the supplier timeout.
	StaleAfter time.Duration
	// SweepBatch caps the orders failed by one sweep.
	SweepBatch int32
}

func (c FulfillmentConfig) withDefaults() FulfillmentConfig {
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = 5
	}
	if c.WriteBackoff < 0 {
		c.WriteBackoff = 0
	} else if c.WriteBackoff == 0 {
		c.WriteBackoff = 200 * time.Millisecond
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Minute
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	return c
}

// FulfillmentService turns paid sessions into provisioned orders, exactly
// once per session.
type FulfillmentService struct {
	ledger      domain.OrderLedger
	provisioner supplier.Provisioner
	publisher   events.Publisher
	config      FulfillmentConfig
	logger      *slog.Logger
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewFulfillmentService creates a new FulfillmentService instance.
// publisher may be nil, in which case no events are emitted.
func NewFulfillmentService(ledger domain.OrderLedger, provisioner supplier.Provisioner, publisher events.Publisher, config FulfillmentConfig, logger *slog.Logger) *FulfillmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &FulfillmentService{
		ledger:      ledger,
		provisioner: provisioner,
		publisher:   publisher,
		config:      config.withDefaults(),
		logger:      logger.With("service", "fulfillment"),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// FulfillPaidSession drives the order for a paid session from
// pending_payment through processing to completed or failed.
//
// A supplier failure is recorded on the order and reported as OutcomeFailed
// with a nil error. A non-nil error means the ledger could not be read or
// written even after retries, and the delivery should be retried by the
// processor. A redelivery that finds the order stuck in processing past
// StaleAfter fails it.
func (s *FulfillmentService) FulfillPaidSession(ctx context.Context, paid PaidSession) (FulfillmentOutcome, *domain.Order, error) {
	const op = "fulfillment.fulfill"

	logger := s.logger.With("session_id", paid.SessionID)

	paidAt := paid.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	order, err := s.ledger.ClaimForProcessing(ctx, paid.SessionID, paidAt)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		logger.WarnContext(ctx, "fulfillment: paid session has no order",
			"email", paid.Metadata[billing.MetaEmail],
			"package_id", paid.Metadata[billing.MetaPackageID],
		)
		return OutcomeUnknownSession, nil, nil
	case errors.Is(err, domain.ErrDuplicateDelivery):
		return s.redelivered(ctx, paid.SessionID, logger)
	case err != nil:
		telemetry.CaptureFulfillmentError(ctx, err, paid.SessionID, "claim")
		return 0, nil, domain.Internal(err, op, "failed to claim order")
	}

	// Once claimed the order must reach a terminal state even if the
	// webhook request goes away.
	ctx = context.WithoutCancel(ctx)
	logger = logger.With("order_id", order.ID)

	if pkg := paid.Metadata[billing.MetaPackageID]; pkg != "" && pkg != order.PackageID {
		logger.WarnContext(ctx, "fulfillment: session metadata package differs from order",
			"metadata_package_id", pkg,
			"order_package_id", order.PackageID,
		)
	}

	start := s.now()
	artifact, provErr := s.provisioner.Provision(ctx, order.PackageID)
	if provErr == nil && (artifact == nil || !artifact.Complete()) {
		provErr = supplier.ErrProvisioning
	}

	if provErr != nil {
		observeProvisioning("failed", s.now().Sub(start))
		logger.ErrorContext(ctx, "fulfillment: provisioning failed", "error", provErr)
		telemetry.CaptureFulfillmentError(ctx, provErr, paid.SessionID, "provision")

		message := truncateMessage(provErr.Error())
		failed, err := s.writeTerminal(ctx, logger, "mark_failed", func(ctx context.Context) (*domain.Order, error) {
			return s.ledger.MarkFailed(ctx, order.ID, message)
		})
		if err != nil {
			telemetry.CaptureFulfillmentError(ctx, err, paid.SessionID, "mark_failed")
			return 0, nil, domain.Internal(err, op, "failed to record provisioning failure")
		}
		if telemetry.Business != nil {
			telemetry.Business.OrdersFailed.Inc()
		}
		return OutcomeFailed, failed, nil
	}

	completedAt := s.now()
	completed, err := s.writeTerminal(ctx, logger, "mark_completed", func(ctx context.Context) (*domain.Order, error) {
		return s.ledger.MarkCompleted(ctx, order.ID, *artifact, completedAt)
	})
	if err != nil {
		// The supplier has issued an eSIM that the ledger does not know
		// about; this needs manual reconciliation.
		logger.ErrorContext(ctx, "fulfillment: provisioned but failed to record completion",
			"supplier_order_id", artifact.SupplierOrderID,
			"supplier_order_code", artifact.SupplierOrderCode,
			"iccid", artifact.ICCID,
			"error", err,
		)
		telemetry.CaptureFulfillmentError(ctx, err, paid.SessionID, "mark_completed")
		return 0, nil, domain.Internal(err, op, "failed to record completed order")
	}

	observeProvisioning("completed", s.now().Sub(start))
	if telemetry.Business != nil {
		telemetry.Business.OrdersCompleted.Inc()
	}
	logger.InfoContext(ctx, "fulfillment: order completed",
		"supplier_order_code", completed.Artifact.SupplierOrderCode,
	)

	s.publishCompleted(ctx, completed, logger)
	return OutcomeCompleted, completed, nil
}

// redelivered handles a delivery whose claim found the order already past
// pending_payment. An order left in processing past StaleAfter is failed so
// it cannot stay there forever; anything else is a plain duplicate.
func (s *FulfillmentService) redelivered(ctx context.Context, sessionID string, logger *slog.Logger) (FulfillmentOutcome, *domain.Order, error) {
	order, err := s.ledger.GetOrderBySession(ctx, sessionID)
	if err != nil || !s.isStale(order) {
		logger.InfoContext(ctx, "fulfillment: duplicate delivery ignored")
		return OutcomeDuplicate, nil, nil
	}

	failed, err := s.failStale(context.WithoutCancel(ctx), order, logger.With("order_id", order.ID))
	if err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return OutcomeDuplicate, nil, nil
		}
		telemetry.CaptureFulfillmentError(ctx, err, sessionID, "fail_stale")
		return 0, nil, domain.Internal(err, "fulfillment.redelivered", "failed to fail stale order")
	}
	return OutcomeFailed, failed, nil
}

// SweepStaleProcessing fails every order that has sat in processing longer
// than StaleAfter and returns how many it failed. It is safe to run while
// deliveries are in flight.
func (s *FulfillmentService) SweepStaleProcessing(ctx context.Context) (int, error) {
	const op = "fulfillment.sweep"

	stale, err := s.ledger.ListStaleProcessing(ctx, s.now().Add(-s.config.StaleAfter), s.config.SweepBatch)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to list stale orders")
	}

	swept := 0
	for i := range stale {
		order := &stale[i]
		logger := s.logger.With("session_id", order.PaymentSessionID, "order_id", order.ID)
		if _, err := s.failStale(ctx, order, logger); err != nil {
			if errors.Is(err, domain.ErrIllegalTransition) {
				continue
			}
			telemetry.CaptureFulfillmentError(ctx, err, order.PaymentSessionID, "fail_stale")
			return swept, domain.Internal(err, op, "failed to fail stale order")
		}
		swept++
	}
	return swept, nil
}

func (s *FulfillmentService) isStale(order *domain.Order) bool {
	return order.Status == domain.OrderStatusProcessing &&
		!order.UpdatedAt.IsZero() &&
		s.now().Sub(order.UpdatedAt) > s.config.StaleAfter
}

func (s *FulfillmentService) failStale(ctx context.Context, order *domain.Order, logger *slog.Logger) (*domain.Order, error) {
	if !order.Status.CanTransitionTo(domain.OrderStatusFailed) {
		return nil, domain.ErrIllegalTransition
	}

	failed, err := s.writeTerminal(ctx, logger, "fail_stale", func(ctx context.Context) (*domain.Order, error) {
		return s.ledger.MarkFailed(ctx, order.ID, StaleProcessingMessage)
	})
	if err != nil {
		return nil, err
	}

	logger.ErrorContext(ctx, "fulfillment: stale processing order failed",
		"claimed_at", order.UpdatedAt,
		"package_id", order.PackageID,
	)
	telemetry.CaptureFulfillmentError(ctx, errors.New(StaleProcessingMessage), order.PaymentSessionID, "stale")
	if telemetry.Business != nil {
		telemetry.Business.OrdersFailed.Inc()
	}
	return failed, nil
}

// writeTerminal retries a processing -> terminal write with exponential
// backoff. State errors from the ledger are returned at once.
func (s *FulfillmentService) writeTerminal(ctx context.Context, logger *slog.Logger, stage string, write func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	backoff := s.config.WriteBackoff

	var err error
	for attempt := 1; attempt <= s.config.WriteAttempts; attempt++ {
		var order *domain.Order
		order, err = write(ctx)
		if err == nil {
			return order, nil
		}
		if errors.Is(err, domain.ErrIllegalTransition) || errors.Is(err, domain.ErrOrderNotFound) || domain.ErrorCode(err) == domain.EINVALID {
			return nil, err
		}
		if attempt < s.config.WriteAttempts {
			logger.WarnContext(ctx, "fulfillment: terminal write failed, retrying",
				"stage", stage,
				"attempt", attempt,
				"error", err,
			)
			s.sleep(backoff)
			backoff *= 2
		}
	}
	return nil, err
}

func (s *FulfillmentService) publishCompleted(ctx context.Context, order *domain.Order, logger *slog.Logger) {
	evt, err := events.NewOrderCompleted(order)
	if err == nil {
		err = s.publisher.PublishOrderCompleted(ctx, evt)
	}
	if err != nil {
		logger.WarnContext(ctx, "fulfillment: failed to publish order completed event", "error", err)
	}
}

// truncateMessage makes msg safe for a text column: invalid UTF-8 is
// replaced and the result is cut to maxErrorMessageLen on a rune boundary.
func truncateMessage(msg string) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func observeProvisioning(outcome string, d time.Duration) {
	if telemetry.Business != nil {
		telemetry.Business.ProvisioningDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}
