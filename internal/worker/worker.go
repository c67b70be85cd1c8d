// Package worker consumes fulfillment events in the background.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dukerupert/wander/internal/email"
	"github.com/dukerupert/wander/internal/events"
	"github.com/dukerupert/wander/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Queue group shared by all workers; each event is handled by one member.
	Queue string

	// SendTimeout bounds a single activation email.
	SendTimeout time.Duration

	SupportEmail string
}

// ActivationSender is the slice of email.Service the worker needs.
type ActivationSender interface {
	SendActivation(ctx context.Context, data email.ActivationEmail) error
}

// Worker emails activation details for every completed order.
type Worker struct {
	config Config
	conn   *nats.Conn
	sender ActivationSender
	logger *slog.Logger
}

// NewWorker creates a new event worker
func NewWorker(conn *nats.Conn, sender ActivationSender, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Queue == "" {
		config.Queue = "activation-email"
	}
	if config.SendTimeout == 0 {
		config.SendTimeout = 30 * time.Second
	}

	return &Worker{
		config: config,
		conn:   conn,
		sender: sender,
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// Start subscribes and blocks until the context is cancelled, then drains
// the subscription so in-flight messages finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"subject", events.SubjectOrderCompleted,
		"queue", w.config.Queue,
	)

	sub, err := w.conn.QueueSubscribe(events.SubjectOrderCompleted, w.config.Queue, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.SubjectOrderCompleted, err)
	}

	<-ctx.Done()
	w.logger.Info("worker shutting down")
	if err := sub.Drain(); err != nil {
		w.logger.Warn("failed to drain subscription", "error", err)
	}
	return ctx.Err()
}

// handleMessage never returns an error; a bad message or failed send is
// logged and counted, and the order itself stays completed.
func (w *Worker) handleMessage(ctx context.Context, data []byte) {
	evt, err := events.DecodeOrderCompleted(data)
	if err != nil {
		w.logger.Error("dropping malformed event", "error", err)
		observeActivation("malformed")
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.SendTimeout)
	defer cancel()

	err = w.sender.SendActivation(sendCtx, email.ActivationEmail{
		Email:             evt.Email,
		PackageName:       evt.PackageName,
		CountryTitle:      evt.CountryTitle,
		DataAmount:        evt.DataAmount,
		ValidityDays:      evt.ValidityDays,
		SupplierOrderCode: evt.SupplierOrderCode,
		ICCID:             evt.ICCID,
		QRCodeURL:         evt.QRCodeURL,
		DirectInstallURL:  evt.DirectInstallURL,
		SupportEmail:      w.config.SupportEmail,
	})
	if err != nil {
		w.logger.Error("activation email failed", "order_id", evt.OrderID, "error", err)
		telemetry.CaptureError(ctx, err, map[string]any{"order_id": evt.OrderID})
		observeActivation("error")
		return
	}

	w.logger.Info("activation email sent", "order_id", evt.OrderID, "order_code", evt.SupplierOrderCode)
	observeActivation("sent")
}

func observeActivation(outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.ActivationEmails.WithLabelValues(outcome).Inc()
	}
}
