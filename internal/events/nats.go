package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/wander/internal/telemetry"
)

// Connect dials the NATS server with reconnect logging.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// msgConn is the subset of *nats.Conn used for publishing.
type msgConn interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events as JSON messages. The order ID is sent as
// the Nats-Msg-Id header so JetStream-backed streams can drop duplicates.
type NATSPublisher struct {
	conn   msgConn
	logger *slog.Logger
}

func NewNATSPublisher(conn *nats.Conn, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

func (p *NATSPublisher) PublishOrderCompleted(ctx context.Context, evt *OrderCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode order completed event: %w", err)
	}

	msg := nats.NewMsg(SubjectOrderCompleted)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, evt.OrderID)

	if err := p.conn.PublishMsg(msg); err != nil {
		observePublish(SubjectOrderCompleted, "error")
		return fmt.Errorf("failed to publish %s: %w", SubjectOrderCompleted, err)
	}
	observePublish(SubjectOrderCompleted, "ok")

	p.logger.Debug("event published", "subject", SubjectOrderCompleted, "order_id", evt.OrderID)
	return nil
}

func observePublish(subject, outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues(subject, outcome).Inc()
	}
}
