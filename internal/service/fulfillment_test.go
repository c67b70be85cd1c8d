package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/events"
	"github.com/dukerupert/wander/internal/supplier"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.OrderCompleted
	err    error
}

func (p *recordingPublisher) PublishOrderCompleted(ctx context.Context, evt *events.OrderCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

type fulfillmentFixture struct {
	ledger      *memLedger
	provisioner *supplier.MockProvisioner
	publisher   *recordingPublisher
	svc         *FulfillmentService
	sessionID   string
	metadata    map[string]string
}

// newFulfillmentFixture runs a real checkout so the order and metadata are
// exactly what the webhook would see.
func newFulfillmentFixture(t *testing.T) *fulfillmentFixture {
	t.Helper()

	ledger := newMemLedger()
	provider := billing.NewMockProvider()
	checkout := newTestCheckoutService(ledger, provider)

	result, err := checkout.StartCheckout(context.Background(), validCheckoutRequest())
	require.NoError(t, err)

	f := &fulfillmentFixture{
		ledger:      ledger,
		provisioner: supplier.NewMockProvisioner(),
		publisher:   &recordingPublisher{},
		sessionID:   result.SessionID,
		metadata:    provider.Sessions[result.SessionID].Metadata,
	}
	f.svc = NewFulfillmentService(f.ledger, f.provisioner, f.publisher, FulfillmentConfig{}, testLogger())
	f.svc.sleep = func(time.Duration) {}
	return f
}

func (f *fulfillmentFixture) paid() PaidSession {
	return PaidSession{SessionID: f.sessionID, PaidAt: time.Now(), Metadata: f.metadata}
}

func TestFulfillment_PaidSessionCompletes(t *testing.T) {
	f := newFulfillmentFixture(t)

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.NotEmpty(t, order.Artifact.ICCID)
	assert.True(t, order.Artifact.Complete())
	assert.Empty(t, order.ErrorMessage)
	assert.NotNil(t, order.PaidAt)
	assert.NotNil(t, order.CompletedAt)

	assert.Equal(t, []string{"Provision(merhaba-7days-1gb)"}, f.provisioner.CallLog())

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, order.ID.String(), f.publisher.events[0].OrderID)
	assert.Equal(t, order.Artifact.ICCID, f.publisher.events[0].ICCID)

	assert.Equal(t, []domain.OrderStatus{
		domain.OrderStatusPendingPayment,
		domain.OrderStatusProcessing,
		domain.OrderStatusCompleted,
	}, f.ledger.statusHistory(order.ID))
}

func TestFulfillment_SequentialRedeliveryIsNoop(t *testing.T) {
	f := newFulfillmentFixture(t)

	_, first, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Nil(t, order)
	assert.Equal(t, 1, f.provisioner.Calls())

	stored, err := f.ledger.GetOrderBySession(context.Background(), f.sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
	assert.Equal(t, first.Artifact, stored.Artifact)
}

func TestFulfillment_ConcurrentDeliveriesProvisionOnce(t *testing.T) {
	f := newFulfillmentFixture(t)

	// Slow the supplier so every goroutine is in flight while the first
	// claim holds the order.
	f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
		time.Sleep(20 * time.Millisecond)
		return &domain.Artifact{
			SupplierOrderID:   "9666",
			SupplierOrderCode: "20260101-000001",
			ICCID:             "8944465400000267221",
			QRCodeURL:         "https://example.com/qr.png",
			DirectInstallURL:  "https://esimsetup.apple.com/x",
		}, nil
	}

	const deliveries = 16
	outcomes := make([]FulfillmentOutcome, deliveries)
	errs := make([]error, deliveries)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i], _, errs[i] = f.svc.FulfillPaidSession(context.Background(), f.paid())
		}(i)
	}
	close(start)
	wg.Wait()

	completed, duplicates := 0, 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case OutcomeCompleted:
			completed++
		case OutcomeDuplicate:
			duplicates++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, deliveries-1, duplicates)
	assert.Equal(t, 1, f.provisioner.Calls())

	order, err := f.ledger.GetOrderBySession(context.Background(), f.sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Len(t, f.ledger.statusHistory(order.ID), 3)
}

func TestFulfillment_SupplierFailureRecordsFailedOrder(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
		return nil, &supplier.APIError{Operation: "create_order", StatusCode: 422, Message: "package is out of stock"}
	}

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err, "supplier failures are absorbed into the order")
	assert.Equal(t, OutcomeFailed, outcome)

	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Contains(t, order.ErrorMessage, "out of stock")
	assert.Equal(t, domain.Artifact{}, order.Artifact)
	assert.Nil(t, order.CompletedAt)
	assert.Empty(t, f.publisher.events)

	// Terminal: a redelivery does not retry the supplier.
	outcome, _, err = f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, f.provisioner.Calls())
}

func TestFulfillment_IncompleteArtifactIsAFailure(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
		return &domain.Artifact{SupplierOrderID: "1", ICCID: "894400"}, nil
	}

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.NotEmpty(t, order.ErrorMessage)
	assert.Empty(t, order.Artifact.SupplierOrderID)
}

func TestFulfillment_UnknownSessionIsAcknowledged(t *testing.T) {
	f := newFulfillmentFixture(t)

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), PaidSession{
		SessionID: "cs_test_unknown",
		Metadata:  f.metadata,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownSession, outcome)
	assert.Nil(t, order)
	assert.Zero(t, f.provisioner.Calls())
	assert.Len(t, f.ledger.bySession, 1, "no row is created for an unknown session")
}

func TestFulfillment_PersistenceErrorsPropagate(t *testing.T) {
	t.Run("mark failed", func(t *testing.T) {
		f := newFulfillmentFixture(t)
		f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
			return nil, errors.New("timeout")
		}
		f.ledger.markFailedErr = errors.New("db down")

		_, _, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
		require.Error(t, err)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	})

	t.Run("mark completed", func(t *testing.T) {
		f := newFulfillmentFixture(t)
		f.ledger.markCompleteErr = errors.New("db down")

		_, _, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
		require.Error(t, err)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
		assert.Empty(t, f.publisher.events)
		assert.Equal(t, f.svc.config.WriteAttempts, f.ledger.markCompleteCalls)
	})
}

func TestFulfillment_TransientTerminalWritesAreRetried(t *testing.T) {
	t.Run("completion", func(t *testing.T) {
		f := newFulfillmentFixture(t)
		f.ledger.markCompleteBlips = 2

		var slept []time.Duration
		f.svc.sleep = func(d time.Duration) { slept = append(slept, d) }

		outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
		require.NoError(t, err)
		assert.Equal(t, OutcomeCompleted, outcome)
		assert.Equal(t, domain.OrderStatusCompleted, order.Status)
		assert.Equal(t, 3, f.ledger.markCompleteCalls)
		assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, slept)
		assert.Equal(t, 1, f.provisioner.Calls())
		assert.Len(t, f.publisher.events, 1)
	})

	t.Run("failure", func(t *testing.T) {
		f := newFulfillmentFixture(t)
		f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
			return nil, errors.New("timeout")
		}
		f.ledger.markFailedBlips = 1

		outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, outcome)
		assert.Equal(t, domain.OrderStatusFailed, order.Status)
		assert.Equal(t, 2, f.ledger.markFailedCalls)
	})
}

func TestFulfillment_RedeliveryFailsOrderStuckInProcessing(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.ledger.markCompleteErr = errors.New("db down")

	_, _, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.Error(t, err)

	f.ledger.markCompleteErr = nil

	// Within StaleAfter the original delivery may still be running.
	outcome, _, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	stored, err := f.ledger.GetOrderBySession(context.Background(), f.sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Status)

	f.svc.now = func() time.Time { return time.Now().Add(f.svc.config.StaleAfter + time.Minute) }

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Equal(t, StaleProcessingMessage, order.ErrorMessage)
	assert.Equal(t, 1, f.provisioner.Calls(), "the supplier is never called twice")

	assert.Equal(t, []domain.OrderStatus{
		domain.OrderStatusPendingPayment,
		domain.OrderStatusProcessing,
		domain.OrderStatusFailed,
	}, f.ledger.statusHistory(order.ID))

	// Terminal now: further deliveries are plain duplicates.
	outcome, _, err = f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestFulfillment_SweepStaleProcessing(t *testing.T) {
	ledger := newMemLedger()
	svc := NewFulfillmentService(ledger, supplier.NewMockProvisioner(), nil, FulfillmentConfig{StaleAfter: 10 * time.Minute}, testLogger())
	svc.sleep = func(time.Duration) {}

	old := time.Now().Add(-time.Hour)
	stale := ledger.seed(domain.Order{PaymentSessionID: "cs_stale", Status: domain.OrderStatusProcessing, UpdatedAt: old})
	fresh := ledger.seed(domain.Order{PaymentSessionID: "cs_fresh", Status: domain.OrderStatusProcessing})
	done := ledger.seed(domain.Order{PaymentSessionID: "cs_done", Status: domain.OrderStatusCompleted, UpdatedAt: old})
	unpaid := ledger.seed(domain.Order{PaymentSessionID: "cs_unpaid", Status: domain.OrderStatusPendingPayment, UpdatedAt: old})

	swept, err := svc.SweepStaleProcessing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	statusOf := func(session string) domain.OrderStatus {
		o, err := ledger.GetOrderBySession(context.Background(), session)
		require.NoError(t, err)
		return o.Status
	}
	assert.Equal(t, domain.OrderStatusFailed, statusOf(stale.PaymentSessionID))
	assert.Equal(t, domain.OrderStatusProcessing, statusOf(fresh.PaymentSessionID))
	assert.Equal(t, domain.OrderStatusCompleted, statusOf(done.PaymentSessionID))
	assert.Equal(t, domain.OrderStatusPendingPayment, statusOf(unpaid.PaymentSessionID))

	swept, err = svc.SweepStaleProcessing(context.Background())
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestFulfillment_NonUTF8SupplierErrorIsStored(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.provisioner.ProvisionFunc = func(ctx context.Context, packageID string) (*domain.Artifact, error) {
		return nil, &supplier.APIError{Operation: "create_order", StatusCode: 502, Message: "\xff\xfe gateway"}
	}

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, utf8.ValidString(order.ErrorMessage))
	assert.Contains(t, order.ErrorMessage, "gateway")
}

func TestFulfillment_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.publisher.err = errors.New("nats: no servers available")

	outcome, order, err := f.svc.FulfillPaidSession(context.Background(), f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
}

func TestFulfillment_CancelledRequestStillReachesTerminalState(t *testing.T) {
	f := newFulfillmentFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.provisioner.ProvisionFunc = func(pctx context.Context, packageID string) (*domain.Artifact, error) {
		cancel()
		if err := pctx.Err(); err != nil {
			return nil, err
		}
		return &domain.Artifact{
			SupplierOrderID:   "1",
			SupplierOrderCode: "c",
			ICCID:             "i",
			QRCodeURL:         "q",
			DirectInstallURL:  "d",
		}, nil
	}

	outcome, _, err := f.svc.FulfillPaidSession(ctx, f.paid())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short"))

	long := strings.Repeat("x", maxErrorMessageLen+10)
	assert.Len(t, truncateMessage(long), maxErrorMessageLen)

	multibyte := strings.Repeat("x", maxErrorMessageLen-1) + "é"
	got := truncateMessage(multibyte)
	assert.Len(t, got, maxErrorMessageLen-1)

	short := truncateMessage("bad \xff\xfe bytes")
	assert.True(t, utf8.ValidString(short))
	assert.Equal(t, "bad \uFFFD bytes", short)

	prefix := "supplier create_order failed (status 502): "
	got = truncateMessage(prefix + strings.Repeat("\xff", 600))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, prefix+"\uFFFD", got)

	mixed := truncateMessage(strings.Repeat("é\xff", 400))
	assert.True(t, utf8.ValidString(mixed))
	assert.LessOrEqual(t, len(mixed), maxErrorMessageLen)
	assert.Greater(t, len(mixed), maxErrorMessageLen-4)
}

func TestFulfillmentOutcome_String(t *testing.T) {
	assert.Equal(t, "completed", OutcomeCompleted.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "duplicate", OutcomeDuplicate.String())
	assert.Equal(t, "unknown_session", OutcomeUnknownSession.String())
}
