package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newFulfillmentMetrics(promauto.With(reg), "test")

	m.OrdersCompleted.Inc()
	m.WebhookOutcome.WithLabelValues("duplicate").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCompleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookOutcome.WithLabelValues("duplicate")))

	count, err := testutil.GatherAndCount(reg, "test_fulfillment_webhook_outcome_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInitSentry_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cleanup, err := InitSentry(SentryConfig{Enabled: true}, logger)
	require.NoError(t, err)
	cleanup()
	assert.False(t, IsEnabled(), "missing DSN must disable capture")

	// No-ops while disabled.
	CaptureError(context.Background(), errors.New("boom"), nil)
	CaptureFulfillmentError(context.Background(), errors.New("boom"), "cs_1", "provision")
}

func TestHTTPTransport_PassThroughWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &HTTPTransport{}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
