package storefront

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/wander/internal/handler"
)

func newTestHandler(t *testing.T, poll PollConfig) *ConfirmationHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := handler.NewRenderer(logger)
	require.NoError(t, err)
	return NewConfirmationHandler(renderer, poll, "help@wander.example", logger)
}

func TestConfirmationHandler_RendersPoller(t *testing.T) {
	h := newTestHandler(t, PollConfig{Interval: 1500 * time.Millisecond, MaxAttempts: 20})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/confirmation?session_id=cs_test_abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data-status-url="/api/orders/session/cs_test_abc"`)
	assert.Contains(t, body, `data-interval-ms="1500"`)
	assert.Contains(t, body, `data-max-attempts="20"`)
	assert.Contains(t, body, "AbortController")
	assert.Contains(t, body, "pagehide")
	assert.Contains(t, body, "Still processing")
}

func TestConfirmationHandler_Defaults(t *testing.T) {
	h := newTestHandler(t, PollConfig{})

	assert.Equal(t, 2*time.Second, h.poll.Interval)
	assert.Equal(t, 30, h.poll.MaxAttempts)
}

func TestConfirmationHandler_MissingSession(t *testing.T) {
	h := newTestHandler(t, PollConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/confirmation", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "We could not find your order")
	assert.Contains(t, body, "help@wander.example")
	assert.NotContains(t, body, "AbortController")
}

func TestConfirmationHandler_EscapesSessionID(t *testing.T) {
	h := newTestHandler(t, PollConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, `/checkout/confirmation?session_id=%22%3E%3Cscript%3E`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"><script>`)
}
