package storefront

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/wander/internal/handler"
)

// PollConfig bounds the confirmation page's status polling.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// ConfirmationHandler displays the post-checkout confirmation page
type ConfirmationHandler struct {
	renderer     *handler.Renderer
	poll         PollConfig
	supportEmail string
	logger       *slog.Logger
}

// NewConfirmationHandler creates a new confirmation handler
func NewConfirmationHandler(renderer *handler.Renderer, poll PollConfig, supportEmail string, logger *slog.Logger) *ConfirmationHandler {
	if poll.Interval <= 0 {
		poll.Interval = 2 * time.Second
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = 30
	}
	return &ConfirmationHandler{
		renderer:     renderer,
		poll:         poll,
		supportEmail: supportEmail,
		logger:       logger,
	}
}

// ServeHTTP handles GET /checkout/confirmation?session_id=...
//
// The order is provisioned by the webhook, usually after the buyer lands
// here, so the page renders immediately and polls the status endpoint
// from the browser.
func (h *ConfirmationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		h.logger.InfoContext(r.Context(), "confirmation page opened without session id")
	}

	data := map[string]any{
		"SessionID":       sessionID,
		"StatusURL":       "/api/orders/session/" + url.PathEscape(sessionID),
		"PollIntervalMs":  h.poll.Interval.Milliseconds(),
		"PollMaxAttempts": h.poll.MaxAttempts,
		"SupportEmail":    h.supportEmail,
	}

	w.Header().Set("Cache-Control", "no-store")
	h.renderer.RenderHTTP(w, "storefront/confirmation", data)
}
