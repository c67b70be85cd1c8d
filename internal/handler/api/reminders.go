package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/handler"
	"github.com/dukerupert/wander/internal/service"
)

// ReminderScheduler records a pre-arrival reminder for an order.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, req service.ReminderRequest) (*domain.Reminder, error)
}

// RemindersHandler serves POST /api/reminders.
type RemindersHandler struct {
	reminders ReminderScheduler
	logger    *slog.Logger
}

// NewRemindersHandler creates a new reminders handler
func NewRemindersHandler(reminders ReminderScheduler, logger *slog.Logger) *RemindersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemindersHandler{
		reminders: reminders,
		logger:    logger,
	}
}

type reminderResponse struct {
	OrderCode   string `json:"orderCode"`
	ArrivalDate string `json:"arrivalDate"`
	Scheduled   bool   `json:"scheduled"`
}

// Schedule upserts the reminder for an order code. Scheduling again replaces
// the arrival date and re-arms the reminder.
func (h *RemindersHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.reminders"

	var req service.ReminderRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	reminder, err := h.reminders.ScheduleReminder(r.Context(), req)
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusCreated, reminderResponse{
		OrderCode:   reminder.OrderCode,
		ArrivalDate: reminder.ArrivalDate.Format("2006-01-02"),
		Scheduled:   true,
	})
}
