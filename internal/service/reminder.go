package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/telemetry"
)

// ReminderRequest schedules a pre-trip reminder for an order.
type ReminderRequest struct {
	Email        string `json:"email" validate:"required,email"`
	OrderCode    string `json:"orderCode" validate:"required,max=64"`
	ArrivalDate  string `json:"arrivalDate" validate:"required,datetime=2006-01-02"`
	PackageName  string `json:"packageName" validate:"max=255"`
	CountryTitle string `json:"countryTitle" validate:"max=128"`
}

// ReminderService schedules reminders. It never touches order state.
type ReminderService struct {
	store  domain.ReminderStore
	logger *slog.Logger
}

// NewReminderService creates a new ReminderService instance.
func NewReminderService(store domain.ReminderStore, logger *slog.Logger) *ReminderService {
	return &ReminderService{
		store:  store,
		logger: logger.With("service", "reminder"),
	}
}

// ScheduleReminder upserts the reminder for req.OrderCode.
func (s *ReminderService) ScheduleReminder(ctx context.Context, req ReminderRequest) (*domain.Reminder, error) {
	const op = "reminders.schedule"

	req.Email = strings.TrimSpace(req.Email)
	req.OrderCode = strings.TrimSpace(req.OrderCode)
	req.ArrivalDate = strings.TrimSpace(req.ArrivalDate)

	if err := validateStruct(op, req); err != nil {
		return nil, err
	}

	arrival, err := time.Parse(time.DateOnly, req.ArrivalDate)
	if err != nil {
		return nil, domain.NewValidationError(op, "arrivalDate", "must be a date in 2006-01-02 format")
	}

	reminder, err := s.store.UpsertReminder(ctx, domain.Reminder{
		OrderCode:    req.OrderCode,
		Email:        req.Email,
		ArrivalDate:  arrival,
		PackageName:  req.PackageName,
		CountryTitle: req.CountryTitle,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "reminder: failed to schedule", "order_code", req.OrderCode, "error", err)
		return nil, domain.Internal(err, op, "failed to schedule reminder")
	}

	if telemetry.Business != nil {
		telemetry.Business.RemindersScheduled.Inc()
	}
	s.logger.InfoContext(ctx, "reminder: scheduled", "order_code", req.OrderCode, "arrival_date", req.ArrivalDate)
	return reminder, nil
}
