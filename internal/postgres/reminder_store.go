package postgres

import (
	"context"

	"github.com/dukerupert/wander/internal/domain"
	"github.com/dukerupert/wander/internal/repository"
)

// ReminderStore implements domain.ReminderStore using PostgreSQL.
type ReminderStore struct {
	repo repository.Querier
}

var _ domain.ReminderStore = (*ReminderStore)(nil)

func NewReminderStore(repo repository.Querier) *ReminderStore {
	return &ReminderStore{repo: repo}
}

func (s *ReminderStore) UpsertReminder(ctx context.Context, r domain.Reminder) (*domain.Reminder, error) {
	row, err := s.repo.UpsertEsimReminder(ctx, repository.UpsertEsimReminderParams{
		OrderCode:    r.OrderCode,
		Email:        r.Email,
		ArrivalDate:  pgDate(r.ArrivalDate),
		PackageName:  r.PackageName,
		CountryTitle: r.CountryTitle,
	})
	if err != nil {
		return nil, domain.Internal(err, "reminder.upsert", "failed to schedule reminder")
	}

	return &domain.Reminder{
		OrderCode:    row.OrderCode,
		Email:        row.Email,
		ArrivalDate:  row.ArrivalDate.Time,
		PackageName:  row.PackageName,
		CountryTitle: row.CountryTitle,
		Sent:         row.Sent,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}, nil
}
