package domain

import (
	"context"
	"time"
)

// Reminder is a follow-up notification scheduled for an order, one per order code.
type Reminder struct {
	OrderCode    string
	Email        string
	ArrivalDate  time.Time
	PackageName  string
	CountryTitle string
	Sent         bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReminderStore persists reminders keyed by order code.
type ReminderStore interface {
	// UpsertReminder creates the reminder or replaces the existing one for
	// the same order code, resetting its sent flag.
	UpsertReminder(ctx context.Context, reminder Reminder) (*Reminder, error)
}
