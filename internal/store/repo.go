package store

import (
	"context"
	"errors"
	"time"

	"github.com/kk2215/okan-ai/internal/domain"
)

// ErrNotFound is returned when a profile does not exist.
var ErrNotFound = errors.New("store: not found")

// Repo defines storage operations for user profiles and reminders.
type Repo interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpsertProfile(ctx context.Context, p *domain.UserProfile) error
	DeleteProfile(ctx context.Context, userID string) error

	// ListComplete returns every profile that finished onboarding, for the
	// daily digest.
	ListComplete(ctx context.Context) ([]domain.UserProfile, error)

	AddReminder(ctx context.Context, rem *domain.Reminder) error
	// ListDueReminders returns reminders with due_at <= now.
	ListDueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error)
	// DeleteReminders removes reminders by id. The sweep calls this before
	// pushing so a failed push cannot cause redelivery.
	DeleteReminders(ctx context.Context, ids []string) error

	Close() error
}
