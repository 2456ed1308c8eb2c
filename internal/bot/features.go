package bot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kk2215/okan-ai/internal/domain"
)

// handleComplete routes free text once setup is done. Handlers are tried in
// fixed priority order and the first match wins: reminder intent, meal
// suggestion, generic acknowledgement.
func (m *Machine) handleComplete(p *domain.UserProfile, text string, now time.Time) Result {
	if intent, ok := domain.ExtractReminder(text, now); ok {
		rem := &domain.Reminder{
			ID:        uuid.NewString(),
			UserID:    p.UserID,
			DueAt:     intent.DueAt,
			Task:      intent.Task,
			CreatedAt: now.UTC(),
		}
		when := intent.DueAt.In(domain.JST()).Format("2006/01/02 15:04")
		return Result{
			Replies:     []string{fmt.Sprintf(reminderSavedFmt, when, intent.Task)},
			NewReminder: rem,
		}
	}

	if domain.IsMealRequest(text) {
		return reply(domain.SuggestMeal(now, m.rng))
	}

	return reply(fallbackText)
}
