package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// ReminderTracker implements streak.ReminderTracker with Redis.
// The cooldown claim is a single SET NX EX, so concurrent scanners on
// different hosts agree on who sends the reminder.
type ReminderTracker struct {
	cache *Cache
}

// NewReminderTracker creates a new ReminderTracker.
func NewReminderTracker(cache *Cache) *ReminderTracker {
	return &ReminderTracker{cache: cache}
}

func reminderKey(userID, streakID string) string {
	return fmt.Sprintf("%s%s:%s", PrefixReminder, userID, streakID)
}

// TryAcquire atomically claims the right to remind about a streak.
// Returns false while a previous claim is still within its cooldown.
func (t *ReminderTracker) TryAcquire(ctx context.Context, userID, streakID string, cooldown time.Duration) (bool, error) {
	ok, err := t.cache.Client().SetNX(ctx, reminderKey(userID, streakID), time.Now().UTC().Format(time.RFC3339), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("reminder_tracker: failed to acquire: %w", err)
	}
	return ok, nil
}

// Clear drops the cooldown claim for a streak.
func (t *ReminderTracker) Clear(ctx context.Context, userID, streakID string) error {
	if err := t.cache.Delete(ctx, reminderKey(userID, streakID)); err != nil {
		return fmt.Errorf("reminder_tracker: failed to clear: %w", err)
	}
	return nil
}
