package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/notification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
	"github.com/finpulse/engagement-core/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE REACHED HANDLER
// Turns a milestone event into a celebration payload and hands it to the
// notification scheduler. Delivery is best-effort with retries: a missed
// confetti animation must never fail the action that earned it.
// ═══════════════════════════════════════════════════════════════════════════

// OnMilestoneReachedHandler reacts to celebration.milestone_reached events.
type OnMilestoneReachedHandler struct {
	streakRepo streak.Repository
	notifier   notification.Scheduler
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewOnMilestoneReachedHandler creates the handler.
func NewOnMilestoneReachedHandler(streakRepo streak.Repository, notifier notification.Scheduler, logger *slog.Logger) *OnMilestoneReachedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notification.NewNoopScheduler()
	}
	return &OnMilestoneReachedHandler{
		streakRepo: streakRepo,
		notifier:   notifier,
		retrier:    retry.NotificationRetrier(),
		logger:     logger.With(slog.String("handler", "on_milestone_reached")),
	}
}

// EventTypes implements shared.EventHandler.
func (h *OnMilestoneReachedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventMilestoneReached}
}

// Handle schedules the celebration for the crossed milestone.
func (h *OnMilestoneReachedHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.MilestoneReachedEvent)
	if !ok {
		return nil
	}

	// A milestone without a streak is a goal-progress threshold; its
	// message speaks in percent, not in days.
	message := gamification.MilestoneMessage(e.Threshold)
	if e.StreakID == "" {
		message = gamification.GoalMilestoneMessage(e.Threshold)
	}

	celebration := gamification.Celebration{
		UserID:      e.UserID,
		Milestone:   e.Threshold,
		BonusPoints: e.BonusPoints,
		Intensity:   gamification.CelebrationIntensity(e.Intensity),
		Message:     message,
		OccurredAt:  e.OccurredAt(),
	}
	celebration.DurationMs = celebration.Intensity.Duration().Milliseconds()

	// The event carries no streak type; look it up for the payload.
	if e.StreakID != "" {
		if s, err := h.streakRepo.GetByID(ctx, e.StreakID); err == nil {
			celebration.StreakType = s.Type
		}
	}

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return retry.Retryable(h.notifier.ScheduleCelebration(ctx, celebration))
	})
	if err != nil {
		return fmt.Errorf("on_milestone_reached: failed to schedule celebration: %w", err)
	}

	h.logger.Debug("celebration scheduled",
		slog.String("user_id", e.UserID),
		slog.Int("milestone", e.Threshold),
		slog.String("intensity", e.Intensity),
	)

	return nil
}
