// Package eventhandler contains domain event handlers wired into the bus.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finpulse/engagement-core/internal/application/command"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK BROKEN HANDLER
// Opens a recovery window whenever a streak breaks, regardless of how the
// break was detected (an incoming action with a too-large gap, or the
// background risk scan). The break site only publishes the event; recovery
// bootstrapping lives here so both paths behave identically.
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakBrokenHandler reacts to streak.broken events.
type OnStreakBrokenHandler struct {
	recoveryHandler *command.InitiateStreakRecoveryHandler
	retrier         *retry.Retrier
	logger          *slog.Logger

	// MinCountForRecovery skips recovery windows for trivially short streaks.
	MinCountForRecovery int
}

// NewOnStreakBrokenHandler creates the handler.
func NewOnStreakBrokenHandler(recoveryHandler *command.InitiateStreakRecoveryHandler, logger *slog.Logger) *OnStreakBrokenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStreakBrokenHandler{
		recoveryHandler: recoveryHandler,
		retrier: retry.OptimisticLockRetrier(func(err error) bool {
			return errors.Is(err, shared.ErrOptimisticLock)
		}),
		logger:              logger.With(slog.String("handler", "on_streak_broken")),
		MinCountForRecovery: 2,
	}
}

// EventTypes implements shared.EventHandler.
func (h *OnStreakBrokenHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventStreakBroken}
}

// Handle opens a recovery for the broken streak.
func (h *OnStreakBrokenHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.StreakBrokenEvent)
	if !ok {
		// Remote events arrive as reconstructed payloads without the
		// concrete type; the originating instance already handled them.
		return nil
	}

	if e.PreviousCount < h.MinCountForRecovery {
		return nil
	}

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := h.recoveryHandler.Handle(ctx, command.InitiateStreakRecoveryCommand{
			UserID:        e.UserID,
			StreakID:      e.StreakID,
			PreviousCount: e.PreviousCount,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrRecoveryAlreadyOpen) {
			return nil
		}
		return fmt.Errorf("on_streak_broken: failed to open recovery: %w", err)
	}

	h.logger.Info("recovery opened for broken streak",
		slog.String("user_id", e.UserID),
		slog.String("streak_id", e.StreakID),
		slog.Int("previous_count", e.PreviousCount),
	)

	return nil
}
