package eventhandler

import (
	"context"
	"log/slog"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON POINTS AWARDED HANDLER
// Invalidates the cached profile whenever points, achievements, or a purge
// change what the profile query would return. Reads repopulate the cache on
// the next request.
// ═══════════════════════════════════════════════════════════════════════════

// OnPointsAwardedHandler keeps the profile cache coherent with point changes.
type OnPointsAwardedHandler struct {
	cache  gamification.ProfileCache
	logger *slog.Logger
}

// NewOnPointsAwardedHandler creates the handler.
func NewOnPointsAwardedHandler(cache gamification.ProfileCache, logger *slog.Logger) *OnPointsAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPointsAwardedHandler{
		cache:  cache,
		logger: logger.With(slog.String("handler", "on_points_awarded")),
	}
}

// EventTypes implements shared.EventHandler.
func (h *OnPointsAwardedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventPointsAwarded,
		shared.EventLevelUp,
		shared.EventAchievementUnlocked,
		shared.EventUserDataDeleted,
	}
}

// Handle drops the cached profile for the affected user.
func (h *OnPointsAwardedHandler) Handle(ctx context.Context, event shared.Event) error {
	userID := userIDFromEvent(event)
	if userID == "" {
		return nil
	}

	if err := h.cache.Invalidate(ctx, userID); err != nil {
		// Stale cache self-heals when the TTL lapses.
		h.logger.Warn("failed to invalidate profile cache",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	return nil
}

// userIDFromEvent extracts the user ID from any of the subscribed events,
// including payload-only events reconstructed from the wire.
func userIDFromEvent(event shared.Event) string {
	switch e := event.(type) {
	case shared.PointsAwardedEvent:
		return e.UserID
	case shared.LevelUpEvent:
		return e.UserID
	case shared.AchievementUnlockedEvent:
		return e.UserID
	case shared.UserDataDeletedEvent:
		return e.UserID
	}

	if v, ok := event.Payload()["user_id"].(string); ok {
		return v
	}
	return ""
}
