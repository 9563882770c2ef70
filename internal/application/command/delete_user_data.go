package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE USER DATA COMMAND
// Full engagement-data purge for one user (GDPR/PIPEDA erasure). This is the
// only path that removes streak history and the points audit log.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteUserDataCommand contains the data to purge a user.
type DeleteUserDataCommand struct {
	// UserID is the user to purge.
	UserID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DeleteUserDataCommand) Validate() error {
	if !shared.IsValidUserID(c.UserID) {
		return fmt.Errorf("delete_user_data: %w", shared.ErrInvalidID)
	}
	return nil
}

// DeleteUserDataResult contains the result of the purge.
type DeleteUserDataResult struct {
	// UserID is the purged user.
	UserID string

	// DeletedAt is when the purge completed.
	DeletedAt time.Time
}

// DeleteUserDataHandler handles the DeleteUserDataCommand.
type DeleteUserDataHandler struct {
	profileRepo     gamification.ProfileRepository
	historyRepo     gamification.HistoryRepository
	achievementRepo gamification.AchievementRepository
	streakRepo      streak.Repository
	recoveryRepo    streak.RecoveryRepository
	leaderboard     streak.LeaderboardCache
	cache           gamification.ProfileCache
	publisher       shared.EventPublisher
	logger          *slog.Logger
}

// NewDeleteUserDataHandler creates a new DeleteUserDataHandler.
func NewDeleteUserDataHandler(
	profileRepo gamification.ProfileRepository,
	historyRepo gamification.HistoryRepository,
	achievementRepo gamification.AchievementRepository,
	streakRepo streak.Repository,
	recoveryRepo streak.RecoveryRepository,
	leaderboard streak.LeaderboardCache,
	cache gamification.ProfileCache,
	publisher shared.EventPublisher,
) *DeleteUserDataHandler {
	return &DeleteUserDataHandler{
		profileRepo:     profileRepo,
		historyRepo:     historyRepo,
		achievementRepo: achievementRepo,
		streakRepo:      streakRepo,
		recoveryRepo:    recoveryRepo,
		leaderboard:     leaderboard,
		cache:           cache,
		publisher:       publisher,
		logger:          slog.Default(),
	}
}

// Handle purges every engagement record of the user. The purge is
// idempotent: deleting an already-purged user succeeds.
func (h *DeleteUserDataHandler) Handle(ctx context.Context, cmd DeleteUserDataCommand) (*DeleteUserDataResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := h.recoveryRepo.DeleteByUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("delete_user_data: recoveries: %w", err)
	}

	// Drop leaderboard entries before the streak rows they mirror.
	if h.leaderboard != nil {
		for _, t := range streak.KnownTypes() {
			if err := h.leaderboard.Remove(ctx, t, cmd.UserID); err != nil {
				return nil, fmt.Errorf("delete_user_data: leaderboard: %w", err)
			}
		}
	}

	if err := h.streakRepo.DeleteByUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("delete_user_data: streaks: %w", err)
	}
	if err := h.achievementRepo.DeleteByUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("delete_user_data: achievements: %w", err)
	}
	if err := h.historyRepo.DeleteByUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("delete_user_data: history: %w", err)
	}
	if err := h.profileRepo.DeleteByUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("delete_user_data: profile: %w", err)
	}

	if h.cache != nil {
		_ = h.cache.Invalidate(ctx, cmd.UserID)
	}

	result := &DeleteUserDataResult{
		UserID:    cmd.UserID,
		DeletedAt: time.Now().UTC(),
	}

	if h.publisher != nil {
		event := shared.NewUserDataDeletedEvent(cmd.UserID)
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				slog.String("event_type", string(event.EventType())),
				slog.String("user_id", cmd.UserID),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}
