// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT ACTION COMMAND
// The single entry point for user activity: awards points, advances streaks,
// feeds open recoveries, fires milestone celebrations and unlocks
// achievements, all in one pass.
// ══════════════════════════════════════════════════════════════════════════════

// ReportActionCommand contains the data to report a user action.
type ReportActionCommand struct {
	// UserID is the acting user.
	UserID string

	// Action is the type of action performed.
	Action shared.ActionType

	// Description overrides the default audit description when set.
	Description string

	// Timestamp is when the action occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ReportActionCommand) Validate() error {
	if !shared.IsValidUserID(c.UserID) {
		return fmt.Errorf("report_action: %w", shared.ErrInvalidID)
	}
	if !c.Action.IsValid() {
		return fmt.Errorf("report_action: %q: %w", c.Action, shared.ErrUnknownAction)
	}
	return nil
}

// ReportActionResult contains the result of reporting an action.
type ReportActionResult struct {
	// UserID is the acting user.
	UserID string

	// Action is the reported action.
	Action shared.ActionType

	// PointsAwarded is the total points credited, bonuses included.
	PointsAwarded int

	// TotalPoints is the profile total after the action.
	TotalPoints int

	// Level is the profile level after the action.
	Level int

	// LeveledUp indicates a level threshold was crossed.
	LeveledUp bool

	// Streaks holds the post-action state of every streak the action touched.
	Streaks []*streak.Streak

	// BrokenStreaks holds streaks whose previous incarnation ended with
	// this action.
	BrokenStreaks []*streak.Streak

	// Celebrations holds milestone celebrations triggered by the action.
	Celebrations []gamification.Celebration

	// UnlockedAchievements holds achievements unlocked by the action.
	UnlockedAchievements []*gamification.Achievement

	// RecoverySucceeded indicates an open recovery completed with this action.
	RecoverySucceeded bool

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the action was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReportActionHandler handles the ReportActionCommand.
type ReportActionHandler struct {
	profileRepo     gamification.ProfileRepository
	historyRepo     gamification.HistoryRepository
	achievementRepo gamification.AchievementRepository
	streakRepo      streak.Repository
	recoveryRepo    streak.RecoveryRepository
	leaderboard     streak.LeaderboardCache
	recoveryHandler *ProcessRecoveryActionHandler
	publisher       shared.EventPublisher
	logger          *slog.Logger

	actionPoints gamification.ActionPoints
	policies     streak.PolicyTable
	catalog      map[gamification.AchievementType]gamification.AchievementDefinition
}

// ReportActionHandlerConfig contains configuration for the handler.
type ReportActionHandlerConfig struct {
	ActionPoints gamification.ActionPoints
	Policies     streak.PolicyTable
	Catalog      map[gamification.AchievementType]gamification.AchievementDefinition
	Logger       *slog.Logger
}

// DefaultReportActionHandlerConfig returns default configuration.
func DefaultReportActionHandlerConfig() ReportActionHandlerConfig {
	return ReportActionHandlerConfig{
		ActionPoints: gamification.DefaultActionPoints(),
		Policies:     streak.DefaultPolicyTable(),
		Catalog:      gamification.DefaultAchievementCatalog(),
	}
}

// NewReportActionHandler creates a new ReportActionHandler.
func NewReportActionHandler(
	profileRepo gamification.ProfileRepository,
	historyRepo gamification.HistoryRepository,
	achievementRepo gamification.AchievementRepository,
	streakRepo streak.Repository,
	recoveryRepo streak.RecoveryRepository,
	leaderboard streak.LeaderboardCache,
	recoveryHandler *ProcessRecoveryActionHandler,
	publisher shared.EventPublisher,
	config ReportActionHandlerConfig,
) *ReportActionHandler {
	if config.ActionPoints == nil {
		config.ActionPoints = gamification.DefaultActionPoints()
	}
	if config.Policies == nil {
		config.Policies = streak.DefaultPolicyTable()
	}
	if config.Catalog == nil {
		config.Catalog = gamification.DefaultAchievementCatalog()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &ReportActionHandler{
		profileRepo:     profileRepo,
		historyRepo:     historyRepo,
		achievementRepo: achievementRepo,
		streakRepo:      streakRepo,
		recoveryRepo:    recoveryRepo,
		leaderboard:     leaderboard,
		recoveryHandler: recoveryHandler,
		publisher:       publisher,
		logger:          config.Logger,
		actionPoints:    config.ActionPoints,
		policies:        config.Policies,
		catalog:         config.Catalog,
	}
}

// Handle executes the report action command.
func (h *ReportActionHandler) Handle(ctx context.Context, cmd ReportActionCommand) (*ReportActionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := cmd.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := &ReportActionResult{
		UserID:     cmd.UserID,
		Action:     cmd.Action,
		RecordedAt: now,
		Events:     make([]shared.Event, 0, 4),
	}

	// Profile: load or lazily create on the user's first reported action.
	profile, isFirstAction, err := h.loadOrCreateProfile(ctx, cmd.UserID, now)
	if err != nil {
		return nil, err
	}

	basePoints, err := h.actionPoints.BasePointsFor(cmd.Action)
	if err != nil {
		return nil, fmt.Errorf("report_action: %w", err)
	}

	// Streaks touched by this action, plus milestone bonuses they yield.
	bonusPoints, err := h.advanceStreaks(ctx, cmd, now, result)
	if err != nil {
		return nil, err
	}

	// Open recoveries consume the same qualifying action.
	if err := h.feedRecoveries(ctx, cmd, now, result); err != nil {
		return nil, err
	}

	award := profile.AwardPoints(basePoints+bonusPoints, now)
	result.PointsAwarded = award.PointsAwarded
	result.TotalPoints = award.TotalPoints
	result.Level = award.NewLevel
	result.LeveledUp = award.LeveledUp

	if err := h.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("report_action: failed to save profile: %w", err)
	}

	if err := h.appendHistory(ctx, cmd, award.PointsAwarded, now); err != nil {
		return nil, err
	}

	result.Events = append(result.Events,
		shared.NewPointsAwardedEvent(cmd.UserID, string(cmd.Action), award.PointsAwarded, award.TotalPoints))
	if award.LeveledUp {
		result.Events = append(result.Events,
			shared.NewLevelUpEvent(cmd.UserID, award.PreviousLevel, award.NewLevel, award.TotalPoints))
	}

	if err := h.unlockAchievements(ctx, cmd, profile, isFirstAction, now, result); err != nil {
		return nil, err
	}

	// Achievement bonuses are credited after unlock evaluation so that
	// point-based conditions see only the action's own points.
	if err := h.creditAchievementBonuses(ctx, cmd, profile, now, result); err != nil {
		return nil, err
	}

	h.publish(result.Events)
	return result, nil
}

// creditAchievementBonuses awards the bonus points of freshly unlocked
// achievements as a second, separate award, with one audit entry per bonus.
func (h *ReportActionHandler) creditAchievementBonuses(ctx context.Context, cmd ReportActionCommand, profile *gamification.Profile, now time.Time, result *ReportActionResult) error {
	bonus := 0
	for _, a := range result.UnlockedAchievements {
		def, ok := h.catalog[a.Type]
		if !ok || def.BonusPoints == 0 {
			continue
		}
		bonus += def.BonusPoints

		entry, err := gamification.NewHistoryEntry(uuid.NewString(), cmd.UserID, def.BonusPoints, cmd.Action,
			fmt.Sprintf("Achievement bonus: %s", def.Type), now)
		if err != nil {
			return fmt.Errorf("report_action: %w", err)
		}
		if err := h.historyRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("report_action: failed to append history: %w", err)
		}
	}
	if bonus == 0 {
		return nil
	}

	award := profile.AwardPoints(bonus, now)
	if err := h.profileRepo.Update(ctx, profile); err != nil {
		return fmt.Errorf("report_action: failed to save profile: %w", err)
	}

	result.PointsAwarded += award.PointsAwarded
	result.TotalPoints = award.TotalPoints
	result.Level = award.NewLevel
	if award.LeveledUp {
		result.LeveledUp = true
		result.Events = append(result.Events,
			shared.NewLevelUpEvent(cmd.UserID, award.PreviousLevel, award.NewLevel, award.TotalPoints))
	}
	return nil
}

// loadOrCreateProfile fetches the profile, creating it on first contact.
func (h *ReportActionHandler) loadOrCreateProfile(ctx context.Context, userID string, now time.Time) (*gamification.Profile, bool, error) {
	profile, err := h.profileRepo.GetByUserID(ctx, userID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, shared.ErrProfileNotFound) {
		return nil, false, fmt.Errorf("report_action: failed to get profile: %w", err)
	}

	profile, err = gamification.NewProfile(userID, now)
	if err != nil {
		return nil, false, fmt.Errorf("report_action: %w", err)
	}
	if err := h.profileRepo.Create(ctx, profile); err != nil {
		return nil, false, fmt.Errorf("report_action: failed to create profile: %w", err)
	}
	return profile, true, nil
}

// advanceStreaks updates every streak type triggered by the action and
// returns the milestone bonus points earned along the way.
func (h *ReportActionHandler) advanceStreaks(ctx context.Context, cmd ReportActionCommand, now time.Time, result *ReportActionResult) (int, error) {
	bonus := 0

	for _, streakType := range h.policies.TypesForAction(cmd.Action) {
		policy := h.policies[streakType]

		s, err := h.streakRepo.GetByUserAndType(ctx, cmd.UserID, streakType)
		switch {
		case errors.Is(err, shared.ErrStreakNotFound):
			s, err = streak.NewStreak(uuid.NewString(), cmd.UserID, streakType, now)
			if err != nil {
				return 0, fmt.Errorf("report_action: %w", err)
			}
			if err := h.streakRepo.Create(ctx, s); err != nil {
				return 0, fmt.Errorf("report_action: failed to create streak: %w", err)
			}
			result.Events = append(result.Events,
				shared.NewStreakCreatedEvent(cmd.UserID, s.ID, string(streakType)))

		case err != nil:
			return 0, fmt.Errorf("report_action: failed to get streak: %w", err)

		default:
			// Snapshot before recording: BrokenStreaks carries the ended
			// incarnation as it last stood, not the reset row.
			snapshot := s.Clone()
			record := s.RecordActivity(now, policy)
			if record.WasExtended {
				result.Events = append(result.Events,
					shared.NewStreakExtendedEvent(cmd.UserID, s.ID, string(streakType), s.CurrentCount, s.BestCount))
			}
			if record.WasBroken {
				result.BrokenStreaks = append(result.BrokenStreaks, snapshot)
				result.Events = append(result.Events,
					shared.NewStreakBrokenEvent(cmd.UserID, s.ID, string(streakType), record.PreviousCount, record.DaysMissed))
			}
			if err := h.streakRepo.Update(ctx, s); err != nil {
				return 0, fmt.Errorf("report_action: failed to save streak: %w", err)
			}
		}

		if celebration := gamification.CelebrateStreakMilestone(s, now); celebration != nil {
			bonus += celebration.BonusPoints
			result.Celebrations = append(result.Celebrations, *celebration)
			result.Events = append(result.Events,
				shared.NewMilestoneReachedEvent(cmd.UserID, s.ID, celebration.Milestone, string(celebration.Intensity), celebration.BonusPoints))

			// LastMilestone moved, persist it.
			if err := h.streakRepo.Update(ctx, s); err != nil {
				return 0, fmt.Errorf("report_action: failed to save streak: %w", err)
			}
		}

		if h.leaderboard != nil {
			_ = h.leaderboard.RecordCount(ctx, streakType, cmd.UserID, s.CurrentCount)
		}

		result.Streaks = append(result.Streaks, s)
	}

	return bonus, nil
}

// feedRecoveries routes the action into any open recoveries whose streak
// type it qualifies for.
func (h *ReportActionHandler) feedRecoveries(ctx context.Context, cmd ReportActionCommand, now time.Time, result *ReportActionResult) error {
	if h.recoveryHandler == nil || h.recoveryRepo == nil {
		return nil
	}

	open, err := h.recoveryRepo.GetActiveByUser(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("report_action: failed to list recoveries: %w", err)
	}

	for _, recovery := range open {
		policy, ok := h.policies[recovery.StreakType]
		if !ok || !policy.IsTriggeredBy(cmd.Action) {
			continue
		}

		sub, err := h.recoveryHandler.Handle(ctx, ProcessRecoveryActionCommand{
			UserID:        cmd.UserID,
			RecoveryID:    recovery.ID,
			Action:        cmd.Action,
			Timestamp:     now,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			return err
		}

		result.Events = append(result.Events, sub.Events...)
		if sub.Succeeded {
			result.RecoverySucceeded = true
			upsertStreak(result, sub.RestoredStreak)
		}
	}

	return nil
}

// upsertStreak replaces an earlier entry for the same streak row, so a
// recovery merging into a row advanceStreaks already touched does not
// report it twice.
func upsertStreak(result *ReportActionResult, s *streak.Streak) {
	for i, existing := range result.Streaks {
		if existing.ID == s.ID {
			result.Streaks[i] = s
			return
		}
	}
	result.Streaks = append(result.Streaks, s)
}

// appendHistory writes the immutable audit record for the award.
func (h *ReportActionHandler) appendHistory(ctx context.Context, cmd ReportActionCommand, points int, now time.Time) error {
	description := cmd.Description
	if description == "" {
		description = fmt.Sprintf("Action %s", cmd.Action)
	}

	entry, err := gamification.NewHistoryEntry(uuid.NewString(), cmd.UserID, points, cmd.Action, description, now)
	if err != nil {
		return fmt.Errorf("report_action: %w", err)
	}
	if err := h.historyRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("report_action: failed to append history: %w", err)
	}
	return nil
}

// unlockAchievements evaluates unlock conditions against the post-action
// state and persists newly unlocked achievements.
func (h *ReportActionHandler) unlockAchievements(ctx context.Context, cmd ReportActionCommand, profile *gamification.Profile, isFirstAction bool, now time.Time, result *ReportActionResult) error {
	existing, err := h.achievementRepo.GetByUser(ctx, cmd.UserID)
	if err != nil {
		return fmt.Errorf("report_action: failed to list achievements: %w", err)
	}

	already := make(map[gamification.AchievementType]bool, len(existing))
	for _, a := range existing {
		already[a.Type] = true
	}

	unlocked := gamification.EvaluateUnlocks(gamification.UnlockContext{
		Action:            cmd.Action,
		IsFirstAction:     isFirstAction,
		Profile:           profile,
		Streaks:           result.Streaks,
		RecoverySucceeded: result.RecoverySucceeded,
	}, already, h.catalog)

	for _, u := range unlocked {
		achievement, err := gamification.NewAchievement(uuid.NewString(), cmd.UserID, u.Definition.Type, now)
		if err != nil {
			return fmt.Errorf("report_action: %w", err)
		}
		if err := h.achievementRepo.Create(ctx, achievement); err != nil {
			return fmt.Errorf("report_action: failed to save achievement: %w", err)
		}

		result.UnlockedAchievements = append(result.UnlockedAchievements, achievement)
		result.Events = append(result.Events,
			shared.NewAchievementUnlockedEvent(cmd.UserID, string(u.Definition.Type), u.Definition.BonusPoints))
	}

	return nil
}

func (h *ReportActionHandler) publish(events []shared.Event) {
	if h.publisher == nil {
		return
	}
	for _, event := range events {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				slog.String("event_type", string(event.EventType())),
				slog.Any("error", err),
			)
		}
	}
}
