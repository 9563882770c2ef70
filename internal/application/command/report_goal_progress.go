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
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT GOAL PROGRESS COMMAND
// Reports a savings-goal progress change. Crossing a 25/50/75/100% threshold
// fires a celebration whose bonus scales with the goal size.
// ══════════════════════════════════════════════════════════════════════════════

// ReportGoalProgressCommand contains the data of a goal progress change.
type ReportGoalProgressCommand struct {
	// UserID is the goal owner.
	UserID string

	// GoalID identifies the goal (audit only).
	GoalID string

	// PreviousPercent is the goal completion before the change.
	PreviousPercent int

	// CurrentPercent is the goal completion after the change.
	CurrentPercent int

	// TargetAmount is the goal size in minor currency units.
	TargetAmount int

	// Timestamp is when the change occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ReportGoalProgressCommand) Validate() error {
	if !shared.IsValidUserID(c.UserID) {
		return fmt.Errorf("report_goal_progress: %w", shared.ErrInvalidID)
	}
	if c.PreviousPercent < 0 || c.CurrentPercent < 0 {
		return errors.New("report_goal_progress: percent must not be negative")
	}
	if c.TargetAmount <= 0 {
		return errors.New("report_goal_progress: target_amount must be positive")
	}
	return nil
}

// ReportGoalProgressResult contains the result of reporting goal progress.
type ReportGoalProgressResult struct {
	// UserID is the goal owner.
	UserID string

	// Celebration is the fired celebration, nil when no threshold was crossed.
	Celebration *gamification.Celebration

	// PointsAwarded is the bonus credited for the crossed threshold.
	PointsAwarded int

	// TotalPoints is the profile total after the bonus.
	TotalPoints int

	// Level is the profile level after the bonus.
	Level int

	// LeveledUp indicates a level threshold was crossed.
	LeveledUp bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ReportGoalProgressHandler handles the ReportGoalProgressCommand.
type ReportGoalProgressHandler struct {
	profileRepo gamification.ProfileRepository
	historyRepo gamification.HistoryRepository
	publisher   shared.EventPublisher
	logger      *slog.Logger
}

// NewReportGoalProgressHandler creates a new ReportGoalProgressHandler.
func NewReportGoalProgressHandler(
	profileRepo gamification.ProfileRepository,
	historyRepo gamification.HistoryRepository,
	publisher shared.EventPublisher,
) *ReportGoalProgressHandler {
	return &ReportGoalProgressHandler{
		profileRepo: profileRepo,
		historyRepo: historyRepo,
		publisher:   publisher,
		logger:      slog.Default(),
	}
}

// Handle executes the report goal progress command. Progress that crosses
// no threshold is a no-op: nothing is persisted and no event fires.
func (h *ReportGoalProgressHandler) Handle(ctx context.Context, cmd ReportGoalProgressCommand) (*ReportGoalProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := cmd.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := &ReportGoalProgressResult{UserID: cmd.UserID}

	celebration := gamification.GoalProgressCelebration(cmd.UserID, cmd.PreviousPercent, cmd.CurrentPercent, cmd.TargetAmount, now)
	if celebration == nil {
		return result, nil
	}
	result.Celebration = celebration

	profile, err := h.loadOrCreateProfile(ctx, cmd.UserID, now)
	if err != nil {
		return nil, err
	}

	award := profile.AwardPoints(celebration.BonusPoints, now)
	if err := h.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("report_goal_progress: failed to save profile: %w", err)
	}

	result.PointsAwarded = award.PointsAwarded
	result.TotalPoints = award.TotalPoints
	result.Level = award.NewLevel
	result.LeveledUp = award.LeveledUp

	entry, err := gamification.NewHistoryEntry(uuid.NewString(), cmd.UserID, award.PointsAwarded, shared.ActionUpdateGoal,
		fmt.Sprintf("Goal milestone: %d%%", celebration.Milestone), now)
	if err != nil {
		return nil, fmt.Errorf("report_goal_progress: %w", err)
	}
	if err := h.historyRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("report_goal_progress: failed to append history: %w", err)
	}

	// The milestone event carries no streak: subscribers treat an empty
	// streak id as a goal-progress threshold.
	result.Events = append(result.Events,
		shared.NewMilestoneReachedEvent(cmd.UserID, "", celebration.Milestone, string(celebration.Intensity), celebration.BonusPoints))
	if award.LeveledUp {
		result.Events = append(result.Events,
			shared.NewLevelUpEvent(cmd.UserID, award.PreviousLevel, award.NewLevel, award.TotalPoints))
	}

	h.publish(result.Events)
	return result, nil
}

func (h *ReportGoalProgressHandler) loadOrCreateProfile(ctx context.Context, userID string, now time.Time) (*gamification.Profile, error) {
	profile, err := h.profileRepo.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, shared.ErrProfileNotFound) {
		return nil, fmt.Errorf("report_goal_progress: failed to get profile: %w", err)
	}

	profile, err = gamification.NewProfile(userID, now)
	if err != nil {
		return nil, fmt.Errorf("report_goal_progress: %w", err)
	}
	if err := h.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("report_goal_progress: failed to create profile: %w", err)
	}
	return profile, nil
}

func (h *ReportGoalProgressHandler) publish(events []shared.Event) {
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
