package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// INITIATE STREAK RECOVERY COMMAND
// Opens a recovery window for a broken streak. Idempotent: if a recovery is
// already open for the streak, the existing one is returned.
// ══════════════════════════════════════════════════════════════════════════════

// InitiateStreakRecoveryCommand contains the data to open a recovery.
type InitiateStreakRecoveryCommand struct {
	// UserID is the user whose streak broke.
	UserID string

	// StreakID identifies the broken streak.
	StreakID string

	// PreviousCount is the streak length lost at break time. When zero,
	// the streak's best count is used instead.
	PreviousCount int

	// Timestamp is when the recovery starts (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c InitiateStreakRecoveryCommand) Validate() error {
	if !shared.IsValidUserID(c.UserID) {
		return fmt.Errorf("initiate_recovery: %w", shared.ErrInvalidID)
	}
	if c.StreakID == "" {
		return errors.New("initiate_recovery: streak_id is required")
	}
	return nil
}

// InitiateStreakRecoveryResult contains the result of opening a recovery.
type InitiateStreakRecoveryResult struct {
	// Recovery is the open recovery (existing or newly created).
	Recovery *streak.StreakRecovery

	// AlreadyOpen indicates an existing recovery was returned.
	AlreadyOpen bool

	// Events contains domain events generated.
	Events []shared.Event
}

// InitiateStreakRecoveryHandler handles the InitiateStreakRecoveryCommand.
type InitiateStreakRecoveryHandler struct {
	streakRepo   streak.Repository
	recoveryRepo streak.RecoveryRepository
	publisher    shared.EventPublisher
	logger       *slog.Logger

	requiredActions int
	window          time.Duration
}

// NewInitiateStreakRecoveryHandler creates a new InitiateStreakRecoveryHandler.
func NewInitiateStreakRecoveryHandler(
	streakRepo streak.Repository,
	recoveryRepo streak.RecoveryRepository,
	publisher shared.EventPublisher,
	requiredActions int,
	window time.Duration,
) *InitiateStreakRecoveryHandler {
	if requiredActions <= 0 {
		requiredActions = streak.DefaultRequiredActions
	}
	if window <= 0 {
		window = streak.DefaultRecoveryWindow
	}

	return &InitiateStreakRecoveryHandler{
		streakRepo:      streakRepo,
		recoveryRepo:    recoveryRepo,
		publisher:       publisher,
		logger:          slog.Default(),
		requiredActions: requiredActions,
		window:          window,
	}
}

// Handle opens a recovery window for a broken streak.
func (h *InitiateStreakRecoveryHandler) Handle(ctx context.Context, cmd InitiateStreakRecoveryCommand) (*InitiateStreakRecoveryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := cmd.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Idempotence: an already-open recovery wins.
	existing, err := h.recoveryRepo.GetOpenByStreak(ctx, cmd.StreakID)
	if err == nil {
		return &InitiateStreakRecoveryResult{Recovery: existing, AlreadyOpen: true}, nil
	}
	if !errors.Is(err, shared.ErrRecoveryNotFound) {
		return nil, fmt.Errorf("initiate_recovery: failed to check open recovery: %w", err)
	}

	s, err := h.streakRepo.GetByID(ctx, cmd.StreakID)
	if err != nil {
		return nil, fmt.Errorf("initiate_recovery: failed to get streak: %w", err)
	}
	if s.UserID != cmd.UserID {
		return nil, fmt.Errorf("initiate_recovery: streak %s does not belong to user %s: %w",
			cmd.StreakID, cmd.UserID, shared.ErrInvalidState)
	}

	recovery, err := streak.NewStreakRecovery(uuid.NewString(), s, cmd.PreviousCount, now, h.requiredActions, h.window)
	if err != nil {
		return nil, fmt.Errorf("initiate_recovery: %w", err)
	}

	if err := h.recoveryRepo.Create(ctx, recovery); err != nil {
		return nil, fmt.Errorf("initiate_recovery: failed to save recovery: %w", err)
	}

	event := shared.NewRecoveryStartedEvent(cmd.UserID, recovery.ID, s.ID, recovery.OriginalCount, recovery.Deadline)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				slog.String("event_type", string(event.EventType())),
				slog.String("user_id", cmd.UserID),
				slog.Any("error", err),
			)
		}
	}

	return &InitiateStreakRecoveryResult{
		Recovery: recovery,
		Events:   []shared.Event{event},
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS RECOVERY ACTION COMMAND
// Feeds one qualifying action into an open recovery. On completion the lost
// best count lands on the user's live streak for that type: merged into the
// row the qualifying actions already re-created, or a freshly seeded one if
// none exists. The broken row is kept as history either way.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessRecoveryActionCommand contains the data to progress a recovery.
type ProcessRecoveryActionCommand struct {
	// UserID is the recovering user.
	UserID string

	// RecoveryID identifies the recovery.
	RecoveryID string

	// Action is the qualifying action performed.
	Action shared.ActionType

	// Points awarded for the action (audit only).
	Points int

	// Timestamp is when the action occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ProcessRecoveryActionCommand) Validate() error {
	if !shared.IsValidUserID(c.UserID) {
		return fmt.Errorf("process_recovery_action: %w", shared.ErrInvalidID)
	}
	if c.RecoveryID == "" {
		return errors.New("process_recovery_action: recovery_id is required")
	}
	if !c.Action.IsValid() {
		return fmt.Errorf("process_recovery_action: %w", shared.ErrUnknownAction)
	}
	return nil
}

// ProcessRecoveryActionResult contains the result of progressing a recovery.
type ProcessRecoveryActionResult struct {
	// Recovery is the recovery after the action.
	Recovery *streak.StreakRecovery

	// Counted indicates the action was counted toward the requirement.
	Counted bool

	// Succeeded indicates the recovery completed with this action.
	Succeeded bool

	// Failed indicates the recovery was found expired and closed.
	Failed bool

	// RestoredStreak is the live streak carrying the recovered best count
	// after a success: the merged active row, or a freshly seeded one.
	RestoredStreak *streak.Streak

	// Events contains domain events generated.
	Events []shared.Event
}

// ProcessRecoveryActionHandler handles the ProcessRecoveryActionCommand.
type ProcessRecoveryActionHandler struct {
	streakRepo   streak.Repository
	recoveryRepo streak.RecoveryRepository
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewProcessRecoveryActionHandler creates a new ProcessRecoveryActionHandler.
func NewProcessRecoveryActionHandler(
	streakRepo streak.Repository,
	recoveryRepo streak.RecoveryRepository,
	publisher shared.EventPublisher,
) *ProcessRecoveryActionHandler {
	return &ProcessRecoveryActionHandler{
		streakRepo:   streakRepo,
		recoveryRepo: recoveryRepo,
		publisher:    publisher,
		logger:       slog.Default(),
	}
}

// Handle feeds an action into a recovery. Feeding a closed recovery is not
// an error: the closed record is returned unchanged.
func (h *ProcessRecoveryActionHandler) Handle(ctx context.Context, cmd ProcessRecoveryActionCommand) (*ProcessRecoveryActionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := cmd.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	recovery, err := h.recoveryRepo.GetByID(ctx, cmd.RecoveryID)
	if err != nil {
		return nil, fmt.Errorf("process_recovery_action: failed to get recovery: %w", err)
	}

	result := &ProcessRecoveryActionResult{Recovery: recovery}

	before := recovery.ActionsCompleted()
	if _, err := recovery.AddAction(cmd.Action, now, cmd.Points); err != nil {
		switch {
		case errors.Is(err, shared.ErrRecoveryClosed):
			return result, nil

		case errors.Is(err, shared.ErrRecoveryExpired):
			return h.closeExpired(ctx, recovery, now, result)

		default:
			return nil, fmt.Errorf("process_recovery_action: %w", err)
		}
	}

	// Counted reflects actual progress: a same-instant duplicate leaves the
	// requirement untouched and there is nothing to persist or announce.
	result.Counted = recovery.ActionsCompleted() > before
	if !result.Counted {
		return result, nil
	}

	if recovery.IsSuccessful {
		if err := h.restoreStreak(ctx, cmd.UserID, recovery, now, result); err != nil {
			return nil, err
		}
	} else {
		event := shared.NewRecoveryProgressedEvent(cmd.UserID, recovery.ID, recovery.ActionsCompleted(), recovery.RequiredActions)
		result.Events = append(result.Events, event)
	}

	if err := h.recoveryRepo.Update(ctx, recovery); err != nil {
		return nil, fmt.Errorf("process_recovery_action: failed to save recovery: %w", err)
	}

	h.publish(result.Events)
	return result, nil
}

// closeExpired marks an overdue recovery failed and persists the change.
func (h *ProcessRecoveryActionHandler) closeExpired(ctx context.Context, recovery *streak.StreakRecovery, now time.Time, result *ProcessRecoveryActionResult) (*ProcessRecoveryActionResult, error) {
	if err := recovery.MarkFailed(now); err != nil {
		return nil, fmt.Errorf("process_recovery_action: failed to close expired recovery: %w", err)
	}
	if err := h.recoveryRepo.Update(ctx, recovery); err != nil {
		return nil, fmt.Errorf("process_recovery_action: failed to save recovery: %w", err)
	}

	result.Failed = true
	event := shared.NewRecoveryFailedEvent(recovery.UserID, recovery.ID, recovery.ActionsCompleted())
	result.Events = append(result.Events, event)
	h.publish(result.Events)
	return result, nil
}

// restoreStreak lands the recovered best count on the user's live streak.
// The qualifying actions usually re-created an active row of the same type
// already; only one active row per (user, type) may exist, so the recovery
// merges into it. A fresh row is seeded only when no live row is present.
// The broken row stays behind as history either way.
func (h *ProcessRecoveryActionHandler) restoreStreak(ctx context.Context, userID string, recovery *streak.StreakRecovery, now time.Time, result *ProcessRecoveryActionResult) error {
	original, err := h.streakRepo.GetByID(ctx, recovery.OriginalStreakID)
	if err != nil {
		return fmt.Errorf("process_recovery_action: failed to get original streak: %w", err)
	}

	var restored *streak.Streak

	live, err := h.streakRepo.GetByUserAndType(ctx, userID, recovery.StreakType)
	switch {
	case err == nil:
		if err := recovery.RestoreIntoLiveStreak(live, original, now); err != nil {
			return fmt.Errorf("process_recovery_action: failed to merge recovered streak: %w", err)
		}
		if err := h.streakRepo.Update(ctx, live); err != nil {
			return fmt.Errorf("process_recovery_action: failed to save recovered streak: %w", err)
		}
		restored = live

	case errors.Is(err, shared.ErrStreakNotFound):
		seeded, err := recovery.SeedRestoredStreak(uuid.NewString(), original, now)
		if err != nil {
			return fmt.Errorf("process_recovery_action: failed to seed restored streak: %w", err)
		}
		if err := h.streakRepo.Create(ctx, seeded); err != nil {
			return fmt.Errorf("process_recovery_action: failed to save restored streak: %w", err)
		}
		restored = seeded

	default:
		return fmt.Errorf("process_recovery_action: failed to look up live streak: %w", err)
	}

	result.Succeeded = true
	result.RestoredStreak = restored
	result.Events = append(result.Events,
		shared.NewRecoverySucceededEvent(userID, recovery.ID, restored.ID, restored.BestCount, restored.RecoveryAttempts),
	)
	return nil
}

func (h *ProcessRecoveryActionHandler) publish(events []shared.Event) {
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
