// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Points & level events
	EventPointsAwarded EventType = "points.awarded"
	EventLevelUp       EventType = "points.level_up"

	// Streak events
	EventStreakCreated  EventType = "streak.created"
	EventStreakExtended EventType = "streak.extended"
	EventStreakBroken   EventType = "streak.broken"
	EventStreakAtRisk   EventType = "streak.at_risk"

	// Recovery events
	EventRecoveryStarted    EventType = "recovery.started"
	EventRecoveryProgressed EventType = "recovery.progressed"
	EventRecoverySucceeded  EventType = "recovery.succeeded"
	EventRecoveryFailed     EventType = "recovery.failed"

	// Celebration events
	EventMilestoneReached    EventType = "celebration.milestone_reached"
	EventAchievementUnlocked EventType = "celebration.achievement_unlocked"

	// System events
	EventUserDataDeleted EventType = "system.user_data_deleted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted when a user earns points for an action.
type PointsAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Action      string `json:"action"`
	Points      int    `json:"points"`
	TotalPoints int    `json:"total_points"`
}

// NewPointsAwardedEvent creates a PointsAwardedEvent.
func NewPointsAwardedEvent(userID, action string, points, totalPoints int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   NewBaseEvent(EventPointsAwarded, userID),
		UserID:      userID,
		Action:      action,
		Points:      points,
		TotalPoints: totalPoints,
	}
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"action":       e.Action,
		"points":       e.Points,
		"total_points": e.TotalPoints,
	}
}

// LevelUpEvent is emitted when accumulated points cross a level threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	OldLevel    int    `json:"old_level"`
	NewLevel    int    `json:"new_level"`
	TotalPoints int    `json:"total_points"`
}

// NewLevelUpEvent creates a LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalPoints int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:   NewBaseEvent(EventLevelUp, userID),
		UserID:      userID,
		OldLevel:    oldLevel,
		NewLevel:    newLevel,
		TotalPoints: totalPoints,
	}
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"old_level":    e.OldLevel,
		"new_level":    e.NewLevel,
		"total_points": e.TotalPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakCreatedEvent is emitted when a first qualifying action starts a streak.
type StreakCreatedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	StreakID   string `json:"streak_id"`
	StreakType string `json:"streak_type"`
}

// NewStreakCreatedEvent creates a StreakCreatedEvent.
func NewStreakCreatedEvent(userID, streakID, streakType string) StreakCreatedEvent {
	return StreakCreatedEvent{
		BaseEvent:  NewBaseEvent(EventStreakCreated, streakID),
		UserID:     userID,
		StreakID:   streakID,
		StreakType: streakType,
	}
}

// Payload implements Event interface.
func (e StreakCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"streak_id":   e.StreakID,
		"streak_type": e.StreakType,
	}
}

// StreakExtendedEvent is emitted when a streak grows by one qualifying period.
type StreakExtendedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	StreakID     string `json:"streak_id"`
	StreakType   string `json:"streak_type"`
	CurrentCount int    `json:"current_count"`
	BestCount    int    `json:"best_count"`
}

// NewStreakExtendedEvent creates a StreakExtendedEvent.
func NewStreakExtendedEvent(userID, streakID, streakType string, currentCount, bestCount int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:    NewBaseEvent(EventStreakExtended, streakID),
		UserID:       userID,
		StreakID:     streakID,
		StreakType:   streakType,
		CurrentCount: currentCount,
		BestCount:    bestCount,
	}
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"streak_id":     e.StreakID,
		"streak_type":   e.StreakType,
		"current_count": e.CurrentCount,
		"best_count":    e.BestCount,
	}
}

// StreakBrokenEvent is emitted when a gap exceeds the streak's allowed grace.
type StreakBrokenEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	StreakID      string `json:"streak_id"`
	StreakType    string `json:"streak_type"`
	PreviousCount int    `json:"previous_count"`
	DaysMissed    int    `json:"days_missed"`
}

// NewStreakBrokenEvent creates a StreakBrokenEvent.
func NewStreakBrokenEvent(userID, streakID, streakType string, previousCount, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:     NewBaseEvent(EventStreakBroken, streakID),
		UserID:        userID,
		StreakID:      streakID,
		StreakType:    streakType,
		PreviousCount: previousCount,
		DaysMissed:    daysMissed,
	}
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"streak_id":      e.StreakID,
		"streak_type":    e.StreakType,
		"previous_count": e.PreviousCount,
		"days_missed":    e.DaysMissed,
	}
}

// StreakAtRiskEvent is emitted when the risk assessor flags a streak.
type StreakAtRiskEvent struct {
	BaseEvent
	UserID       string  `json:"user_id"`
	StreakID     string  `json:"streak_id"`
	StreakType   string  `json:"streak_type"`
	RiskLevel    string  `json:"risk_level"`
	UrgencyScore float64 `json:"urgency_score"`
}

// NewStreakAtRiskEvent creates a StreakAtRiskEvent.
func NewStreakAtRiskEvent(userID, streakID, streakType, riskLevel string, urgencyScore float64) StreakAtRiskEvent {
	return StreakAtRiskEvent{
		BaseEvent:    NewBaseEvent(EventStreakAtRisk, streakID),
		UserID:       userID,
		StreakID:     streakID,
		StreakType:   streakType,
		RiskLevel:    riskLevel,
		UrgencyScore: urgencyScore,
	}
}

// Payload implements Event interface.
func (e StreakAtRiskEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"streak_id":     e.StreakID,
		"streak_type":   e.StreakType,
		"risk_level":    e.RiskLevel,
		"urgency_score": e.UrgencyScore,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Recovery Events
// ═══════════════════════════════════════════════════════════════════════════

// RecoveryStartedEvent is emitted when a recovery workflow opens.
type RecoveryStartedEvent struct {
	BaseEvent
	UserID        string    `json:"user_id"`
	RecoveryID    string    `json:"recovery_id"`
	StreakID      string    `json:"streak_id"`
	OriginalCount int       `json:"original_count"`
	Deadline      time.Time `json:"deadline"`
}

// NewRecoveryStartedEvent creates a RecoveryStartedEvent.
func NewRecoveryStartedEvent(userID, recoveryID, streakID string, originalCount int, deadline time.Time) RecoveryStartedEvent {
	return RecoveryStartedEvent{
		BaseEvent:     NewBaseEvent(EventRecoveryStarted, recoveryID),
		UserID:        userID,
		RecoveryID:    recoveryID,
		StreakID:      streakID,
		OriginalCount: originalCount,
		Deadline:      deadline,
	}
}

// Payload implements Event interface.
func (e RecoveryStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"recovery_id":    e.RecoveryID,
		"streak_id":      e.StreakID,
		"original_count": e.OriginalCount,
		"deadline":       e.Deadline,
	}
}

// RecoveryProgressedEvent is emitted when a qualifying action advances a recovery.
type RecoveryProgressedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	RecoveryID       string `json:"recovery_id"`
	ActionsCompleted int    `json:"actions_completed"`
	ActionsRequired  int    `json:"actions_required"`
}

// NewRecoveryProgressedEvent creates a RecoveryProgressedEvent.
func NewRecoveryProgressedEvent(userID, recoveryID string, completed, required int) RecoveryProgressedEvent {
	return RecoveryProgressedEvent{
		BaseEvent:        NewBaseEvent(EventRecoveryProgressed, recoveryID),
		UserID:           userID,
		RecoveryID:       recoveryID,
		ActionsCompleted: completed,
		ActionsRequired:  required,
	}
}

// Payload implements Event interface.
func (e RecoveryProgressedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"recovery_id":       e.RecoveryID,
		"actions_completed": e.ActionsCompleted,
		"actions_required":  e.ActionsRequired,
	}
}

// RecoverySucceededEvent is emitted when a recovery completes successfully
// and a new streak is seeded.
type RecoverySucceededEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	RecoveryID    string `json:"recovery_id"`
	NewStreakID   string `json:"new_streak_id"`
	RestoredBest  int    `json:"restored_best"`
	AttemptNumber int    `json:"attempt_number"`
}

// NewRecoverySucceededEvent creates a RecoverySucceededEvent.
func NewRecoverySucceededEvent(userID, recoveryID, newStreakID string, restoredBest, attemptNumber int) RecoverySucceededEvent {
	return RecoverySucceededEvent{
		BaseEvent:     NewBaseEvent(EventRecoverySucceeded, recoveryID),
		UserID:        userID,
		RecoveryID:    recoveryID,
		NewStreakID:   newStreakID,
		RestoredBest:  restoredBest,
		AttemptNumber: attemptNumber,
	}
}

// Payload implements Event interface.
func (e RecoverySucceededEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"recovery_id":    e.RecoveryID,
		"new_streak_id":  e.NewStreakID,
		"restored_best":  e.RestoredBest,
		"attempt_number": e.AttemptNumber,
	}
}

// RecoveryFailedEvent is emitted when the grace window elapses before the
// required actions accumulate.
type RecoveryFailedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	RecoveryID       string `json:"recovery_id"`
	ActionsCompleted int    `json:"actions_completed"`
}

// NewRecoveryFailedEvent creates a RecoveryFailedEvent.
func NewRecoveryFailedEvent(userID, recoveryID string, actionsCompleted int) RecoveryFailedEvent {
	return RecoveryFailedEvent{
		BaseEvent:        NewBaseEvent(EventRecoveryFailed, recoveryID),
		UserID:           userID,
		RecoveryID:       recoveryID,
		ActionsCompleted: actionsCompleted,
	}
}

// Payload implements Event interface.
func (e RecoveryFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"recovery_id":       e.RecoveryID,
		"actions_completed": e.ActionsCompleted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Celebration Events
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneReachedEvent is emitted when a streak crosses a celebration threshold.
type MilestoneReachedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	StreakID    string `json:"streak_id"`
	Threshold   int    `json:"threshold"`
	Intensity   string `json:"intensity"`
	BonusPoints int    `json:"bonus_points"`
}

// NewMilestoneReachedEvent creates a MilestoneReachedEvent.
func NewMilestoneReachedEvent(userID, streakID string, threshold int, intensity string, bonusPoints int) MilestoneReachedEvent {
	return MilestoneReachedEvent{
		BaseEvent:   NewBaseEvent(EventMilestoneReached, streakID),
		UserID:      userID,
		StreakID:    streakID,
		Threshold:   threshold,
		Intensity:   intensity,
		BonusPoints: bonusPoints,
	}
}

// Payload implements Event interface.
func (e MilestoneReachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"streak_id":    e.StreakID,
		"threshold":    e.Threshold,
		"intensity":    e.Intensity,
		"bonus_points": e.BonusPoints,
	}
}

// AchievementUnlockedEvent is emitted when a one-time achievement unlocks.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementType string `json:"achievement_type"`
	PointsAwarded   int    `json:"points_awarded"`
}

// NewAchievementUnlockedEvent creates an AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementType string, pointsAwarded int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:          userID,
		AchievementType: achievementType,
		PointsAwarded:   pointsAwarded,
	}
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_type": e.AchievementType,
		"points_awarded":   e.PointsAwarded,
	}
}

// UserDataDeletedEvent is emitted after a full engagement-data purge.
type UserDataDeletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// NewUserDataDeletedEvent creates a UserDataDeletedEvent.
func NewUserDataDeletedEvent(userID string) UserDataDeletedEvent {
	return UserDataDeletedEvent{
		BaseEvent: NewBaseEvent(EventUserDataDeleted, userID),
		UserID:    userID,
	}
}

// Payload implements Event interface.
func (e UserDataDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes domain events.
type EventHandler interface {
	// Handle processes the event.
	Handle(ctx context.Context, event Event) error

	// EventTypes returns the event types this handler is interested in.
	EventTypes() []EventType
}

// EventHandlerFunc adapts a function to the EventHandler interface for a
// fixed set of event types.
type EventHandlerFunc struct {
	Types []EventType
	Fn    func(ctx context.Context, event Event) error
}

// Handle implements EventHandler.
func (h EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

// EventTypes implements EventHandler.
func (h EventHandlerFunc) EventTypes() []EventType {
	return h.Types
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	// Publish delivers the event to all subscribed handlers.
	Publish(event Event) error
}

// EventBus combines publishing with subscription management.
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for its declared event types.
	Subscribe(handler EventHandler) error

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down, waiting for in-flight handlers.
	Close() error
}
