// Package notification определяет контракт внешнего планировщика
// уведомлений. Ядро вовлечённости само ничего не доставляет: оно лишь
// передаёт планировщику оценки риска и празднования.
package notification

import (
	"context"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler - внешний коллаборатор, которому ядро отдаёт поводы для
// уведомлений. Реализация сама решает, когда и как доставлять.
type Scheduler interface {
	// ScheduleStreakReminder планирует напоминание о серии под риском.
	ScheduleStreakReminder(ctx context.Context, analysis streak.RiskAnalysis) error

	// ScheduleCelebration планирует празднование рубежа.
	ScheduleCelebration(ctx context.Context, celebration gamification.Celebration) error
}

// ══════════════════════════════════════════════════════════════════════════════
// NOOP IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NoopScheduler - реализация-заглушка: используется, когда доставка
// уведомлений выключена флагом конфигурации.
type NoopScheduler struct{}

// NewNoopScheduler создаёт планировщик-заглушку.
func NewNoopScheduler() *NoopScheduler {
	return &NoopScheduler{}
}

// ScheduleStreakReminder ничего не делает.
func (n *NoopScheduler) ScheduleStreakReminder(_ context.Context, _ streak.RiskAnalysis) error {
	return nil
}

// ScheduleCelebration ничего не делает.
func (n *NoopScheduler) ScheduleCelebration(_ context.Context, _ gamification.Celebration) error {
	return nil
}
