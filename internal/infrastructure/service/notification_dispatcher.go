// Package service contains infrastructure-side adapters for the domain's
// collaborator contracts.
package service

import (
	"context"
	"log/slog"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/notification"
	"github.com/finpulse/engagement-core/internal/domain/streak"
	"github.com/finpulse/engagement-core/pkg/circuitbreaker"
)

// GuardedScheduler wraps a notification.Scheduler with a circuit breaker.
// Reminders and celebrations are best-effort: when the delivery collaborator
// is down, the breaker sheds the calls instead of letting a batch scan hammer
// it and time out on every streak.
type GuardedScheduler struct {
	inner   notification.Scheduler
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGuardedScheduler creates a guarded scheduler around inner.
func NewGuardedScheduler(inner notification.Scheduler, logger *slog.Logger) *GuardedScheduler {
	g := &GuardedScheduler{
		inner:  inner,
		logger: logger,
	}
	g.breaker = circuitbreaker.NotificationBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("notification circuit state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return g
}

// ScheduleStreakReminder forwards the reminder through the breaker.
func (g *GuardedScheduler) ScheduleStreakReminder(ctx context.Context, analysis streak.RiskAnalysis) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.ScheduleStreakReminder(ctx, analysis)
	})
}

// ScheduleCelebration forwards the celebration through the breaker.
func (g *GuardedScheduler) ScheduleCelebration(ctx context.Context, celebration gamification.Celebration) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.ScheduleCelebration(ctx, celebration)
	})
}

// BreakerState exposes the current circuit state for health reporting.
func (g *GuardedScheduler) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
