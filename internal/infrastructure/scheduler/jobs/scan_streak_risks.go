package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/finpulse/engagement-core/internal/domain/notification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCAN STREAK RISKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ScanStreakRisksJob sweeps active streaks that have gone quiet, classifies
// the break-risk of each, and hands reminders to the notification scheduler.
// Streaks whose silence has outlived the grace window are marked broken;
// the published streak.broken event is what opens their recovery window.
//
// The job is idempotent: reminder cooldowns are claimed through the tracker
// before anything is dispatched, so overlapping workers never double-notify.
type ScanStreakRisksJob struct {
	streakRepo streak.Repository
	assessor   *streak.Assessor
	tracker    streak.ReminderTracker
	notifier   notification.Scheduler
	publisher  shared.EventPublisher
	logger     *slog.Logger
	metrics    *Metrics

	config ScanStreakRisksConfig

	// limiter throttles outbound reminders across the whole batch.
	limiter *rate.Limiter

	lastRunStats atomic.Value // *ScanStreakRisksStats
}

// ScanStreakRisksConfig contains configuration for the risk scan job.
type ScanStreakRisksConfig struct {
	// BatchSize is the maximum number of stale streaks fetched per run.
	BatchSize int

	// ReminderCooldown is the minimum interval between reminders for the
	// same streak, enforced through the tracker.
	ReminderCooldown time.Duration

	// RemindersPerSecond caps the reminder dispatch rate.
	RemindersPerSecond float64

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultScanStreakRisksConfig returns sensible defaults.
func DefaultScanStreakRisksConfig() ScanStreakRisksConfig {
	return ScanStreakRisksConfig{
		BatchSize:          500,
		ReminderCooldown:   24 * time.Hour,
		RemindersPerSecond: 10,
		Timeout:            5 * time.Minute,
	}
}

// ScanStreakRisksStats captures the outcome of one run.
type ScanStreakRisksStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	StreaksScanned int
	StreaksAtRisk  int
	RemindersSent  int
	StreaksBroken  int
	Errors         int
}

// NewScanStreakRisksJob creates the risk scan job.
func NewScanStreakRisksJob(
	streakRepo streak.Repository,
	assessor *streak.Assessor,
	tracker streak.ReminderTracker,
	notifier notification.Scheduler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	metrics *Metrics,
	config ScanStreakRisksConfig,
) *ScanStreakRisksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultScanStreakRisksConfig().BatchSize
	}
	if config.ReminderCooldown <= 0 {
		config.ReminderCooldown = DefaultScanStreakRisksConfig().ReminderCooldown
	}
	if config.RemindersPerSecond <= 0 {
		config.RemindersPerSecond = DefaultScanStreakRisksConfig().RemindersPerSecond
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultScanStreakRisksConfig().Timeout
	}
	if notifier == nil {
		notifier = notification.NewNoopScheduler()
	}

	return &ScanStreakRisksJob{
		streakRepo: streakRepo,
		assessor:   assessor,
		tracker:    tracker,
		notifier:   notifier,
		publisher:  publisher,
		logger:     logger.With(slog.String("job", "scan_streak_risks")),
		metrics:    metrics,
		config:     config,
		limiter:    rate.NewLimiter(rate.Limit(config.RemindersPerSecond), 1),
	}
}

// Name returns the unique name of the job.
func (j *ScanStreakRisksJob) Name() string {
	return "scan_streak_risks"
}

// Description returns a human-readable description of the job.
func (j *ScanStreakRisksJob) Description() string {
	return "Scans quiet streaks, schedules break-risk reminders and breaks dead streaks"
}

// Run executes one scan over stale active streaks.
func (j *ScanStreakRisksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	started := time.Now()
	stats := &ScanStreakRisksStats{StartedAt: started}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
		if j.metrics != nil {
			j.metrics.JobDuration.WithLabelValues(j.Name()).Observe(stats.CompletedAt.Sub(started).Seconds())
		}
	}()

	now := time.Now().UTC()

	// Anything last touched before the start of today is worth a look:
	// the assessor decides per-policy whether it is actually at risk.
	cutoff := now.Truncate(24 * time.Hour)

	streaks, err := j.streakRepo.FindStale(ctx, cutoff, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("scan_streak_risks: failed to find stale streaks: %w", err)
	}

	stats.StreaksScanned = len(streaks)
	if j.metrics != nil {
		j.metrics.StreaksScanned.Add(float64(len(streaks)))
	}

	for _, s := range streaks {
		select {
		case <-ctx.Done():
			j.logger.Warn("scan interrupted", slog.Int("remaining", stats.StreaksScanned-stats.StreaksAtRisk-stats.StreaksBroken))
			return ctx.Err()
		default:
		}

		if err := j.processStreak(ctx, s, now, stats); err != nil {
			stats.Errors++
			j.logger.Error("failed to process streak",
				slog.String("streak_id", s.ID),
				slog.String("user_id", s.UserID),
				slog.Any("error", err),
			)
		}
	}

	j.logger.Info("risk scan completed",
		slog.Int("scanned", stats.StreaksScanned),
		slog.Int("at_risk", stats.StreaksAtRisk),
		slog.Int("reminders_sent", stats.RemindersSent),
		slog.Int("broken", stats.StreaksBroken),
		slog.Int("errors", stats.Errors),
		slog.Duration("duration", time.Since(started)),
	)

	return nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *ScanStreakRisksJob) LastRunStats() *ScanStreakRisksStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*ScanStreakRisksStats)
	}
	return nil
}

// processStreak assesses one streak and reacts to its risk state.
func (j *ScanStreakRisksJob) processStreak(ctx context.Context, s *streak.Streak, now time.Time, stats *ScanStreakRisksStats) error {
	analysis := j.assessor.Assess(s, now)
	if analysis == nil {
		// Either inactive, unknown type, or past the grace window.
		// Past-grace active streaks are dead: mark them broken so the
		// user's next action starts a fresh streak.
		if s.IsActive && s.RiskLevel != streak.RiskBroken {
			return j.breakStreak(ctx, s, now, stats)
		}
		return nil
	}

	if analysis.RiskLevel == streak.RiskSafe {
		return nil
	}

	stats.StreaksAtRisk++
	if j.metrics != nil {
		j.metrics.StreaksAtRisk.WithLabelValues(analysis.RiskLevel.String()).Inc()
	}

	// Publish even when the reminder is suppressed: downstream consumers
	// (badges, in-app banners) react to risk, not only to pushes.
	if j.publisher != nil {
		event := shared.NewStreakAtRiskEvent(
			analysis.UserID,
			analysis.StreakID,
			string(analysis.StreakType),
			analysis.RiskLevel.String(),
			analysis.UrgencyScore,
		)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish risk event",
				slog.String("streak_id", analysis.StreakID),
				slog.Any("error", err),
			)
		}
	}

	if !analysis.ShouldRemind {
		return nil
	}

	return j.sendReminder(ctx, s, *analysis, now, stats)
}

// sendReminder claims the cooldown and hands the reminder to the scheduler.
func (j *ScanStreakRisksJob) sendReminder(ctx context.Context, s *streak.Streak, analysis streak.RiskAnalysis, now time.Time, stats *ScanStreakRisksStats) error {
	if j.tracker != nil {
		acquired, err := j.tracker.TryAcquire(ctx, s.UserID, s.ID, j.config.ReminderCooldown)
		if err != nil {
			return fmt.Errorf("failed to acquire reminder slot: %w", err)
		}
		if !acquired {
			if j.metrics != nil {
				j.metrics.RemindersThrottled.Inc()
			}
			return nil
		}
	}

	if err := j.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := j.notifier.ScheduleStreakReminder(ctx, analysis); err != nil {
		// Release the slot so the next scan can retry.
		if j.tracker != nil {
			if clearErr := j.tracker.Clear(ctx, s.UserID, s.ID); clearErr != nil {
				j.logger.Warn("failed to clear reminder slot",
					slog.String("streak_id", s.ID),
					slog.Any("error", clearErr),
				)
			}
		}
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}

	s.MarkReminderSent(now)
	if err := j.streakRepo.Update(ctx, s); err != nil {
		// The reminder went out; a lost timestamp only risks one extra
		// reminder after the tracker TTL lapses.
		j.logger.Warn("failed to persist reminder timestamp",
			slog.String("streak_id", s.ID),
			slog.Any("error", err),
		)
	}

	stats.RemindersSent++
	if j.metrics != nil {
		j.metrics.RemindersSent.Inc()
	}

	return nil
}

// breakStreak marks a past-grace streak broken. Recovery bootstrapping
// happens in the streak.broken event handler.
func (j *ScanStreakRisksJob) breakStreak(ctx context.Context, s *streak.Streak, now time.Time, stats *ScanStreakRisksStats) error {
	previousCount := s.CurrentCount
	daysMissed := s.DaysSinceActivity(now)

	s.MarkBroken(now)
	if err := j.streakRepo.Update(ctx, s); err != nil {
		return fmt.Errorf("failed to mark streak broken: %w", err)
	}

	stats.StreaksBroken++
	if j.metrics != nil {
		j.metrics.StreaksBroken.Inc()
	}

	if j.publisher != nil {
		event := shared.NewStreakBrokenEvent(s.UserID, s.ID, string(s.Type), previousCount, daysMissed)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish streak broken event",
				slog.String("streak_id", s.ID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}
