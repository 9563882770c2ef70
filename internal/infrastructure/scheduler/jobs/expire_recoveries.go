package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE RECOVERIES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireRecoveriesJob closes recovery windows whose grace deadline has
// passed without enough qualifying actions. Expiry is also enforced lazily
// when an action arrives for a stale recovery; this job sweeps the ones no
// action ever reached, so users get a timely "recovery failed" signal.
type ExpireRecoveriesJob struct {
	recoveryRepo streak.RecoveryRepository
	publisher    shared.EventPublisher
	logger       *slog.Logger
	metrics      *Metrics

	config ExpireRecoveriesConfig

	lastRunStats atomic.Value // *ExpireRecoveriesStats
}

// ExpireRecoveriesConfig contains configuration for the expiry job.
type ExpireRecoveriesConfig struct {
	// BatchSize is the maximum number of expired recoveries per run.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultExpireRecoveriesConfig returns sensible defaults.
func DefaultExpireRecoveriesConfig() ExpireRecoveriesConfig {
	return ExpireRecoveriesConfig{
		BatchSize: 200,
		Timeout:   2 * time.Minute,
	}
}

// ExpireRecoveriesStats captures the outcome of one run.
type ExpireRecoveriesStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Found       int
	Expired     int
	Errors      int
}

// NewExpireRecoveriesJob creates the expiry job.
func NewExpireRecoveriesJob(
	recoveryRepo streak.RecoveryRepository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	metrics *Metrics,
	config ExpireRecoveriesConfig,
) *ExpireRecoveriesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExpireRecoveriesConfig().BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultExpireRecoveriesConfig().Timeout
	}

	return &ExpireRecoveriesJob{
		recoveryRepo: recoveryRepo,
		publisher:    publisher,
		logger:       logger.With(slog.String("job", "expire_recoveries")),
		metrics:      metrics,
		config:       config,
	}
}

// Name returns the unique name of the job.
func (j *ExpireRecoveriesJob) Name() string {
	return "expire_recoveries"
}

// Description returns a human-readable description of the job.
func (j *ExpireRecoveriesJob) Description() string {
	return "Closes recovery windows whose grace deadline has passed"
}

// Run executes one sweep over expired open recoveries.
func (j *ExpireRecoveriesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	started := time.Now()
	stats := &ExpireRecoveriesStats{StartedAt: started}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastRunStats.Store(stats)
		if j.metrics != nil {
			j.metrics.JobDuration.WithLabelValues(j.Name()).Observe(stats.CompletedAt.Sub(started).Seconds())
		}
	}()

	now := time.Now().UTC()

	recoveries, err := j.recoveryRepo.FindExpired(ctx, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("expire_recoveries: failed to find expired recoveries: %w", err)
	}
	stats.Found = len(recoveries)

	for _, r := range recoveries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := j.expire(ctx, r, now); err != nil {
			stats.Errors++
			j.logger.Error("failed to expire recovery",
				slog.String("recovery_id", r.ID),
				slog.String("user_id", r.UserID),
				slog.Any("error", err),
			)
			continue
		}
		stats.Expired++
		if j.metrics != nil {
			j.metrics.RecoveriesExpired.Inc()
		}
	}

	j.logger.Info("recovery expiry completed",
		slog.Int("found", stats.Found),
		slog.Int("expired", stats.Expired),
		slog.Int("errors", stats.Errors),
		slog.Duration("duration", time.Since(started)),
	)

	return nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *ExpireRecoveriesJob) LastRunStats() *ExpireRecoveriesStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*ExpireRecoveriesStats)
	}
	return nil
}

// expire marks one recovery failed and publishes the failure event.
func (j *ExpireRecoveriesJob) expire(ctx context.Context, r *streak.StreakRecovery, now time.Time) error {
	if err := r.MarkFailed(now); err != nil {
		// Closed by a concurrent worker between fetch and here.
		if errors.Is(err, shared.ErrRecoveryClosed) {
			return nil
		}
		return err
	}

	if err := j.recoveryRepo.Update(ctx, r); err != nil {
		if errors.Is(err, shared.ErrOptimisticLock) {
			return nil
		}
		return fmt.Errorf("failed to persist failed recovery: %w", err)
	}

	if j.publisher != nil {
		event := shared.NewRecoveryFailedEvent(r.UserID, r.ID, r.ActionsCompleted())
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish recovery failed event",
				slog.String("recovery_id", r.ID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}
