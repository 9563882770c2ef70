package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

const streakColumns = `
	id, user_id, streak_type, current_count, best_count,
	last_activity_date, started_date, is_active, risk_level,
	recovery_attempts, last_reminder_sent, last_milestone,
	version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new streak row.
func (r *StreakRepository) Create(ctx context.Context, s *streak.Streak) error {
	query := `
		INSERT INTO streaks (
			id, user_id, streak_type, current_count, best_count,
			last_activity_date, started_date, is_active, risk_level,
			recovery_attempts, last_reminder_sent, last_milestone,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.UserID,
		string(s.Type),
		s.CurrentCount,
		s.BestCount,
		s.LastActivityDate,
		s.StartedDate,
		s.IsActive,
		string(s.RiskLevel),
		s.RecoveryAttempts,
		s.LastReminderSent,
		s.LastMilestone,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStreakAlreadyExists
		}
		return fmt.Errorf("failed to create streak: %w", err)
	}

	return nil
}

// GetByID returns a streak by ID.
func (r *StreakRepository) GetByID(ctx context.Context, id string) (*streak.Streak, error) {
	query := `SELECT` + streakColumns + ` FROM streaks WHERE id = $1`
	return r.scanStreak(r.conn.QueryRow(ctx, query, id))
}

// GetByUserAndType returns the live streak for a (user, type) pair.
func (r *StreakRepository) GetByUserAndType(ctx context.Context, userID string, t streak.Type) (*streak.Streak, error) {
	query := `SELECT` + streakColumns + `
		FROM streaks
		WHERE user_id = $1 AND streak_type = $2 AND is_active
	`
	return r.scanStreak(r.conn.QueryRow(ctx, query, userID, string(t)))
}

// GetActiveByUser returns all active streaks of a user.
func (r *StreakRepository) GetActiveByUser(ctx context.Context, userID string) ([]*streak.Streak, error) {
	query := `SELECT` + streakColumns + `
		FROM streaks
		WHERE user_id = $1 AND is_active
		ORDER BY streak_type
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query streaks: %w", err)
	}
	defer rows.Close()

	return r.scanStreaks(rows)
}

// Update saves a streak guarded by its version.
func (r *StreakRepository) Update(ctx context.Context, s *streak.Streak) error {
	query := `
		UPDATE streaks SET
			current_count = $1,
			best_count = $2,
			last_activity_date = $3,
			started_date = $4,
			is_active = $5,
			risk_level = $6,
			recovery_attempts = $7,
			last_reminder_sent = $8,
			last_milestone = $9,
			version = version + 1,
			updated_at = $10
		WHERE id = $11 AND version = $12
	`

	result, err := r.conn.Exec(ctx, query,
		s.CurrentCount,
		s.BestCount,
		s.LastActivityDate,
		s.StartedDate,
		s.IsActive,
		string(s.RiskLevel),
		s.RecoveryAttempts,
		s.LastReminderSent,
		s.LastMilestone,
		time.Now().UTC(),
		s.ID,
		s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Row exists with a newer version, or does not exist at all.
		if _, getErr := r.GetByID(ctx, s.ID); getErr != nil {
			return getErr
		}
		return shared.ErrOptimisticLock
	}

	s.Version++
	return nil
}

// DeleteByUser removes every streak row of a user (data purge).
func (r *StreakRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM streaks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete streaks: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Operations
// ─────────────────────────────────────────────────────────────────────────────

// FindStale returns active streaks whose last activity predates the cutoff.
func (r *StreakRepository) FindStale(ctx context.Context, lastActivityBefore time.Time, limit int) ([]*streak.Streak, error) {
	query := `SELECT` + streakColumns + `
		FROM streaks
		WHERE is_active AND last_activity_date < $1
		ORDER BY last_activity_date
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, lastActivityBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale streaks: %w", err)
	}
	defer rows.Close()

	return r.scanStreaks(rows)
}

// GetTopStreaks returns the longest active streaks of a type.
func (r *StreakRepository) GetTopStreaks(ctx context.Context, t streak.Type, limit int) ([]*streak.Streak, error) {
	query := `SELECT` + streakColumns + `
		FROM streaks
		WHERE streak_type = $1 AND is_active
		ORDER BY current_count DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top streaks: %w", err)
	}
	defer rows.Close()

	return r.scanStreaks(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *StreakRepository) scanStreak(row pgx.Row) (*streak.Streak, error) {
	var s streak.Streak
	var streakType, riskLevel string

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&streakType,
		&s.CurrentCount,
		&s.BestCount,
		&s.LastActivityDate,
		&s.StartedDate,
		&s.IsActive,
		&riskLevel,
		&s.RecoveryAttempts,
		&s.LastReminderSent,
		&s.LastMilestone,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, fmt.Errorf("failed to scan streak: %w", err)
	}

	s.Type = streak.Type(streakType)
	s.RiskLevel = streak.RiskLevel(riskLevel)
	return &s, nil
}

func (r *StreakRepository) scanStreaks(rows pgx.Rows) ([]*streak.Streak, error) {
	var streaks []*streak.Streak
	for rows.Next() {
		s, err := r.scanStreak(rows)
		if err != nil {
			return nil, err
		}
		streaks = append(streaks, s)
	}
	return streaks, rows.Err()
}
