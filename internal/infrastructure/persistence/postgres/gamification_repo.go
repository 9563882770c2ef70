package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements gamification.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// Create saves a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *gamification.Profile) error {
	query := `
		INSERT INTO engagement_profiles (
			user_id, total_points, last_activity, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		p.UserID,
		int(p.TotalPoints),
		p.LastActivity,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByUserID returns a profile by user ID.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*gamification.Profile, error) {
	query := `
		SELECT user_id, total_points, last_activity, version, created_at, updated_at
		FROM engagement_profiles
		WHERE user_id = $1
	`

	var p gamification.Profile
	var points int

	err := r.conn.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&points,
		&p.LastActivity,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.TotalPoints = gamification.Points(points)
	return &p, nil
}

// Update saves a profile guarded by its version.
func (r *ProfileRepository) Update(ctx context.Context, p *gamification.Profile) error {
	query := `
		UPDATE engagement_profiles SET
			total_points = $1,
			last_activity = $2,
			version = version + 1,
			updated_at = $3
		WHERE user_id = $4 AND version = $5
	`

	result, err := r.conn.Exec(ctx, query,
		int(p.TotalPoints),
		p.LastActivity,
		time.Now().UTC(),
		p.UserID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByUserID(ctx, p.UserID); getErr != nil {
			return getErr
		}
		return shared.ErrOptimisticLock
	}

	p.Version++
	return nil
}

// DeleteByUser removes a user's profile (data purge).
func (r *ProfileRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM engagement_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements gamification.AchievementRepository.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// Create saves an unlocked achievement. A duplicate (user, type) insert is
// a no-op: the first unlock wins.
func (r *AchievementRepository) Create(ctx context.Context, a *gamification.Achievement) error {
	query := `
		INSERT INTO achievements (id, user_id, achievement_type, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_type) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query, a.ID, a.UserID, string(a.Type), a.UnlockedAt)
	if err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// GetByUser returns every achievement of a user, oldest first.
func (r *AchievementRepository) GetByUser(ctx context.Context, userID string) ([]*gamification.Achievement, error) {
	query := `
		SELECT id, user_id, achievement_type, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*gamification.Achievement
	for rows.Next() {
		var a gamification.Achievement
		var achievementType string
		if err := rows.Scan(&a.ID, &a.UserID, &achievementType, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Type = gamification.AchievementType(achievementType)
		achievements = append(achievements, &a)
	}

	return achievements, rows.Err()
}

// DeleteByUser removes every achievement of a user (data purge).
func (r *AchievementRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM achievements WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete achievements: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository implements gamification.HistoryRepository.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// Append adds an audit record.
func (r *HistoryRepository) Append(ctx context.Context, e *gamification.HistoryEntry) error {
	query := `
		INSERT INTO points_history (id, user_id, points, action, description, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query, e.ID, e.UserID, e.Points, string(e.Action), e.Description, e.EarnedAt)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// GetByUser returns the latest limit records of a user, newest first.
func (r *HistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*gamification.HistoryEntry, error) {
	query := `
		SELECT id, user_id, points, action, description, earned_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY earned_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*gamification.HistoryEntry
	for rows.Next() {
		var e gamification.HistoryEntry
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &action, &e.Description, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Action = shared.ActionType(action)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// LastActionTimes returns the latest earn time per action type.
func (r *HistoryRepository) LastActionTimes(ctx context.Context, userID string) (map[string]time.Time, error) {
	query := `
		SELECT action, MAX(earned_at)
		FROM points_history
		WHERE user_id = $1
		GROUP BY action
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query last action times: %w", err)
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var action string
		var at time.Time
		if err := rows.Scan(&action, &at); err != nil {
			return nil, fmt.Errorf("failed to scan action time: %w", err)
		}
		result[action] = at
	}

	return result, rows.Err()
}

// DeleteByUser removes the audit log of a user (data purge).
func (r *HistoryRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM points_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
