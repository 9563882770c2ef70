package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryRepository implements streak.RecoveryRepository for PostgreSQL.
// Completed actions are kept as a JSONB document: they are only ever read
// back as a whole and never queried individually.
type RecoveryRepository struct {
	conn *Connection
}

// NewRecoveryRepository creates a new RecoveryRepository.
func NewRecoveryRepository(conn *Connection) *RecoveryRepository {
	return &RecoveryRepository{conn: conn}
}

const recoveryColumns = `
	id, user_id, original_streak_id, streak_type, original_count,
	broken_at, recovery_started, recovery_completed, deadline,
	required_actions, is_successful, actions, version`

// recoveryActionDoc is the JSONB shape of one completed action.
type recoveryActionDoc struct {
	ActionType    string    `json:"action_type"`
	CompletedAt   time.Time `json:"completed_at"`
	PointsAwarded int       `json:"points_awarded"`
}

// Create saves a new recovery.
func (r *RecoveryRepository) Create(ctx context.Context, rec *streak.StreakRecovery) error {
	query := `
		INSERT INTO streak_recoveries (
			id, user_id, original_streak_id, streak_type, original_count,
			broken_at, recovery_started, recovery_completed, deadline,
			required_actions, is_successful, actions, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	actionsJSON, err := marshalActions(rec.Actions)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.OriginalStreakID,
		string(rec.StreakType),
		rec.OriginalCount,
		rec.BrokenAt,
		rec.RecoveryStarted,
		rec.RecoveryCompleted,
		rec.Deadline,
		rec.RequiredActions,
		rec.IsSuccessful,
		actionsJSON,
		rec.Version,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrRecoveryAlreadyOpen
		}
		return fmt.Errorf("failed to create recovery: %w", err)
	}

	return nil
}

// GetByID returns a recovery by ID.
func (r *RecoveryRepository) GetByID(ctx context.Context, id string) (*streak.StreakRecovery, error) {
	query := `SELECT` + recoveryColumns + ` FROM streak_recoveries WHERE id = $1`
	return r.scanRecovery(r.conn.QueryRow(ctx, query, id))
}

// GetOpenByStreak returns the open recovery of a streak, if any.
func (r *RecoveryRepository) GetOpenByStreak(ctx context.Context, streakID string) (*streak.StreakRecovery, error) {
	query := `SELECT` + recoveryColumns + `
		FROM streak_recoveries
		WHERE original_streak_id = $1 AND recovery_completed IS NULL
	`
	return r.scanRecovery(r.conn.QueryRow(ctx, query, streakID))
}

// GetActiveByUser returns all open recoveries of a user.
func (r *RecoveryRepository) GetActiveByUser(ctx context.Context, userID string) ([]*streak.StreakRecovery, error) {
	query := `SELECT` + recoveryColumns + `
		FROM streak_recoveries
		WHERE user_id = $1 AND recovery_completed IS NULL
		ORDER BY deadline
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recoveries: %w", err)
	}
	defer rows.Close()

	return r.scanRecoveries(rows)
}

// Update saves a recovery guarded by its version.
func (r *RecoveryRepository) Update(ctx context.Context, rec *streak.StreakRecovery) error {
	query := `
		UPDATE streak_recoveries SET
			recovery_completed = $1,
			is_successful = $2,
			actions = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
	`

	actionsJSON, err := marshalActions(rec.Actions)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(ctx, query,
		rec.RecoveryCompleted,
		rec.IsSuccessful,
		actionsJSON,
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update recovery: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, rec.ID); getErr != nil {
			return getErr
		}
		return shared.ErrOptimisticLock
	}

	rec.Version++
	return nil
}

// FindExpired returns open recoveries whose deadline has passed.
func (r *RecoveryRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]*streak.StreakRecovery, error) {
	query := `SELECT` + recoveryColumns + `
		FROM streak_recoveries
		WHERE recovery_completed IS NULL AND deadline < $1
		ORDER BY deadline
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired recoveries: %w", err)
	}
	defer rows.Close()

	return r.scanRecoveries(rows)
}

// DeleteByUser removes every recovery row of a user (data purge).
func (r *RecoveryRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM streak_recoveries WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete recoveries: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func marshalActions(actions []streak.RecoveryAction) ([]byte, error) {
	docs := make([]recoveryActionDoc, len(actions))
	for i, a := range actions {
		docs[i] = recoveryActionDoc{
			ActionType:    string(a.ActionType),
			CompletedAt:   a.CompletedAt,
			PointsAwarded: a.PointsAwarded,
		}
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recovery actions: %w", err)
	}
	return data, nil
}

func (r *RecoveryRepository) scanRecovery(row pgx.Row) (*streak.StreakRecovery, error) {
	var rec streak.StreakRecovery
	var streakType string
	var actionsJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.OriginalStreakID,
		&streakType,
		&rec.OriginalCount,
		&rec.BrokenAt,
		&rec.RecoveryStarted,
		&rec.RecoveryCompleted,
		&rec.Deadline,
		&rec.RequiredActions,
		&rec.IsSuccessful,
		&actionsJSON,
		&rec.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecoveryNotFound
		}
		return nil, fmt.Errorf("failed to scan recovery: %w", err)
	}

	rec.StreakType = streak.Type(streakType)

	var docs []recoveryActionDoc
	if err := json.Unmarshal(actionsJSON, &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recovery actions: %w", err)
	}
	rec.Actions = make([]streak.RecoveryAction, len(docs))
	for i, d := range docs {
		rec.Actions[i] = streak.RecoveryAction{
			ActionType:    shared.ActionType(d.ActionType),
			CompletedAt:   d.CompletedAt,
			PointsAwarded: d.PointsAwarded,
		}
	}

	return &rec, nil
}

func (r *RecoveryRepository) scanRecoveries(rows pgx.Rows) ([]*streak.StreakRecovery, error) {
	var recoveries []*streak.StreakRecovery
	for rows.Next() {
		rec, err := r.scanRecovery(rows)
		if err != nil {
			return nil, err
		}
		recoveries = append(recoveries, rec)
	}
	return recoveries, rows.Err()
}
