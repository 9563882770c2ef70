package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration bookkeeping table.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: failed to create migration table: %v", ErrMigrationFailed, err)
	}
	return nil
}

// GetAppliedMigrations returns versions already applied.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query applied migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan migration row: %v", ErrMigrationFailed, err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, migration := range pending {
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, migration.UpSQL); err != nil {
				return fmt.Errorf("migration %03d (%s): %w", migration.Version, migration.Name, err)
			}
			record := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			if _, err := tx.Exec(ctx, record, migration.Version, migration.Name); err != nil {
				return fmt.Errorf("migration %03d bookkeeping: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STREAKS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS streaks (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    streak_type VARCHAR(40) NOT NULL,
    current_count INTEGER NOT NULL DEFAULT 0,
    best_count INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE NOT NULL,
    started_date DATE NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    risk_level VARCHAR(20) NOT NULL DEFAULT 'safe',
    recovery_attempts INTEGER NOT NULL DEFAULT 0,
    last_reminder_sent TIMESTAMP WITH TIME ZONE,
    last_milestone INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak_type CHECK (streak_type IN (
        'daily_check_in', 'transaction_categorization',
        'budget_adherence', 'savings_contribution')),
    CONSTRAINT valid_risk_level CHECK (risk_level IN (
        'safe', 'low_risk', 'medium_risk', 'high_risk', 'broken')),
    CONSTRAINT valid_counts CHECK (current_count >= 0 AND best_count >= current_count)
);

-- One live streak per (user, type); broken incarnations stay as history.
CREATE UNIQUE INDEX IF NOT EXISTS idx_streaks_user_type_active
    ON streaks(user_id, streak_type) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_streaks_user_id ON streaks(user_id);
CREATE INDEX IF NOT EXISTS idx_streaks_last_activity
    ON streaks(last_activity_date) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_streaks_top
    ON streaks(streak_type, current_count DESC) WHERE is_active;
`

const migration001Down = `DROP TABLE IF EXISTS streaks;`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: STREAK RECOVERIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS streak_recoveries (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    original_streak_id UUID NOT NULL,
    streak_type VARCHAR(40) NOT NULL,
    original_count INTEGER NOT NULL,
    broken_at TIMESTAMP WITH TIME ZONE NOT NULL,
    recovery_started TIMESTAMP WITH TIME ZONE NOT NULL,
    recovery_completed TIMESTAMP WITH TIME ZONE,
    deadline TIMESTAMP WITH TIME ZONE NOT NULL,
    required_actions INTEGER NOT NULL,
    is_successful BOOLEAN NOT NULL DEFAULT FALSE,
    actions JSONB NOT NULL DEFAULT '[]'::jsonb,
    version INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_required CHECK (required_actions > 0)
);

-- At most one open recovery per streak.
CREATE UNIQUE INDEX IF NOT EXISTS idx_recoveries_open_streak
    ON streak_recoveries(original_streak_id) WHERE recovery_completed IS NULL;
CREATE INDEX IF NOT EXISTS idx_recoveries_user
    ON streak_recoveries(user_id) WHERE recovery_completed IS NULL;
CREATE INDEX IF NOT EXISTS idx_recoveries_deadline
    ON streak_recoveries(deadline) WHERE recovery_completed IS NULL;
`

const migration002Down = `DROP TABLE IF EXISTS streak_recoveries;`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ENGAGEMENT PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS engagement_profiles (
    user_id VARCHAR(64) PRIMARY KEY,
    total_points INTEGER NOT NULL DEFAULT 0,
    last_activity TIMESTAMP WITH TIME ZONE NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (total_points >= 0)
);
`

const migration003Down = `DROP TABLE IF EXISTS engagement_profiles;`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    achievement_type VARCHAR(40) NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT uniq_user_achievement UNIQUE (user_id, achievement_type)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);
`

const migration004Down = `DROP TABLE IF EXISTS achievements;`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: POINTS HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS points_history (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    points INTEGER NOT NULL,
    action VARCHAR(40) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_history_points CHECK (points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_points_history_user
    ON points_history(user_id, earned_at DESC);
CREATE INDEX IF NOT EXISTS idx_points_history_user_action
    ON points_history(user_id, action, earned_at DESC);
`

const migration005Down = `DROP TABLE IF EXISTS points_history;`

// GetMigrations returns every embedded migration.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_streaks", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_streak_recoveries", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_engagement_profiles", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_achievements", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_points_history", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}
