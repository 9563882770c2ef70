package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// StreakLeaderboard implements streak.LeaderboardCache with one sorted set
// per streak type. The score is the current streak count; ties resolve
// lexicographically by user ID, which is stable enough for display.
type StreakLeaderboard struct {
	cache *Cache
}

// NewStreakLeaderboard creates a new StreakLeaderboard.
func NewStreakLeaderboard(cache *Cache) *StreakLeaderboard {
	return &StreakLeaderboard{cache: cache}
}

func leaderboardKey(t streak.Type) string {
	return PrefixLeaderboard + string(t)
}

// RecordCount updates the user's streak count in the sorted set.
func (l *StreakLeaderboard) RecordCount(ctx context.Context, t streak.Type, userID string, count int) error {
	key := leaderboardKey(t)
	pipe := l.cache.Client().TxPipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(count), Member: userID})
	pipe.Expire(ctx, key, TTLLeaderboard)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("streak_leaderboard: failed to record count: %w", err)
	}
	return nil
}

// Top returns the best current streaks of a type, longest first.
func (l *StreakLeaderboard) Top(ctx context.Context, t streak.Type, limit int) ([]streak.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := l.cache.Client().ZRevRangeWithScores(ctx, leaderboardKey(t), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("streak_leaderboard: failed to read top: %w", err)
	}

	entries := make([]streak.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		userID, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, streak.LeaderboardEntry{
			UserID:       userID,
			CurrentCount: int(m.Score),
		})
	}

	return entries, nil
}

// Remove drops the user from the leaderboard (data purge).
func (l *StreakLeaderboard) Remove(ctx context.Context, t streak.Type, userID string) error {
	if err := l.cache.Client().ZRem(ctx, leaderboardKey(t), userID).Err(); err != nil {
		return fmt.Errorf("streak_leaderboard: failed to remove user: %w", err)
	}
	return nil
}
