package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/streak"
)

func TestGetTopStreaks_ReadsFromLeaderboard(t *testing.T) {
	leaderboard := &fakeLeaderboard{
		entries: []streak.LeaderboardEntry{
			{UserID: "user-1", CurrentCount: 42},
			{UserID: "user-2", CurrentCount: 17},
		},
	}

	h := NewGetTopStreaksHandler(&fakeStreakRepo{}, leaderboard)

	result, err := h.Handle(context.Background(), GetTopStreaksQuery{
		StreakType: streak.TypeDailyCheckIn, Limit: 10,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "user-1", result.Entries[0].UserID)
	assert.Equal(t, 42, result.Entries[0].CurrentCount)
	assert.Equal(t, 2, result.Entries[1].Rank)
}

func TestGetTopStreaks_FallsBackToRepository(t *testing.T) {
	repo := &fakeStreakRepo{}
	seedStreak(t, repo, "s-1", "user-1", streak.TypeDailyCheckIn, 9, 0)
	seedStreak(t, repo, "s-2", "user-2", streak.TypeDailyCheckIn, 30, 0)

	leaderboard := &fakeLeaderboard{err: errors.New("redis down")}

	h := NewGetTopStreaksHandler(repo, leaderboard)

	result, err := h.Handle(context.Background(), GetTopStreaksQuery{
		StreakType: streak.TypeDailyCheckIn, Limit: 10,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "user-2", result.Entries[0].UserID, "longest streak first")
	assert.Equal(t, 30, result.Entries[0].CurrentCount)
}

func TestGetTopStreaks_DefaultAndMaxLimit(t *testing.T) {
	q := GetTopStreaksQuery{StreakType: streak.TypeDailyCheckIn}
	require.NoError(t, q.Validate())
	assert.Equal(t, 10, q.Limit)

	q = GetTopStreaksQuery{StreakType: streak.TypeDailyCheckIn, Limit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.Limit)
}

func TestGetTopStreaks_InvalidType(t *testing.T) {
	h := NewGetTopStreaksHandler(&fakeStreakRepo{}, nil)

	_, err := h.Handle(context.Background(), GetTopStreaksQuery{StreakType: "unknown"})
	assert.Error(t, err)
}
