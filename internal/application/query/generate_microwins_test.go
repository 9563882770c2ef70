package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

func TestGenerateMicroWins_RescueComesFirst(t *testing.T) {
	streaks := &fakeStreakRepo{}
	seedStreak(t, streaks, "s-1", "user-1", streak.TypeBudgetAdherence, 10, 2)
	history := &fakeHistoryRepo{}

	h := NewGenerateMicroWinsHandler(streaks, history, nil, nil)

	result, err := h.Handle(context.Background(), GenerateMicroWinsQuery{
		UserID: "user-1", Limit: 5, AsOf: queryNow,
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.MicroWins)
	rescue := result.MicroWins[0]
	assert.Equal(t, string(shared.ActionBudgetReview), rescue.Action)
	assert.Equal(t, 10, rescue.Points)
	assert.Equal(t, "budget_adherence", rescue.StreakType)
	assert.Equal(t, "s-1", rescue.StreakID)
	assert.True(t, rescue.IsPersonalized, "a rescue is tied to the user's own streak")
	assert.NotEmpty(t, rescue.Title)
	assert.NotEmpty(t, rescue.Reason)
}

func TestGenerateMicroWins_HabitSuggestionsWithoutStreaks(t *testing.T) {
	h := NewGenerateMicroWinsHandler(&fakeStreakRepo{}, &fakeHistoryRepo{}, nil, nil)

	// Default limit is 3.
	result, err := h.Handle(context.Background(), GenerateMicroWinsQuery{
		UserID: "user-1", AsOf: queryNow,
	})
	require.NoError(t, err)

	require.Len(t, result.MicroWins, 3)
	for _, w := range result.MicroWins {
		assert.Empty(t, w.StreakType, "habit suggestions are not tied to a streak")
		assert.False(t, w.IsPersonalized)
		assert.Positive(t, w.Points)
	}
}

func TestGenerateMicroWins_SkipsRecentActions(t *testing.T) {
	history := &fakeHistoryRepo{
		lastTimes: map[string]time.Time{
			string(shared.ActionDailyCheckIn): queryNow.Add(-time.Hour),
		},
	}

	h := NewGenerateMicroWinsHandler(&fakeStreakRepo{}, history, nil, nil)

	result, err := h.Handle(context.Background(), GenerateMicroWinsQuery{
		UserID: "user-1", Limit: 10, AsOf: queryNow,
	})
	require.NoError(t, err)

	for _, w := range result.MicroWins {
		assert.NotEqual(t, string(shared.ActionDailyCheckIn), w.Action)
	}
}

func TestGenerateMicroWins_NegativeLimit(t *testing.T) {
	h := NewGenerateMicroWinsHandler(&fakeStreakRepo{}, &fakeHistoryRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GenerateMicroWinsQuery{UserID: "user-1", Limit: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidLimit)
}
