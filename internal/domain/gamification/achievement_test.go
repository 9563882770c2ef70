package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

func unlockedTypes(unlocks []Unlocked) []AchievementType {
	out := make([]AchievementType, len(unlocks))
	for i, u := range unlocks {
		out[i] = u.Definition.Type
	}
	return out
}

func TestEvaluateUnlocks_FirstAction(t *testing.T) {
	ctx := UnlockContext{
		Action:        shared.ActionCheckBalance,
		IsFirstAction: true,
	}

	unlocks := EvaluateUnlocks(ctx, map[AchievementType]bool{}, DefaultAchievementCatalog())

	assert.Equal(t, []AchievementType{AchievementFirstAction}, unlockedTypes(unlocks))
}

func TestEvaluateUnlocks_ActionSpecific(t *testing.T) {
	catalog := DefaultAchievementCatalog()

	unlocks := EvaluateUnlocks(UnlockContext{Action: shared.ActionCategorizeTransaction}, map[AchievementType]bool{}, catalog)
	assert.Contains(t, unlockedTypes(unlocks), AchievementFirstCategorization)

	unlocks = EvaluateUnlocks(UnlockContext{Action: shared.ActionLinkAccount}, map[AchievementType]bool{}, catalog)
	assert.Contains(t, unlockedTypes(unlocks), AchievementAccountLinked)
}

func TestEvaluateUnlocks_StreakThresholds(t *testing.T) {
	s, err := streak.NewStreak("streak-1", "user-1", streak.TypeDailyCheckIn, testNow)
	require.NoError(t, err)
	s.CurrentCount = 30
	s.BestCount = 30

	ctx := UnlockContext{
		Action:  shared.ActionDailyCheckIn,
		Streaks: []*streak.Streak{s},
	}

	unlocks := EvaluateUnlocks(ctx, map[AchievementType]bool{}, DefaultAchievementCatalog())

	types := unlockedTypes(unlocks)
	assert.Contains(t, types, AchievementStreak3)
	assert.Contains(t, types, AchievementStreak7)
	assert.Contains(t, types, AchievementStreak30)
	assert.NotContains(t, types, AchievementStreak90)
}

func TestEvaluateUnlocks_LevelAndPoints(t *testing.T) {
	p, _ := NewProfile("user-1", testNow)
	p.AwardPoints(1700, testNow) // level 5, past 1000 points

	ctx := UnlockContext{Action: shared.ActionCompleteLesson, Profile: p}

	unlocks := EvaluateUnlocks(ctx, map[AchievementType]bool{}, DefaultAchievementCatalog())

	types := unlockedTypes(unlocks)
	assert.Contains(t, types, AchievementLevel5)
	assert.Contains(t, types, AchievementPoints1000)
	assert.NotContains(t, types, AchievementLevel10)
}

func TestEvaluateUnlocks_Comeback(t *testing.T) {
	ctx := UnlockContext{Action: shared.ActionDailyCheckIn, RecoverySucceeded: true}

	unlocks := EvaluateUnlocks(ctx, map[AchievementType]bool{}, DefaultAchievementCatalog())

	assert.Equal(t, []AchievementType{AchievementComeback}, unlockedTypes(unlocks))
}

func TestEvaluateUnlocks_Idempotent(t *testing.T) {
	ctx := UnlockContext{Action: shared.ActionLinkAccount, IsFirstAction: true}
	already := map[AchievementType]bool{}
	catalog := DefaultAchievementCatalog()

	first := EvaluateUnlocks(ctx, already, catalog)
	require.NotEmpty(t, first)

	// The same state with the accumulated set unlocks nothing new.
	second := EvaluateUnlocks(ctx, already, catalog)
	assert.Empty(t, second)
}

func TestNewAchievement(t *testing.T) {
	a, err := NewAchievement("a-1", "user-1", AchievementStreak7, testNow)
	require.NoError(t, err)
	assert.Equal(t, AchievementStreak7, a.Type)
	assert.Equal(t, testNow, a.UnlockedAt)

	_, err = NewAchievement("a-2", "", AchievementStreak7, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestDefaultAchievementCatalog_Complete(t *testing.T) {
	catalog := DefaultAchievementCatalog()
	for _, at := range []AchievementType{
		AchievementFirstAction, AchievementFirstCategorization, AchievementAccountLinked,
		AchievementStreak3, AchievementStreak7, AchievementStreak30, AchievementStreak90,
		AchievementLevel5, AchievementLevel10, AchievementComeback, AchievementPoints1000,
	} {
		def, ok := catalog[at]
		require.True(t, ok, "catalog is missing %s", at)
		assert.Equal(t, at, def.Type)
		assert.NotEmpty(t, def.Title)
		assert.Greater(t, def.BonusPoints, 0)
	}
}
