package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	assert.True(t, ff.IsEnabled(FeatureStreakTracking, ctx))
	assert.True(t, ff.IsEnabled(FeatureStreakRecovery, ctx))
	assert.True(t, ff.IsEnabled(FeatureGamificationPoints, ctx))
	assert.False(t, ff.IsEnabled(FeatureExperimentalRedisBus, ctx))
	assert.False(t, ff.IsEnabled("does.not.exist", ctx))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_STREAK_RECOVERY", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_REDIS_BUS", "true")
	t.Setenv("FEATURE_GAMIFICATION_MICRO_WINS", "75")

	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	assert.False(t, ff.IsEnabled(FeatureStreakRecovery, ctx))
	assert.True(t, ff.IsEnabled(FeatureExperimentalRedisBus, ctx))

	all := ff.GetAllFeatures()
	assert.Equal(t, 75, all[FeatureGamificationMicroWins].RolloutPercent)
}

func TestFeatureFlags_RolloutIsConsistentPerUser(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureGamificationMicroWins, 50))

	first := ff.IsEnabled(FeatureGamificationMicroWins, &FeatureContext{UserID: "user-42"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureGamificationMicroWins, &FeatureContext{UserID: "user-42"}),
			"the same user must stay in the same bucket")
	}
}

func TestFeatureFlags_RolloutBoundaries(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	require.NoError(t, ff.SetRolloutPercent(FeatureGamificationMicroWins, 100))
	assert.True(t, ff.IsEnabled(FeatureGamificationMicroWins, ctx))

	require.NoError(t, ff.SetRolloutPercent(FeatureGamificationMicroWins, 0))
	assert.False(t, ff.IsEnabled(FeatureGamificationMicroWins, ctx))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureGamificationMicroWins, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 10), ErrFeatureNotFound)
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureStreakReminders))

	ff.SetUserOverride("user-1", FeatureStreakReminders, true)
	assert.True(t, ff.IsEnabled(FeatureStreakReminders, &FeatureContext{UserID: "user-1"}))
	assert.False(t, ff.IsEnabled(FeatureStreakReminders, &FeatureContext{UserID: "user-2"}))

	ff.ClearUserOverrides("user-1")
	assert.False(t, ff.IsEnabled(FeatureStreakReminders, &FeatureContext{UserID: "user-1"}))
}

func TestFeatureFlags_InternalUsersSeeEverything(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureExperimentalRedisBus))

	assert.True(t, ff.IsEnabled(FeatureExperimentalRedisBus, &FeatureContext{UserID: "staff-1", Internal: true}))
}

func TestFeatureFlags_TimeWindow(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	feature := &Feature{
		Name:           "promo.window",
		Enabled:        true,
		RolloutPercent: 100,
		EnabledFrom:    &future,
	}
	ff.features["promo.window"] = feature
	assert.False(t, ff.IsEnabled("promo.window", ctx), "not yet active")

	feature.EnabledFrom = &past
	assert.True(t, ff.IsEnabled("promo.window", ctx))

	feature.EnabledUntil = &past
	assert.False(t, ff.IsEnabled("promo.window", ctx), "window already over")
}

func TestFeatureFlags_SegmentTargeting(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.features["beta.only"] = &Feature{
		Name:           "beta.only",
		Enabled:        true,
		RolloutPercent: 100,
		TargetSegments: []string{"beta"},
	}

	assert.True(t, ff.IsEnabled("beta.only", &FeatureContext{UserID: "u", Segment: "beta"}))
	assert.False(t, ff.IsEnabled("beta.only", &FeatureContext{UserID: "u", Segment: "free"}))
}

func TestFeatureFlags_Variants(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.features["celebration.style"] = &Feature{
		Name:           "celebration.style",
		Enabled:        true,
		RolloutPercent: 100,
		Variants:       []string{"confetti", "fireworks"},
	}

	ctx := &FeatureContext{UserID: "user-1"}
	variant := ff.GetVariant("celebration.style", ctx)
	assert.Contains(t, []string{"confetti", "fireworks"}, variant)
	assert.Equal(t, variant, ff.GetVariant("celebration.style", ctx), "variant assignment is sticky")

	assert.Empty(t, ff.GetVariant("celebration.style", nil))
	assert.Empty(t, ff.GetVariant(FeatureStreakTracking, ctx), "no variants defined")
}
