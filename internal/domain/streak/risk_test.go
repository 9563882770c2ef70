package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeStreak(t *testing.T, streakType Type, count int, lastActivity time.Time) *Streak {
	t.Helper()
	s, err := NewStreak("streak-1", "user-1", streakType, lastActivity)
	require.NoError(t, err)
	s.CurrentCount = count
	s.BestCount = count
	return s
}

func TestAssess_RiskLevels(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())

	tests := []struct {
		name       string
		streakType Type
		daysAgo    int
		expected   RiskLevel
	}{
		{"active today", TypeDailyCheckIn, 0, RiskSafe},
		{"one day quiet", TypeDailyCheckIn, 1, RiskLow},
		{"two days quiet", TypeDailyCheckIn, 2, RiskMedium},
		{"weekly, one day over the period", TypeSavingsContribution, 7, RiskLow},
		{"weekly, two days over", TypeSavingsContribution, 8, RiskMedium},
		{"weekly, deep into the grace", TypeSavingsContribution, 12, RiskHigh},
		{"weekly, last day of the grace", TypeSavingsContribution, 14, RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := day(20).Add(12 * time.Hour)
			s := activeStreak(t, tt.streakType, 5, day(20-tt.daysAgo))

			analysis := assessor.Assess(s, now)

			require.NotNil(t, analysis)
			assert.Equal(t, tt.expected, analysis.RiskLevel)
			assert.Equal(t, tt.daysAgo, analysis.DaysSinceLastActivity)
		})
	}
}

func TestAssess_SkipsInactiveAndUnknown(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())

	assert.Nil(t, assessor.Assess(nil, day(0)))

	broken := activeStreak(t, TypeDailyCheckIn, 5, day(0))
	broken.MarkBroken(day(3))
	assert.Nil(t, assessor.Assess(broken, day(3)))

	unknown := activeStreak(t, TypeDailyCheckIn, 5, day(0))
	unknown.Type = Type("bogus")
	assert.Nil(t, assessor.Assess(unknown, day(1)))
}

func TestAssess_BeyondGraceIsNotAtRisk(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())
	s := activeStreak(t, TypeDailyCheckIn, 5, day(0))

	// Day 2 ends the daily grace: acting then still saves the streak.
	// From day 3 the gap exceeds the grace, so nothing can save it and
	// the streak is no longer reported as "at risk".
	assert.NotNil(t, assessor.Assess(s, day(2)))
	assert.Nil(t, assessor.Assess(s, day(3)))

	weekly := activeStreak(t, TypeSavingsContribution, 5, day(0))
	assert.NotNil(t, assessor.Assess(weekly, day(14)))
	assert.Nil(t, assessor.Assess(weekly, day(15)))
}

func TestAssess_WeeklyStreakInPeriodIsSafe(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())
	s := activeStreak(t, TypeSavingsContribution, 4, day(0))

	analysis := assessor.Assess(s, day(5))
	require.NotNil(t, analysis)
	assert.Equal(t, RiskSafe, analysis.RiskLevel)
	assert.False(t, analysis.ShouldRemind, "safe streaks never warrant reminders")

	analysis = assessor.Assess(s, day(7))
	require.NotNil(t, analysis)
	assert.Equal(t, RiskLow, analysis.RiskLevel)
}

func TestUrgencyScore_Monotonic(t *testing.T) {
	// Strictly increasing across tiers at equal length.
	low := urgencyScore(RiskLow, 10)
	medium := urgencyScore(RiskMedium, 10)
	high := urgencyScore(RiskHigh, 10)
	assert.Less(t, low, medium)
	assert.Less(t, medium, high)

	// Non-decreasing in streak length within a tier.
	assert.LessOrEqual(t, urgencyScore(RiskHigh, 3), urgencyScore(RiskHigh, 10))
	assert.LessOrEqual(t, urgencyScore(RiskHigh, 10), urgencyScore(RiskHigh, 100))

	// A longer streak at a lower tier never outranks a higher tier.
	assert.Less(t, urgencyScore(RiskLow, 1000), urgencyScore(RiskMedium, 1))
}

func TestAssessAll_SortedByUrgency(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())
	now := day(10)

	fresh := activeStreak(t, TypeDailyCheckIn, 3, day(9))
	fresh.ID = "fresh"
	stale := activeStreak(t, TypeBudgetAdherence, 20, day(8))
	stale.ID = "stale"
	broken := activeStreak(t, TypeTransactionCategorization, 8, day(0))
	broken.MarkBroken(day(5))

	analyses := assessor.AssessAll([]*Streak{fresh, stale, broken}, now)

	require.Len(t, analyses, 2)
	assert.Equal(t, "stale", analyses[0].StreakID)
	assert.Equal(t, "fresh", analyses[1].StreakID)
	assert.GreaterOrEqual(t, analyses[0].UrgencyScore, analyses[1].UrgencyScore)
}

func TestShouldRemind_Cooldown(t *testing.T) {
	assessor := NewAssessor(AssessorConfig{
		ReminderCooldown: 24 * time.Hour,
		Policies:         DefaultPolicyTable(),
	})
	now := day(10).Add(12 * time.Hour)
	s := activeStreak(t, TypeDailyCheckIn, 5, day(8))

	analysis := assessor.Assess(s, now)
	require.NotNil(t, analysis)
	assert.True(t, analysis.ShouldRemind, "no reminder sent yet")

	s.MarkReminderSent(now.Add(-2 * time.Hour))
	analysis = assessor.Assess(s, now)
	require.NotNil(t, analysis)
	assert.False(t, analysis.ShouldRemind, "inside the cooldown window")

	s.MarkReminderSent(now.Add(-25 * time.Hour))
	analysis = assessor.Assess(s, now)
	require.NotNil(t, analysis)
	assert.True(t, analysis.ShouldRemind, "cooldown elapsed")
}

func TestAssess_RecommendedActionsAndKey(t *testing.T) {
	assessor := NewAssessor(DefaultAssessorConfig())
	s := activeStreak(t, TypeDailyCheckIn, 5, day(8))

	analysis := assessor.Assess(s, day(10))

	require.NotNil(t, analysis)
	assert.Equal(t, DefaultPolicyTable()[TypeDailyCheckIn].Triggers, analysis.RecommendedActions)
	assert.Equal(t, "streak_risk.daily_check_in.medium_risk", analysis.ReminderKey)
}
