package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/shared"
)

func brokenStreak(t *testing.T, previousCount int) *Streak {
	t.Helper()
	s, err := NewStreak("streak-1", "user-1", TypeDailyCheckIn, day(0))
	require.NoError(t, err)
	s.CurrentCount = previousCount
	s.BestCount = previousCount
	s.MarkBroken(day(previousCount + 3))
	return s
}

func openRecovery(t *testing.T, previousCount int) *StreakRecovery {
	t.Helper()
	s := brokenStreak(t, previousCount)
	r, err := NewStreakRecovery("rec-1", s, previousCount, day(10), DefaultRequiredActions, DefaultRecoveryWindow)
	require.NoError(t, err)
	return r
}

func TestNewStreakRecovery(t *testing.T) {
	s := brokenStreak(t, 12)

	r, err := NewStreakRecovery("rec-1", s, 12, day(10), 3, 7*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, RecoveryStatusOpen, r.Status())
	assert.Equal(t, 12, r.OriginalCount)
	assert.Equal(t, day(17), r.Deadline)
	assert.Equal(t, 3, r.RequiredActions)
	assert.True(t, r.IsOpen())
}

func TestNewStreakRecovery_RequiresBrokenStreak(t *testing.T) {
	s, _ := NewStreak("streak-1", "user-1", TypeDailyCheckIn, day(0))

	_, err := NewStreakRecovery("rec-1", s, 5, day(1), 3, DefaultRecoveryWindow)
	assert.ErrorIs(t, err, shared.ErrStreakNotBroken)
}

func TestNewStreakRecovery_FallsBackToBestCount(t *testing.T) {
	s := brokenStreak(t, 9)

	// The tracker already reset the counter; zero means "legacy unknown".
	r, err := NewStreakRecovery("rec-1", s, 0, day(10), 3, DefaultRecoveryWindow)
	require.NoError(t, err)
	assert.Equal(t, 9, r.OriginalCount)
}

func TestAddAction_CompletesAfterRequiredActions(t *testing.T) {
	r := openRecovery(t, 12)

	done, err := r.AddAction(shared.ActionDailyCheckIn, day(11), 5)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = r.AddAction(shared.ActionCheckBalance, day(12), 5)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = r.AddAction(shared.ActionDailyCheckIn, day(13), 5)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, RecoveryStatusSucceeded, r.Status())
	assert.Equal(t, 3, r.ActionsCompleted())
	assert.False(t, r.IsOpen())
}

func TestAddAction_DuplicateSameInstantIgnored(t *testing.T) {
	r := openRecovery(t, 12)
	at := day(11).Add(9 * time.Hour)

	done, err := r.AddAction(shared.ActionDailyCheckIn, at, 5)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = r.AddAction(shared.ActionDailyCheckIn, at, 5)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, r.ActionsCompleted())
}

func TestAddAction_AfterDeadline(t *testing.T) {
	r := openRecovery(t, 12)

	_, err := r.AddAction(shared.ActionDailyCheckIn, r.Deadline.Add(time.Hour), 5)
	assert.ErrorIs(t, err, shared.ErrRecoveryExpired)
	assert.Equal(t, 0, r.ActionsCompleted())
}

func TestAddAction_ClosedRecovery(t *testing.T) {
	r := openRecovery(t, 12)
	require.NoError(t, r.MarkFailed(day(18)))

	_, err := r.AddAction(shared.ActionDailyCheckIn, day(18), 5)
	assert.ErrorIs(t, err, shared.ErrRecoveryClosed)
}

func TestMarkFailed(t *testing.T) {
	r := openRecovery(t, 12)

	require.NoError(t, r.MarkFailed(day(18)))
	assert.Equal(t, RecoveryStatusFailed, r.Status())
	assert.False(t, r.IsSuccessful)

	// Closing twice is a state conflict.
	assert.ErrorIs(t, r.MarkFailed(day(19)), shared.ErrRecoveryClosed)
}

func TestIsExpired(t *testing.T) {
	r := openRecovery(t, 12)

	assert.False(t, r.IsExpired(r.Deadline))
	assert.True(t, r.IsExpired(r.Deadline.Add(time.Second)))

	require.NoError(t, r.MarkFailed(r.Deadline.Add(time.Hour)))
	assert.False(t, r.IsExpired(r.Deadline.Add(2*time.Hour)), "closed recoveries are never expired")
}

func TestSeedRestoredStreak(t *testing.T) {
	original := brokenStreak(t, 12)
	original.BestCount = 20
	original.RecoveryAttempts = 1

	r, err := NewStreakRecovery("rec-1", original, 12, day(10), 3, DefaultRecoveryWindow)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = r.AddAction(shared.ActionDailyCheckIn, day(11+i), 5)
		require.NoError(t, err)
	}
	require.Equal(t, RecoveryStatusSucceeded, r.Status())

	restored, err := r.SeedRestoredStreak("streak-2", original, day(13).Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, restored.CurrentCount, "the restored incarnation starts fresh")
	assert.Equal(t, 20, restored.BestCount, "best of historical best and lost length")
	assert.Equal(t, 2, restored.RecoveryAttempts)
	assert.Equal(t, day(13), restored.LastActivityDate)
	assert.True(t, restored.IsActive)
	assert.NoError(t, restored.CheckInvariants())
}

func TestSeedRestoredStreak_LostLengthBeatsBest(t *testing.T) {
	original := brokenStreak(t, 30)
	original.BestCount = 30

	r, err := NewStreakRecovery("rec-1", original, 30, day(10), 1, DefaultRecoveryWindow)
	require.NoError(t, err)
	_, err = r.AddAction(shared.ActionDailyCheckIn, day(11), 5)
	require.NoError(t, err)

	restored, err := r.SeedRestoredStreak("streak-2", original, day(11))
	require.NoError(t, err)
	assert.Equal(t, 30, restored.BestCount)
}

func TestSeedRestoredStreak_RequiresSuccess(t *testing.T) {
	original := brokenStreak(t, 12)
	r := openRecovery(t, 12)

	_, err := r.SeedRestoredStreak("streak-2", original, day(11))
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func succeededRecovery(t *testing.T, original *Streak) *StreakRecovery {
	t.Helper()
	r, err := NewStreakRecovery("rec-1", original, original.CurrentCount, day(10), 1, DefaultRecoveryWindow)
	require.NoError(t, err)
	_, err = r.AddAction(shared.ActionDailyCheckIn, day(11), 5)
	require.NoError(t, err)
	require.Equal(t, RecoveryStatusSucceeded, r.Status())
	return r
}

func TestRestoreIntoLiveStreak(t *testing.T) {
	original := brokenStreak(t, 12)
	original.BestCount = 20
	original.RecoveryAttempts = 1
	r := succeededRecovery(t, original)

	live, err := NewStreak("streak-2", "user-1", TypeDailyCheckIn, day(11))
	require.NoError(t, err)
	live.CurrentCount = 2
	live.BestCount = 2

	require.NoError(t, r.RestoreIntoLiveStreak(live, original, day(11).Add(time.Hour)))

	assert.Equal(t, 2, live.CurrentCount, "real activity since the break is kept")
	assert.Equal(t, 20, live.BestCount, "best of historical best and lost length")
	assert.Equal(t, 2, live.RecoveryAttempts)
	assert.True(t, live.IsActive)
	assert.NoError(t, live.CheckInvariants())
}

func TestRestoreIntoLiveStreak_KeepsHigherLiveBest(t *testing.T) {
	original := brokenStreak(t, 3)
	r := succeededRecovery(t, original)

	live, err := NewStreak("streak-2", "user-1", TypeDailyCheckIn, day(11))
	require.NoError(t, err)
	live.CurrentCount = 5
	live.BestCount = 40

	require.NoError(t, r.RestoreIntoLiveStreak(live, original, day(11)))
	assert.Equal(t, 40, live.BestCount, "a better live record is never lowered")
}

func TestRestoreIntoLiveStreak_Guards(t *testing.T) {
	original := brokenStreak(t, 12)

	open := openRecovery(t, 12)
	live, err := NewStreak("streak-2", "user-1", TypeDailyCheckIn, day(11))
	require.NoError(t, err)
	assert.ErrorIs(t, open.RestoreIntoLiveStreak(live, original, day(11)), shared.ErrInvalidState)

	r := succeededRecovery(t, original)
	assert.ErrorIs(t, r.RestoreIntoLiveStreak(nil, original, day(11)), shared.ErrStreakNotFound)

	foreign, err := NewStreak("streak-3", "user-2", TypeDailyCheckIn, day(11))
	require.NoError(t, err)
	assert.ErrorIs(t, r.RestoreIntoLiveStreak(foreign, original, day(11)), shared.ErrInvalidState)

	dead := brokenStreak(t, 4)
	assert.ErrorIs(t, r.RestoreIntoLiveStreak(dead, original, day(11)), shared.ErrInvalidState)
}
