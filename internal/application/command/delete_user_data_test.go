package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

type purgeFixture struct {
	profiles     *fakeProfileRepo
	history      *fakeHistoryRepo
	achievements *fakeAchievementRepo
	streaks      *fakeStreakRepo
	recoveries   *fakeRecoveryRepo
	leaderboard  *fakeLeaderboard
	cache        *fakeProfileCache
	publisher    *capturingPublisher
	handler      *DeleteUserDataHandler
}

func newPurgeFixture() *purgeFixture {
	f := &purgeFixture{
		profiles:     newFakeProfileRepo(),
		history:      newFakeHistoryRepo(),
		achievements: newFakeAchievementRepo(),
		streaks:      newFakeStreakRepo(),
		recoveries:   newFakeRecoveryRepo(),
		leaderboard:  newFakeLeaderboard(),
		cache:        &fakeProfileCache{},
		publisher:    &capturingPublisher{},
	}
	f.handler = NewDeleteUserDataHandler(
		f.profiles, f.history, f.achievements,
		f.streaks, f.recoveries, f.leaderboard, f.cache, f.publisher,
	)
	return f
}

func (f *purgeFixture) seedUser(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	profile, err := gamification.NewProfile(userID, atDay(0))
	require.NoError(t, err)
	require.NoError(t, f.profiles.Create(ctx, profile))

	entry, err := gamification.NewHistoryEntry("h-"+userID, userID, 5, shared.ActionDailyCheckIn, "daily check-in", atDay(0))
	require.NoError(t, err)
	require.NoError(t, f.history.Append(ctx, entry))

	ach, err := gamification.NewAchievement("a-"+userID, userID, gamification.AchievementFirstAction, atDay(0))
	require.NoError(t, err)
	require.NoError(t, f.achievements.Create(ctx, ach))

	s, err := streak.NewStreak("s-"+userID, userID, streak.TypeDailyCheckIn, atDay(0))
	require.NoError(t, err)
	require.NoError(t, f.streaks.Create(ctx, s))
	require.NoError(t, f.leaderboard.RecordCount(ctx, streak.TypeDailyCheckIn, userID, s.CurrentCount))

	broken := s.Clone()
	broken.ID = "s-broken-" + userID
	broken.MarkBroken(atDay(1))
	require.NoError(t, f.streaks.Create(ctx, broken))

	rec, err := streak.NewStreakRecovery("r-"+userID, broken, 4, atDay(1), 3, streak.DefaultRecoveryWindow)
	require.NoError(t, err)
	require.NoError(t, f.recoveries.Create(ctx, rec))
}

func TestDeleteUserData_PurgesEverything(t *testing.T) {
	f := newPurgeFixture()
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedUser(t, "user-2")

	result, err := f.handler.Handle(ctx, DeleteUserDataCommand{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.False(t, result.DeletedAt.IsZero())

	_, err = f.profiles.GetByUserID(ctx, "user-1")
	assert.ErrorIs(t, err, shared.ErrProfileNotFound)

	entries, err := f.history.GetByUser(ctx, "user-1", 100)
	require.NoError(t, err)
	assert.Empty(t, entries)

	achs, err := f.achievements.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, achs)

	_, err = f.streaks.GetByUserAndType(ctx, "user-1", streak.TypeDailyCheckIn)
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)

	open, err := f.recoveries.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, open)

	top, err := f.leaderboard.Top(ctx, streak.TypeDailyCheckIn, 10)
	require.NoError(t, err)
	for _, e := range top {
		assert.NotEqual(t, "user-1", e.UserID)
	}

	assert.Contains(t, f.cache.invalidated, "user-1")
	assert.Contains(t, f.publisher.eventTypes(), shared.EventUserDataDeleted)
}

func TestDeleteUserData_LeavesOtherUsersAlone(t *testing.T) {
	f := newPurgeFixture()
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedUser(t, "user-2")

	_, err := f.handler.Handle(ctx, DeleteUserDataCommand{UserID: "user-1"})
	require.NoError(t, err)

	_, err = f.profiles.GetByUserID(ctx, "user-2")
	assert.NoError(t, err)

	s, err := f.streaks.GetByUserAndType(ctx, "user-2", streak.TypeDailyCheckIn)
	require.NoError(t, err)
	assert.Equal(t, "user-2", s.UserID)

	entries, err := f.history.GetByUser(ctx, "user-2", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeleteUserData_Idempotent(t *testing.T) {
	f := newPurgeFixture()
	ctx := context.Background()
	f.seedUser(t, "user-1")

	_, err := f.handler.Handle(ctx, DeleteUserDataCommand{UserID: "user-1"})
	require.NoError(t, err)

	// Purging a user with nothing left still succeeds.
	result, err := f.handler.Handle(ctx, DeleteUserDataCommand{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
}

func TestDeleteUserData_InvalidUserID(t *testing.T) {
	f := newPurgeFixture()

	_, err := f.handler.Handle(context.Background(), DeleteUserDataCommand{UserID: ""})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
