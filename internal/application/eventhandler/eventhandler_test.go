package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/application/command"
	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ──────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────

type fakeStreakRepo struct {
	mu      sync.Mutex
	streaks map[string]*streak.Streak
}

func newFakeStreakRepo() *fakeStreakRepo {
	return &fakeStreakRepo{streaks: make(map[string]*streak.Streak)}
}

func (r *fakeStreakRepo) Create(_ context.Context, s *streak.Streak) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaks[s.ID] = s
	return nil
}

func (r *fakeStreakRepo) GetByID(_ context.Context, id string) (*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streaks[id]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return s.Clone(), nil
}

func (r *fakeStreakRepo) GetByUserAndType(_ context.Context, _ string, _ streak.Type) (*streak.Streak, error) {
	return nil, shared.ErrStreakNotFound
}

func (r *fakeStreakRepo) GetActiveByUser(_ context.Context, _ string) ([]*streak.Streak, error) {
	return nil, nil
}

func (r *fakeStreakRepo) Update(_ context.Context, _ *streak.Streak) error { return nil }

func (r *fakeStreakRepo) FindStale(_ context.Context, _ time.Time, _ int) ([]*streak.Streak, error) {
	return nil, nil
}

func (r *fakeStreakRepo) GetTopStreaks(_ context.Context, _ streak.Type, _ int) ([]*streak.Streak, error) {
	return nil, nil
}

func (r *fakeStreakRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

type fakeRecoveryRepo struct {
	mu         sync.Mutex
	recoveries map[string]*streak.StreakRecovery
}

func newFakeRecoveryRepo() *fakeRecoveryRepo {
	return &fakeRecoveryRepo{recoveries: make(map[string]*streak.StreakRecovery)}
}

func (r *fakeRecoveryRepo) Create(_ context.Context, rec *streak.StreakRecovery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoveries[rec.ID] = rec
	return nil
}

func (r *fakeRecoveryRepo) GetByID(_ context.Context, id string) (*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recoveries[id]
	if !ok {
		return nil, shared.ErrRecoveryNotFound
	}
	return rec, nil
}

func (r *fakeRecoveryRepo) GetOpenByStreak(_ context.Context, streakID string) (*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recoveries {
		if rec.OriginalStreakID == streakID && rec.IsOpen() {
			return rec, nil
		}
	}
	return nil, shared.ErrRecoveryNotFound
}

func (r *fakeRecoveryRepo) GetActiveByUser(_ context.Context, _ string) ([]*streak.StreakRecovery, error) {
	return nil, nil
}

func (r *fakeRecoveryRepo) Update(_ context.Context, _ *streak.StreakRecovery) error { return nil }

func (r *fakeRecoveryRepo) FindExpired(_ context.Context, _ time.Time, _ int) ([]*streak.StreakRecovery, error) {
	return nil, nil
}

func (r *fakeRecoveryRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

func (r *fakeRecoveryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recoveries)
}

type fakeNotifier struct {
	mu           sync.Mutex
	celebrations []gamification.Celebration
	reminders    []streak.RiskAnalysis
	failures     int
}

func (n *fakeNotifier) ScheduleStreakReminder(_ context.Context, r streak.RiskAnalysis) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, r)
	return nil
}

func (n *fakeNotifier) ScheduleCelebration(_ context.Context, c gamification.Celebration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failures > 0 {
		n.failures--
		return errors.New("delivery backend unavailable")
	}
	n.celebrations = append(n.celebrations, c)
	return nil
}

type fakeProfileCache struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (c *fakeProfileCache) Get(_ context.Context, _ string) (*gamification.Profile, error) {
	return nil, nil
}

func (c *fakeProfileCache) Set(_ context.Context, _ *gamification.Profile) error { return nil }

func (c *fakeProfileCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, userID)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────
// OnStreakBroken
// ──────────────────────────────────────────────────────────────────────────

func brokenStreakFixture(t *testing.T) (*OnStreakBrokenHandler, *fakeStreakRepo, *fakeRecoveryRepo) {
	t.Helper()
	streaks := newFakeStreakRepo()
	recoveries := newFakeRecoveryRepo()
	initiate := command.NewInitiateStreakRecoveryHandler(streaks, recoveries, nil, 3, 7*24*time.Hour)
	return NewOnStreakBrokenHandler(initiate, nil), streaks, recoveries
}

func seedBroken(t *testing.T, repo *fakeStreakRepo, id string, count int) {
	t.Helper()
	s, err := streak.NewStreak(id, "user-1", streak.TypeDailyCheckIn, time.Now().UTC().AddDate(0, 0, -10))
	require.NoError(t, err)
	s.CurrentCount = count
	s.BestCount = count
	s.MarkBroken(time.Now().UTC())
	require.NoError(t, repo.Create(context.Background(), s))
}

func TestOnStreakBroken_OpensRecovery(t *testing.T) {
	h, streaks, recoveries := brokenStreakFixture(t)
	seedBroken(t, streaks, "streak-1", 12)

	event := shared.NewStreakBrokenEvent("user-1", "streak-1", "daily_check_in", 12, 3)
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 1, recoveries.count())
}

func TestOnStreakBroken_SkipsShortStreaks(t *testing.T) {
	h, streaks, recoveries := brokenStreakFixture(t)
	seedBroken(t, streaks, "streak-1", 1)

	event := shared.NewStreakBrokenEvent("user-1", "streak-1", "daily_check_in", 1, 3)
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Zero(t, recoveries.count(), "a one-day streak is not worth a recovery window")
}

func TestOnStreakBroken_ToleratesAlreadyOpen(t *testing.T) {
	h, streaks, recoveries := brokenStreakFixture(t)
	seedBroken(t, streaks, "streak-1", 12)

	event := shared.NewStreakBrokenEvent("user-1", "streak-1", "daily_check_in", 12, 3)
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event), "redelivery must be harmless")

	assert.Equal(t, 1, recoveries.count())
}

func TestOnStreakBroken_IgnoresForeignEvents(t *testing.T) {
	h, _, recoveries := brokenStreakFixture(t)

	// Reconstructed remote events arrive without the concrete type.
	require.NoError(t, h.Handle(context.Background(), shared.NewUserDataDeletedEvent("user-1")))

	assert.Zero(t, recoveries.count())
}

// ──────────────────────────────────────────────────────────────────────────
// OnMilestoneReached
// ──────────────────────────────────────────────────────────────────────────

func TestOnMilestoneReached_SchedulesCelebration(t *testing.T) {
	streaks := newFakeStreakRepo()
	s, err := streak.NewStreak("streak-1", "user-1", streak.TypeSavingsContribution, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, streaks.Create(context.Background(), s))

	notifier := &fakeNotifier{}
	h := NewOnMilestoneReachedHandler(streaks, notifier, nil)

	event := shared.NewMilestoneReachedEvent("user-1", "streak-1", 7, "MEDIUM", 50)
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, notifier.celebrations, 1)
	c := notifier.celebrations[0]
	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, 7, c.Milestone)
	assert.Equal(t, 50, c.BonusPoints)
	assert.Equal(t, gamification.IntensityMedium, c.Intensity)
	assert.Equal(t, int64(1800), c.DurationMs)
	assert.Equal(t, streak.TypeSavingsContribution, c.StreakType)
	assert.NotEmpty(t, c.Message)
}

func TestOnMilestoneReached_GoalThresholdSpeaksInPercent(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOnMilestoneReachedHandler(newFakeStreakRepo(), notifier, nil)

	// No streak id: the milestone is a goal-progress threshold.
	event := shared.NewMilestoneReachedEvent("user-1", "", 50, "MEDIUM", 250)
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, notifier.celebrations, 1)
	c := notifier.celebrations[0]
	assert.Equal(t, 50, c.Milestone)
	assert.Empty(t, c.StreakType)
	assert.Equal(t, gamification.GoalMilestoneMessage(50), c.Message)
}

func TestOnMilestoneReached_RetriesTransientFailures(t *testing.T) {
	notifier := &fakeNotifier{failures: 1}
	h := NewOnMilestoneReachedHandler(newFakeStreakRepo(), notifier, nil)

	event := shared.NewMilestoneReachedEvent("user-1", "streak-1", 3, "LOW", 15)
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, notifier.celebrations, 1)
}

func TestOnMilestoneReached_IgnoresForeignEvents(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOnMilestoneReachedHandler(newFakeStreakRepo(), notifier, nil)

	require.NoError(t, h.Handle(context.Background(), shared.NewUserDataDeletedEvent("user-1")))

	assert.Empty(t, notifier.celebrations)
}

// ──────────────────────────────────────────────────────────────────────────
// OnPointsAwarded
// ──────────────────────────────────────────────────────────────────────────

func TestOnPointsAwarded_InvalidatesCache(t *testing.T) {
	cache := &fakeProfileCache{}
	h := NewOnPointsAwardedHandler(cache, nil)

	events := []shared.Event{
		shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 105),
		shared.NewLevelUpEvent("user-2", 1, 2, 100),
		shared.NewAchievementUnlockedEvent("user-3", "first_action", 10),
		shared.NewUserDataDeletedEvent("user-4"),
	}
	for _, e := range events {
		require.NoError(t, h.Handle(context.Background(), e))
	}

	assert.Equal(t, []string{"user-1", "user-2", "user-3", "user-4"}, cache.invalidated)
}

func TestOnPointsAwarded_CacheErrorIsSwallowed(t *testing.T) {
	cache := &fakeProfileCache{err: errors.New("redis down")}
	h := NewOnPointsAwardedHandler(cache, nil)

	event := shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5)
	assert.NoError(t, h.Handle(context.Background(), event), "stale cache heals via TTL")
}

func TestOnPointsAwarded_EventTypes(t *testing.T) {
	h := NewOnPointsAwardedHandler(&fakeProfileCache{}, nil)

	assert.ElementsMatch(t, []shared.EventType{
		shared.EventPointsAwarded,
		shared.EventLevelUp,
		shared.EventAchievementUnlocked,
		shared.EventUserDataDeleted,
	}, h.EventTypes())
}
