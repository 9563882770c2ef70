package query

import (
	"context"
	"sort"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// In-memory fakes shared by the query tests. Queries only read, so the
// write-side methods are minimal.

type fakeStreakRepo struct {
	streaks []*streak.Streak
}

func (r *fakeStreakRepo) Create(_ context.Context, s *streak.Streak) error {
	r.streaks = append(r.streaks, s)
	return nil
}

func (r *fakeStreakRepo) GetByID(_ context.Context, id string) (*streak.Streak, error) {
	for _, s := range r.streaks {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrStreakNotFound
}

func (r *fakeStreakRepo) GetByUserAndType(_ context.Context, userID string, t streak.Type) (*streak.Streak, error) {
	for _, s := range r.streaks {
		if s.UserID == userID && s.Type == t && s.IsActive {
			return s, nil
		}
	}
	return nil, shared.ErrStreakNotFound
}

func (r *fakeStreakRepo) GetActiveByUser(_ context.Context, userID string) ([]*streak.Streak, error) {
	var out []*streak.Streak
	for _, s := range r.streaks {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStreakRepo) Update(_ context.Context, _ *streak.Streak) error { return nil }

func (r *fakeStreakRepo) FindStale(_ context.Context, _ time.Time, _ int) ([]*streak.Streak, error) {
	return nil, nil
}

func (r *fakeStreakRepo) GetTopStreaks(_ context.Context, t streak.Type, limit int) ([]*streak.Streak, error) {
	var out []*streak.Streak
	for _, s := range r.streaks {
		if s.Type == t && s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentCount > out[j].CurrentCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeStreakRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

type fakeProfileRepo struct {
	profiles map[string]*gamification.Profile
	gets     int
}

func (r *fakeProfileRepo) Create(_ context.Context, p *gamification.Profile) error {
	if r.profiles == nil {
		r.profiles = make(map[string]*gamification.Profile)
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*gamification.Profile, error) {
	r.gets++
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (r *fakeProfileRepo) Update(_ context.Context, _ *gamification.Profile) error { return nil }

func (r *fakeProfileRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

type fakeAchievementRepo struct {
	achievements []*gamification.Achievement
}

func (r *fakeAchievementRepo) Create(_ context.Context, a *gamification.Achievement) error {
	r.achievements = append(r.achievements, a)
	return nil
}

func (r *fakeAchievementRepo) GetByUser(_ context.Context, userID string) ([]*gamification.Achievement, error) {
	var out []*gamification.Achievement
	for _, a := range r.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

type fakeHistoryRepo struct {
	entries   []*gamification.HistoryEntry
	lastTimes map[string]time.Time
}

func (r *fakeHistoryRepo) Append(_ context.Context, e *gamification.HistoryEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeHistoryRepo) GetByUser(_ context.Context, userID string, limit int) ([]*gamification.HistoryEntry, error) {
	var out []*gamification.HistoryEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) LastActionTimes(_ context.Context, _ string) (map[string]time.Time, error) {
	if r.lastTimes == nil {
		return map[string]time.Time{}, nil
	}
	return r.lastTimes, nil
}

func (r *fakeHistoryRepo) DeleteByUser(_ context.Context, _ string) error { return nil }

type fakeProfileCache struct {
	cached *gamification.Profile
	sets   int
}

func (c *fakeProfileCache) Get(_ context.Context, _ string) (*gamification.Profile, error) {
	return c.cached, nil
}

func (c *fakeProfileCache) Set(_ context.Context, p *gamification.Profile) error {
	c.cached = p
	c.sets++
	return nil
}

func (c *fakeProfileCache) Invalidate(_ context.Context, _ string) error {
	c.cached = nil
	return nil
}

type fakeLeaderboard struct {
	entries []streak.LeaderboardEntry
	err     error
}

func (l *fakeLeaderboard) RecordCount(_ context.Context, _ streak.Type, _ string, _ int) error {
	return nil
}

func (l *fakeLeaderboard) Top(_ context.Context, _ streak.Type, limit int) ([]streak.LeaderboardEntry, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(l.entries) > limit {
		return l.entries[:limit], nil
	}
	return l.entries, nil
}

func (l *fakeLeaderboard) Remove(_ context.Context, _ streak.Type, _ string) error { return nil }
