package command

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// In-memory repository fakes shared by the command tests.

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*gamification.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*gamification.Profile)}
}

func (r *fakeProfileRepo) Create(_ context.Context, p *gamification.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; ok {
		return shared.ErrAlreadyExists
	}
	r.profiles[p.UserID] = p.Clone()
	return nil
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*gamification.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (r *fakeProfileRepo) Update(_ context.Context, p *gamification.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p.Clone()
	return nil
}

func (r *fakeProfileRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, userID)
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*gamification.HistoryEntry
}

func newFakeHistoryRepo() *fakeHistoryRepo { return &fakeHistoryRepo{} }

func (r *fakeHistoryRepo) Append(_ context.Context, e *gamification.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeHistoryRepo) GetByUser(_ context.Context, userID string, limit int) ([]*gamification.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*gamification.HistoryEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) LastActionTimes(_ context.Context, userID string) (map[string]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time)
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		if e.EarnedAt.After(out[string(e.Action)]) {
			out[string(e.Action)] = e.EarnedAt
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

type fakeAchievementRepo struct {
	mu           sync.Mutex
	achievements []*gamification.Achievement
}

func newFakeAchievementRepo() *fakeAchievementRepo { return &fakeAchievementRepo{} }

func (r *fakeAchievementRepo) Create(_ context.Context, a *gamification.Achievement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.achievements {
		if existing.UserID == a.UserID && existing.Type == a.Type {
			return nil
		}
	}
	r.achievements = append(r.achievements, a)
	return nil
}

func (r *fakeAchievementRepo) GetByUser(_ context.Context, userID string) ([]*gamification.Achievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*gamification.Achievement
	for _, a := range r.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.achievements[:0]
	for _, a := range r.achievements {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	r.achievements = kept
	return nil
}

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
	// Mirrors the partial unique index: one active row per (user, type).
	if s.IsActive {
		for _, existing := range r.streaks {
			if existing.IsActive && existing.UserID == s.UserID && existing.Type == s.Type {
				return shared.ErrStreakAlreadyExists
			}
		}
	}
	r.streaks[s.ID] = s.Clone()
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

func (r *fakeStreakRepo) GetByUserAndType(_ context.Context, userID string, t streak.Type) (*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Active rows only; broken history rows are reachable by ID.
	for _, s := range r.streaks {
		if s.UserID == userID && s.Type == t && s.IsActive {
			return s.Clone(), nil
		}
	}
	return nil, shared.ErrStreakNotFound
}

func (r *fakeStreakRepo) GetActiveByUser(_ context.Context, userID string) ([]*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*streak.Streak
	for _, s := range r.streaks {
		if s.UserID == userID && s.IsActive {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeStreakRepo) Update(_ context.Context, s *streak.Streak) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streaks[s.ID]; !ok {
		return shared.ErrStreakNotFound
	}
	r.streaks[s.ID] = s.Clone()
	return nil
}

func (r *fakeStreakRepo) FindStale(_ context.Context, before time.Time, limit int) ([]*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*streak.Streak
	for _, s := range r.streaks {
		if s.IsActive && s.LastActivityDate.Before(before) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityDate.Before(out[j].LastActivityDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeStreakRepo) GetTopStreaks(_ context.Context, t streak.Type, limit int) ([]*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*streak.Streak
	for _, s := range r.streaks {
		if s.Type == t && s.IsActive {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentCount > out[j].CurrentCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeStreakRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.streaks {
		if s.UserID == userID {
			delete(r.streaks, id)
		}
	}
	return nil
}

type fakeRecoveryRepo struct {
	mu         sync.Mutex
	recoveries map[string]*streak.StreakRecovery
}

func newFakeRecoveryRepo() *fakeRecoveryRepo {
	return &fakeRecoveryRepo{recoveries: make(map[string]*streak.StreakRecovery)}
}

func cloneRecovery(r *streak.StreakRecovery) *streak.StreakRecovery {
	clone := *r
	clone.Actions = append([]streak.RecoveryAction(nil), r.Actions...)
	if r.RecoveryCompleted != nil {
		t := *r.RecoveryCompleted
		clone.RecoveryCompleted = &t
	}
	return &clone
}

func (r *fakeRecoveryRepo) Create(_ context.Context, rec *streak.StreakRecovery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoveries[rec.ID] = cloneRecovery(rec)
	return nil
}

func (r *fakeRecoveryRepo) GetByID(_ context.Context, id string) (*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recoveries[id]
	if !ok {
		return nil, shared.ErrRecoveryNotFound
	}
	return cloneRecovery(rec), nil
}

func (r *fakeRecoveryRepo) GetOpenByStreak(_ context.Context, streakID string) (*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recoveries {
		if rec.OriginalStreakID == streakID && rec.IsOpen() {
			return cloneRecovery(rec), nil
		}
	}
	return nil, shared.ErrRecoveryNotFound
}

func (r *fakeRecoveryRepo) GetActiveByUser(_ context.Context, userID string) ([]*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*streak.StreakRecovery
	for _, rec := range r.recoveries {
		if rec.UserID == userID && rec.IsOpen() {
			out = append(out, cloneRecovery(rec))
		}
	}
	return out, nil
}

func (r *fakeRecoveryRepo) Update(_ context.Context, rec *streak.StreakRecovery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recoveries[rec.ID]; !ok {
		return shared.ErrRecoveryNotFound
	}
	r.recoveries[rec.ID] = cloneRecovery(rec)
	return nil
}

func (r *fakeRecoveryRepo) FindExpired(_ context.Context, asOf time.Time, limit int) ([]*streak.StreakRecovery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*streak.StreakRecovery
	for _, rec := range r.recoveries {
		if rec.IsExpired(asOf) && len(out) < limit {
			out = append(out, cloneRecovery(rec))
		}
	}
	return out, nil
}

func (r *fakeRecoveryRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recoveries {
		if rec.UserID == userID {
			delete(r.recoveries, id)
		}
	}
	return nil
}

type fakeLeaderboard struct {
	mu     sync.Mutex
	counts map[streak.Type]map[string]int
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{counts: make(map[streak.Type]map[string]int)}
}

func (l *fakeLeaderboard) RecordCount(_ context.Context, t streak.Type, userID string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[t] == nil {
		l.counts[t] = make(map[string]int)
	}
	l.counts[t][userID] = count
	return nil
}

func (l *fakeLeaderboard) Top(_ context.Context, t streak.Type, limit int) ([]streak.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []streak.LeaderboardEntry
	for userID, count := range l.counts[t] {
		out = append(out, streak.LeaderboardEntry{UserID: userID, CurrentCount: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentCount > out[j].CurrentCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLeaderboard) Remove(_ context.Context, t streak.Type, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts[t], userID)
	return nil
}

type fakeProfileCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *fakeProfileCache) Get(_ context.Context, _ string) (*gamification.Profile, error) {
	return nil, nil
}

func (c *fakeProfileCache) Set(_ context.Context, _ *gamification.Profile) error { return nil }

func (c *fakeProfileCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type brokenPublisher struct {
	mu       sync.Mutex
	attempts int
}

func (p *brokenPublisher) Publish(_ shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return errors.New("broker unavailable")
}

func (p *capturingPublisher) eventTypes() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
