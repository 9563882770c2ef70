package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP STREAKS QUERY
// Возвращает топ-N пользователей по длине серии заданного типа. Читается
// из кэша лидерборда; при его недоступности - из основного хранилища.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopStreaksQuery содержит параметры запроса топа серий.
type GetTopStreaksQuery struct {
	// StreakType - тип серии.
	StreakType streak.Type

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetTopStreaksQuery) Validate() error {
	if !q.StreakType.IsValid() {
		return fmt.Errorf("invalid streak type %q", q.StreakType)
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// TopStreakDTO - DTO одной позиции топа.
type TopStreakDTO struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	CurrentCount int    `json:"current_count"`
}

// GetTopStreaksResult содержит результат запроса топа.
type GetTopStreaksResult struct {
	StreakType string         `json:"streak_type"`
	Entries    []TopStreakDTO `json:"entries"`
}

// GetTopStreaksHandler обрабатывает GetTopStreaksQuery.
type GetTopStreaksHandler struct {
	streakRepo  streak.Repository
	leaderboard streak.LeaderboardCache
}

// NewGetTopStreaksHandler создаёт обработчик запроса топа серий.
func NewGetTopStreaksHandler(streakRepo streak.Repository, leaderboard streak.LeaderboardCache) *GetTopStreaksHandler {
	return &GetTopStreaksHandler{
		streakRepo:  streakRepo,
		leaderboard: leaderboard,
	}
}

// Handle выполняет запрос топа серий.
func (h *GetTopStreaksHandler) Handle(ctx context.Context, q GetTopStreaksQuery) (*GetTopStreaksResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_top_streaks: %w", err)
	}

	result := &GetTopStreaksResult{StreakType: string(q.StreakType)}

	if h.leaderboard != nil {
		entries, err := h.leaderboard.Top(ctx, q.StreakType, q.Limit)
		if err == nil {
			for i, e := range entries {
				result.Entries = append(result.Entries, TopStreakDTO{
					Rank:         i + 1,
					UserID:       e.UserID,
					CurrentCount: e.CurrentCount,
				})
			}
			return result, nil
		}
		// Кэш недоступен - падаем на основное хранилище.
	}

	streaks, err := h.streakRepo.GetTopStreaks(ctx, q.StreakType, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_top_streaks: failed to list streaks: %w", err)
	}
	for i, s := range streaks {
		result.Entries = append(result.Entries, TopStreakDTO{
			Rank:         i + 1,
			UserID:       s.UserID,
			CurrentCount: s.CurrentCount,
		})
	}

	return result, nil
}
