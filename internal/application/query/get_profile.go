// Package query contains read operations following CQRS pattern.
// Queries never modify durable state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Возвращает профиль вовлечённости: очки, уровень, прогресс до следующего
// уровня и достижения. Читает сквозь кэш, если тот подключён.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery содержит параметры запроса профиля.
type GetProfileQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// IncludeAchievements - включать ли список достижений.
	IncludeAchievements bool

	// IncludeHistory - сколько последних начислений вернуть (0 = не включать).
	IncludeHistory int
}

// Validate проверяет корректность параметров запроса.
func (q *GetProfileQuery) Validate() error {
	if !shared.IsValidUserID(q.UserID) {
		return shared.ErrInvalidID
	}
	if q.IncludeHistory < 0 {
		return errors.New("history limit cannot be negative")
	}
	if q.IncludeHistory > 100 {
		q.IncludeHistory = 100
	}
	return nil
}

// AchievementDTO - DTO разблокированного достижения.
type AchievementDTO struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UnlockedAt  string `json:"unlocked_at"`
}

// HistoryEntryDTO - DTO записи журнала начислений.
type HistoryEntryDTO struct {
	Points      int    `json:"points"`
	Action      string `json:"action"`
	Description string `json:"description"`
	EarnedAt    string `json:"earned_at"`
}

// ProfileDTO - DTO профиля вовлечённости.
type ProfileDTO struct {
	UserID       string            `json:"user_id"`
	TotalPoints  int               `json:"total_points"`
	Level        int               `json:"level"`
	PointsToNext int               `json:"points_to_next_level"`
	Achievements []AchievementDTO  `json:"achievements,omitempty"`
	History      []HistoryEntryDTO `json:"history,omitempty"`
}

// GetProfileHandler обрабатывает GetProfileQuery.
type GetProfileHandler struct {
	profileRepo     gamification.ProfileRepository
	achievementRepo gamification.AchievementRepository
	historyRepo     gamification.HistoryRepository
	cache           gamification.ProfileCache
	catalog         map[gamification.AchievementType]gamification.AchievementDefinition
}

// NewGetProfileHandler создаёт обработчик запроса профиля.
func NewGetProfileHandler(
	profileRepo gamification.ProfileRepository,
	achievementRepo gamification.AchievementRepository,
	historyRepo gamification.HistoryRepository,
	cache gamification.ProfileCache,
) *GetProfileHandler {
	return &GetProfileHandler{
		profileRepo:     profileRepo,
		achievementRepo: achievementRepo,
		historyRepo:     historyRepo,
		cache:           cache,
		catalog:         gamification.DefaultAchievementCatalog(),
	}
}

// Handle выполняет запрос профиля.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*ProfileDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}

	profile, err := h.loadProfile(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	dto := &ProfileDTO{
		UserID:       profile.UserID,
		TotalPoints:  int(profile.TotalPoints),
		Level:        int(profile.Level()),
		PointsToNext: int(gamification.PointsToNext(profile.TotalPoints)),
	}

	if q.IncludeAchievements {
		achievements, err := h.achievementRepo.GetByUser(ctx, q.UserID)
		if err != nil {
			return nil, fmt.Errorf("get_profile: failed to list achievements: %w", err)
		}
		for _, a := range achievements {
			def := h.catalog[a.Type]
			dto.Achievements = append(dto.Achievements, AchievementDTO{
				Type:        string(a.Type),
				Category:    string(def.Category),
				Title:       def.Title,
				Description: def.Description,
				UnlockedAt:  a.UnlockedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
	}

	if q.IncludeHistory > 0 {
		entries, err := h.historyRepo.GetByUser(ctx, q.UserID, q.IncludeHistory)
		if err != nil {
			return nil, fmt.Errorf("get_profile: failed to list history: %w", err)
		}
		for _, e := range entries {
			dto.History = append(dto.History, HistoryEntryDTO{
				Points:      e.Points,
				Action:      string(e.Action),
				Description: e.Description,
				EarnedAt:    e.EarnedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
	}

	return dto, nil
}

// loadProfile читает профиль сквозь кэш; промах кэша не считается ошибкой.
func (h *GetProfileHandler) loadProfile(ctx context.Context, userID string) (*gamification.Profile, error) {
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, userID); err == nil && cached != nil {
			return cached, nil
		}
	}

	profile, err := h.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, profile)
	}
	return profile, nil
}
