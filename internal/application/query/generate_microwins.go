package query

import (
	"context"
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/gamification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE MICRO WINS QUERY
// Подбирает короткий список достижимых действий: сперва спасающие серии
// под угрозой, затем закрепляющие редкие привычки.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateMicroWinsQuery содержит параметры генерации микро-побед.
type GenerateMicroWinsQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Limit - сколько предложений вернуть (по умолчанию 3, максимум 10).
	Limit int

	// AsOf - момент генерации (по умолчанию текущее время).
	AsOf time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *GenerateMicroWinsQuery) Validate() error {
	if !shared.IsValidUserID(q.UserID) {
		return shared.ErrInvalidID
	}
	if q.Limit < 0 {
		return shared.ErrInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = 3
	}
	if q.Limit > 10 {
		q.Limit = 10
	}
	return nil
}

// MicroWinDTO - DTO одного предложения.
type MicroWinDTO struct {
	Action         string `json:"action"`
	Points         int    `json:"points"`
	Title          string `json:"title"`
	Reason         string `json:"reason"`
	StreakType     string `json:"streak_type,omitempty"`
	StreakID       string `json:"streak_id,omitempty"`
	IsPersonalized bool   `json:"is_personalized"`
}

// GenerateMicroWinsResult содержит результат генерации.
type GenerateMicroWinsResult struct {
	UserID    string        `json:"user_id"`
	MicroWins []MicroWinDTO `json:"micro_wins"`
}

// GenerateMicroWinsHandler обрабатывает GenerateMicroWinsQuery.
type GenerateMicroWinsHandler struct {
	streakRepo  streak.Repository
	historyRepo gamification.HistoryRepository
	assessor    *streak.Assessor
	generator   *gamification.Generator
}

// NewGenerateMicroWinsHandler создаёт обработчик генерации микро-побед.
func NewGenerateMicroWinsHandler(
	streakRepo streak.Repository,
	historyRepo gamification.HistoryRepository,
	assessor *streak.Assessor,
	generator *gamification.Generator,
) *GenerateMicroWinsHandler {
	if assessor == nil {
		assessor = streak.NewAssessor(streak.DefaultAssessorConfig())
	}
	if generator == nil {
		generator = gamification.NewGenerator(gamification.DefaultGeneratorConfig())
	}
	return &GenerateMicroWinsHandler{
		streakRepo:  streakRepo,
		historyRepo: historyRepo,
		assessor:    assessor,
		generator:   generator,
	}
}

// Handle выполняет генерацию микро-побед.
func (h *GenerateMicroWinsHandler) Handle(ctx context.Context, q GenerateMicroWinsQuery) (*GenerateMicroWinsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("generate_microwins: %w", err)
	}

	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	streaks, err := h.streakRepo.GetActiveByUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("generate_microwins: failed to list streaks: %w", err)
	}

	lastTimes, err := h.historyRepo.LastActionTimes(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("generate_microwins: failed to load action history: %w", err)
	}
	recent := make(map[shared.ActionType]time.Time, len(lastTimes))
	for action, at := range lastTimes {
		recent[shared.ActionType(action)] = at
	}

	risks := h.assessor.AssessAll(streaks, asOf)

	wins, err := h.generator.Generate(risks, recent, q.Limit, asOf)
	if err != nil {
		return nil, fmt.Errorf("generate_microwins: %w", err)
	}

	result := &GenerateMicroWinsResult{
		UserID:    q.UserID,
		MicroWins: make([]MicroWinDTO, 0, len(wins)),
	}
	for _, w := range wins {
		result.MicroWins = append(result.MicroWins, MicroWinDTO{
			Action:         string(w.Action),
			Points:         w.Points,
			Title:          w.Title,
			Reason:         w.Reason,
			StreakType:     string(w.StreakType),
			StreakID:       w.StreakID,
			IsPersonalized: w.IsPersonalized,
		})
	}

	return result, nil
}
