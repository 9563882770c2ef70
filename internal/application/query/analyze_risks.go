package query

import (
	"context"
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYZE RISKS QUERY
// Оценивает все активные серии пользователя и возвращает те, что под
// угрозой, отсортированные по убыванию срочности. Состояние не меняется.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyzeRisksQuery содержит параметры оценки рисков.
type AnalyzeRisksQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// AsOf - момент оценки (по умолчанию текущее время).
	AsOf time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *AnalyzeRisksQuery) Validate() error {
	if !shared.IsValidUserID(q.UserID) {
		return shared.ErrInvalidID
	}
	return nil
}

// RiskDTO - DTO одной серии под угрозой.
type RiskDTO struct {
	StreakID           string   `json:"streak_id"`
	StreakType         string   `json:"streak_type"`
	CurrentCount       int      `json:"current_count"`
	RiskLevel          string   `json:"risk_level"`
	DaysSinceActivity  int      `json:"days_since_activity"`
	UrgencyScore       float64  `json:"urgency_score"`
	RecommendedActions []string `json:"recommended_actions"`
}

// AnalyzeRisksResult содержит результат оценки рисков.
type AnalyzeRisksResult struct {
	UserID string    `json:"user_id"`
	AsOf   time.Time `json:"as_of"`
	Risks  []RiskDTO `json:"risks"`
}

// AnalyzeRisksHandler обрабатывает AnalyzeRisksQuery.
type AnalyzeRisksHandler struct {
	streakRepo streak.Repository
	assessor   *streak.Assessor
}

// NewAnalyzeRisksHandler создаёт обработчик оценки рисков.
func NewAnalyzeRisksHandler(streakRepo streak.Repository, assessor *streak.Assessor) *AnalyzeRisksHandler {
	if assessor == nil {
		assessor = streak.NewAssessor(streak.DefaultAssessorConfig())
	}
	return &AnalyzeRisksHandler{
		streakRepo: streakRepo,
		assessor:   assessor,
	}
}

// Handle выполняет оценку рисков.
func (h *AnalyzeRisksHandler) Handle(ctx context.Context, q AnalyzeRisksQuery) (*AnalyzeRisksResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("analyze_risks: %w", err)
	}

	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	streaks, err := h.streakRepo.GetActiveByUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("analyze_risks: failed to list streaks: %w", err)
	}

	analyses := h.assessor.AssessAll(streaks, asOf)

	result := &AnalyzeRisksResult{
		UserID: q.UserID,
		AsOf:   asOf,
		Risks:  make([]RiskDTO, 0, len(analyses)),
	}

	for _, a := range analyses {
		actions := make([]string, len(a.RecommendedActions))
		for i, action := range a.RecommendedActions {
			actions[i] = string(action)
		}

		result.Risks = append(result.Risks, RiskDTO{
			StreakID:           a.StreakID,
			StreakType:         string(a.StreakType),
			CurrentCount:       a.CurrentCount,
			RiskLevel:          a.RiskLevel.String(),
			DaysSinceActivity:  a.DaysSinceLastActivity,
			UrgencyScore:       a.UrgencyScore,
			RecommendedActions: actions,
		})
	}

	return result, nil
}
