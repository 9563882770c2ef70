// Package gamification содержит доменную модель очков, уровней, достижений,
// рубежей и микро-побед. Здесь нет внешних зависимостей и I/O.
package gamification

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Points представляет очки вовлечённости.
type Points int

// IsValid проверяет, что очки неотрицательны.
func (p Points) IsValid() bool {
	return p >= 0
}

// Add складывает очки.
func (p Points) Add(delta Points) Points {
	return p + delta
}

// Level представляет уровень пользователя, вычисляемый из суммарных очков.
type Level int

// pointsPerLevelUnit задаёт крутизну кривой уровней.
const pointsPerLevelUnit = 100

// CalculateLevel вычисляет уровень по суммарным очкам.
// Кривая нелинейная: порог уровня n равен (n-1)^2 * 100 очков
// (0, 100, 400, 900, 1600, 2500...). Уровень не ниже первого.
func CalculateLevel(total Points) Level {
	if total <= 0 {
		return 1
	}
	return Level(math.Sqrt(float64(total)/pointsPerLevelUnit)) + 1
}

// FloorFor возвращает минимальные суммарные очки для уровня.
func FloorFor(level Level) Points {
	if level <= 1 {
		return 0
	}
	n := int(level) - 1
	return Points(n * n * pointsPerLevelUnit)
}

// PointsToNext возвращает, сколько очков осталось до следующего уровня.
func PointsToNext(total Points) Points {
	next := CalculateLevel(total) + 1
	remaining := FloorFor(next) - total
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTION POINTS TABLE
// ══════════════════════════════════════════════════════════════════════════════

// ActionPoints сопоставляет тип действия с базовым числом очков.
type ActionPoints map[shared.ActionType]int

// DefaultActionPoints возвращает таблицу базовых очков по умолчанию.
func DefaultActionPoints() ActionPoints {
	return ActionPoints{
		shared.ActionCheckBalance:          5,
		shared.ActionDailyCheckIn:          5,
		shared.ActionCategorizeTransaction: 10,
		shared.ActionBudgetReview:          10,
		shared.ActionUpdateGoal:            15,
		shared.ActionSavingsContribution:   20,
		shared.ActionCompleteLesson:        25,
		shared.ActionLinkAccount:           50,
	}
}

// BasePointsFor возвращает базовые очки за действие.
// Возвращает shared.ErrUnknownAction для неизвестного типа.
func (ap ActionPoints) BasePointsFor(action shared.ActionType) (int, error) {
	points, ok := ap[action]
	if !ok {
		return 0, shared.ErrUnknownAction
	}
	return points, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: GAMIFICATION PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - агрегат вовлечённости пользователя. Уровень - производная
// величина от суммарных очков, отдельно он не хранится и не назначается.
type Profile struct {
	// UserID - идентификатор пользователя.
	UserID string

	// TotalPoints - суммарные очки. Монотонно не убывают.
	TotalPoints Points

	// LastActivity - время последнего действия.
	LastActivity time.Time

	// Version - версия строки для оптимистичной блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewProfile создаёт профиль для нового пользователя.
func NewProfile(userID string, now time.Time) (*Profile, error) {
	if !shared.IsValidUserID(userID) {
		return nil, shared.ErrInvalidID
	}

	return &Profile{
		UserID:       userID,
		TotalPoints:  0,
		LastActivity: now,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Level возвращает текущий уровень пользователя.
func (p *Profile) Level() Level {
	return CalculateLevel(p.TotalPoints)
}

// AwardResult описывает результат начисления очков.
type AwardResult struct {
	// PointsAwarded - сколько очков фактически начислено (после ограничения).
	PointsAwarded int

	// TotalPoints - суммарные очки после начисления.
	TotalPoints int

	// PreviousLevel - уровень до начисления.
	PreviousLevel int

	// NewLevel - уровень после начисления.
	NewLevel int

	// LeveledUp - был ли пересечён порог уровня.
	LeveledUp bool
}

// AwardPoints начисляет очки. Отрицательные значения ограничиваются нулём:
// суммарные очки никогда не уменьшаются.
func (p *Profile) AwardPoints(points int, now time.Time) AwardResult {
	if points < 0 {
		points = 0
	}

	previousLevel := p.Level()
	p.TotalPoints = p.TotalPoints.Add(Points(points))
	p.LastActivity = now
	p.UpdatedAt = now
	newLevel := p.Level()

	return AwardResult{
		PointsAwarded: points,
		TotalPoints:   int(p.TotalPoints),
		PreviousLevel: int(previousLevel),
		NewLevel:      int(newLevel),
		LeveledUp:     newLevel > previousLevel,
	}
}

// String возвращает строковое представление профиля для логирования.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{User: %s, Points: %d, Level: %d}",
		p.UserID, p.TotalPoints, p.Level(),
	)
}

// Clone создаёт глубокую копию профиля.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryEntry - неизменяемая запись аудита начисления очков.
// Записи только добавляются; удаление возможно лишь при полной очистке
// данных пользователя.
type HistoryEntry struct {
	// ID - суррогатный уникальный идентификатор.
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// Points - начисленные очки.
	Points int

	// Action - действие, за которое начислены очки.
	Action shared.ActionType

	// Description - человекочитаемое описание начисления.
	Description string

	// EarnedAt - когда очки заработаны.
	EarnedAt time.Time
}

// NewHistoryEntry создаёт запись истории начислений.
func NewHistoryEntry(id, userID string, points int, action shared.ActionType, description string, earnedAt time.Time) (*HistoryEntry, error) {
	if id == "" {
		return nil, errors.New("history entry id is required")
	}
	if !shared.IsValidUserID(userID) {
		return nil, shared.ErrInvalidID
	}
	if points < 0 {
		return nil, shared.ErrNegativeValue
	}

	return &HistoryEntry{
		ID:          id,
		UserID:      userID,
		Points:      points,
		Action:      action,
		Description: description,
		EarnedAt:    earnedAt,
	}, nil
}
