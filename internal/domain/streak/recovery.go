package streak

import (
	"errors"
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK RECOVERY
// Ограниченный во времени протокол восстановления прерванной серии: пользователь
// может "вернуть" наследие серии (лучший результат), выполнив фиксированное
// число квалифицирующих действий внутри льготного окна.
// ══════════════════════════════════════════════════════════════════════════════

// Параметры восстановления по умолчанию. Значения конфигурируемы; константы
// задают поведение, когда конфигурация не передана.
const (
	// DefaultRequiredActions - сколько квалифицирующих действий нужно
	// для успешного восстановления.
	DefaultRequiredActions = 3

	// DefaultRecoveryWindow - льготное окно с момента начала восстановления.
	DefaultRecoveryWindow = 7 * 24 * time.Hour
)

// RecoveryStatus представляет состояние восстановления.
type RecoveryStatus string

const (
	// RecoveryStatusOpen - восстановление идёт, действия накапливаются.
	RecoveryStatusOpen RecoveryStatus = "open"
	// RecoveryStatusSucceeded - нужное число действий набрано в срок.
	RecoveryStatusSucceeded RecoveryStatus = "succeeded"
	// RecoveryStatusFailed - окно истекло раньше, чем набрались действия.
	RecoveryStatusFailed RecoveryStatus = "failed"
)

// RecoveryAction - одно квалифицирующее действие внутри восстановления.
type RecoveryAction struct {
	// ActionType - тип выполненного действия.
	ActionType shared.ActionType

	// CompletedAt - когда действие выполнено.
	CompletedAt time.Time

	// PointsAwarded - сколько очков начислено за действие.
	PointsAwarded int
}

// StreakRecovery - запись о восстановлении прерванной серии.
// Инвариант: на одну прерванную серию одновременно существует не более
// одного открытого восстановления.
type StreakRecovery struct {
	// ID - суррогатный уникальный идентификатор.
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// OriginalStreakID - серия, которую восстанавливаем.
	OriginalStreakID string

	// StreakType - тип серии.
	StreakType Type

	// OriginalCount - длина серии на момент прерывания; используется как
	// нижняя граница BestCount восстановленной серии.
	OriginalCount int

	// BrokenAt - когда серия была прервана.
	BrokenAt time.Time

	// RecoveryStarted - когда восстановление началось.
	RecoveryStarted time.Time

	// RecoveryCompleted - когда восстановление закрылось (nil, пока открыто).
	RecoveryCompleted *time.Time

	// Deadline - крайний срок: RecoveryStarted + льготное окно.
	Deadline time.Time

	// RequiredActions - сколько действий нужно для успеха.
	RequiredActions int

	// IsSuccessful - закрылось ли восстановление успехом.
	IsSuccessful bool

	// Actions - упорядоченный список выполненных действий.
	Actions []RecoveryAction

	// Version - версия строки для оптимистичной блокировки.
	Version int
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewStreakRecovery открывает восстановление для прерванной серии.
func NewStreakRecovery(id string, s *Streak, previousCount int, now time.Time, requiredActions int, window time.Duration) (*StreakRecovery, error) {
	if id == "" {
		return nil, errors.New("recovery id is required")
	}

	if s == nil {
		return nil, shared.ErrStreakNotFound
	}

	if s.RiskLevel != RiskBroken {
		return nil, shared.ErrStreakNotBroken
	}

	if requiredActions <= 0 {
		requiredActions = DefaultRequiredActions
	}
	if window <= 0 {
		window = DefaultRecoveryWindow
	}

	originalCount := previousCount
	if originalCount <= 0 {
		// Потерянная длина неизвестна (трекер уже сбросил счётчик) -
		// наследием считаем лучший результат серии
		originalCount = s.BestCount
	}

	return &StreakRecovery{
		ID:               id,
		UserID:           s.UserID,
		OriginalStreakID: s.ID,
		StreakType:       s.Type,
		OriginalCount:    originalCount,
		BrokenAt:         s.UpdatedAt,
		RecoveryStarted:  now,
		Deadline:         now.Add(window),
		RequiredActions:  requiredActions,
		IsSuccessful:     false,
		Actions:          make([]RecoveryAction, 0, requiredActions),
		Version:          0,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Status возвращает текущее состояние восстановления.
func (r *StreakRecovery) Status() RecoveryStatus {
	if r.RecoveryCompleted == nil {
		return RecoveryStatusOpen
	}
	if r.IsSuccessful {
		return RecoveryStatusSucceeded
	}
	return RecoveryStatusFailed
}

// IsOpen проверяет, открыто ли восстановление.
func (r *StreakRecovery) IsOpen() bool {
	return r.RecoveryCompleted == nil
}

// IsExpired проверяет, истёк ли крайний срок открытого восстановления.
func (r *StreakRecovery) IsExpired(now time.Time) bool {
	return r.IsOpen() && now.After(r.Deadline)
}

// ActionsCompleted возвращает число накопленных действий.
func (r *StreakRecovery) ActionsCompleted() int {
	return len(r.Actions)
}

// IsRecoveryComplete проверяет, набрано ли нужное число действий.
func (r *StreakRecovery) IsRecoveryComplete() bool {
	return len(r.Actions) >= r.RequiredActions
}

// AddAction записывает квалифицирующее действие. Возвращает true, когда это
// действие завершило восстановление. Дубликат того же действия в тот же миг
// не засчитывается. Попытка добавить действие в закрытое восстановление
// возвращает shared.ErrRecoveryClosed - вызывающий должен вернуть клиенту
// текущее закрытое состояние, а не ошибку.
func (r *StreakRecovery) AddAction(actionType shared.ActionType, completedAt time.Time, points int) (bool, error) {
	if !r.IsOpen() {
		return false, shared.ErrRecoveryClosed
	}

	if completedAt.After(r.Deadline) {
		return false, shared.ErrRecoveryExpired
	}

	for _, a := range r.Actions {
		if a.ActionType == actionType && a.CompletedAt.Equal(completedAt) {
			// Идентичное действие в тот же миг - не отдельное событие
			return false, nil
		}
	}

	r.Actions = append(r.Actions, RecoveryAction{
		ActionType:    actionType,
		CompletedAt:   completedAt,
		PointsAwarded: points,
	})

	if r.IsRecoveryComplete() {
		r.markSucceeded(completedAt)
		return true, nil
	}

	return false, nil
}

// MarkFailed закрывает восстановление как неуспешное (окно истекло).
func (r *StreakRecovery) MarkFailed(now time.Time) error {
	if !r.IsOpen() {
		return shared.ErrRecoveryClosed
	}

	t := now
	r.RecoveryCompleted = &t
	r.IsSuccessful = false
	return nil
}

func (r *StreakRecovery) markSucceeded(at time.Time) {
	t := at
	r.RecoveryCompleted = &t
	r.IsSuccessful = true
}

// SeedRestoredStreak создаёт новую серию после успешного восстановления.
// Новая серия начинается с CurrentCount=1, её BestCount - максимум из
// исторического лучшего результата и потерянной длины, счётчик попыток
// восстановления увеличивается ровно на единицу.
func (r *StreakRecovery) SeedRestoredStreak(newID string, original *Streak, now time.Time) (*Streak, error) {
	if r.Status() != RecoveryStatusSucceeded {
		return nil, shared.ErrInvalidState
	}

	if original == nil {
		return nil, shared.ErrStreakNotFound
	}

	restored, err := NewStreak(newID, r.UserID, r.StreakType, now)
	if err != nil {
		return nil, err
	}

	best := original.BestCount
	if r.OriginalCount > best {
		best = r.OriginalCount
	}

	restored.BestCount = best
	restored.RecoveryAttempts = original.RecoveryAttempts + 1
	restored.LastActivityDate = timeutil.StartOfDay(now)

	return restored, nil
}

// RestoreIntoLiveStreak переносит наследие успешного восстановления в уже
// существующую живую серию той же пары (пользователь, тип): квалифицирующие
// действия окна восстановления обычно успевают породить новую серию через
// обычный трекер, а активная серия на пару может быть только одна. Текущий
// счётчик живой серии не трогается - он отражает реальные дни активности;
// поднимаются только BestCount и счётчик попыток.
func (r *StreakRecovery) RestoreIntoLiveStreak(live, original *Streak, now time.Time) error {
	if r.Status() != RecoveryStatusSucceeded {
		return shared.ErrInvalidState
	}

	if live == nil || original == nil {
		return shared.ErrStreakNotFound
	}

	if !live.IsActive || live.UserID != r.UserID || live.Type != r.StreakType {
		return shared.ErrInvalidState
	}

	best := original.BestCount
	if r.OriginalCount > best {
		best = r.OriginalCount
	}
	if best > live.BestCount {
		live.BestCount = best
	}

	live.RecoveryAttempts = original.RecoveryAttempts + 1
	live.UpdatedAt = now
	return nil
}

// String возвращает строковое представление восстановления для логирования.
func (r *StreakRecovery) String() string {
	return fmt.Sprintf(
		"StreakRecovery{ID: %s, Streak: %s, Actions: %d/%d, Status: %s}",
		r.ID, r.OriginalStreakID, len(r.Actions), r.RequiredActions, r.Status(),
	)
}
