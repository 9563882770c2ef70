// Package streak содержит доменную модель серий (streaks) пользовательской
// активности. Это ядро бизнес-логики - здесь нет внешних зависимостей и I/O:
// все методы - чистые функции вида (состояние, событие) -> новое состояние.
package streak

import (
	"errors"
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type представляет тип серии (за какую привычку она отвечает).
type Type string

const (
	// TypeDailyCheckIn - ежедневный вход в приложение.
	TypeDailyCheckIn Type = "daily_check_in"

	// TypeTransactionCategorization - ежедневная категоризация транзакций.
	TypeTransactionCategorization Type = "transaction_categorization"

	// TypeBudgetAdherence - ежедневный контроль бюджета.
	TypeBudgetAdherence Type = "budget_adherence"

	// TypeSavingsContribution - еженедельные сберегательные взносы.
	TypeSavingsContribution Type = "savings_contribution"
)

// KnownTypes возвращает все известные типы серий.
func KnownTypes() []Type {
	return []Type{
		TypeDailyCheckIn,
		TypeTransactionCategorization,
		TypeBudgetAdherence,
		TypeSavingsContribution,
	}
}

// IsValid проверяет, что тип серии корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeDailyCheckIn, TypeTransactionCategorization,
		TypeBudgetAdherence, TypeSavingsContribution:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// RiskLevel представляет дискретный уровень риска прерывания серии.
type RiskLevel string

const (
	// RiskSafe - активность была сегодня, серия в безопасности.
	RiskSafe RiskLevel = "safe"
	// RiskLow - пропущен один день, лёгкое напоминание уместно.
	RiskLow RiskLevel = "low_risk"
	// RiskMedium - пропущено два дня, серия под угрозой.
	RiskMedium RiskLevel = "medium_risk"
	// RiskHigh - пропущено три и более дней, серия вот-вот прервётся.
	RiskHigh RiskLevel = "high_risk"
	// RiskBroken - серия прервана.
	RiskBroken RiskLevel = "broken"
)

// IsValid проверяет корректность уровня риска.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskSafe, RiskLow, RiskMedium, RiskHigh, RiskBroken:
		return true
	default:
		return false
	}
}

// Severity возвращает числовой вес уровня риска для монотонных сравнений.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskSafe:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskBroken:
		return 4
	default:
		return 0
	}
}

// String возвращает строковое представление уровня риска.
func (r RiskLevel) String() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY (настройки каденции и допустимых пропусков по типам серий)
// Таблица конфигурируема: длина льготного периода не является константой кода.
// ══════════════════════════════════════════════════════════════════════════════

// Policy описывает каденцию серии и допустимые пропуски.
type Policy struct {
	// PeriodDays - длина одного квалифицирующего периода в днях
	// (1 для ежедневных серий, 7 для еженедельных).
	PeriodDays int

	// GraceDays - сколько дополнительных дней после периода допускается
	// до прерывания серии.
	GraceDays int

	// Triggers - типы действий, которые продлевают эту серию.
	// Действия других типов серию никогда не затрагивают.
	Triggers []shared.ActionType
}

// MaxGapDays возвращает максимальный разрыв в днях, при котором серия ещё
// продлевается: один полный период плюс вся льгота. Разрыв больше этого
// значения прерывает серию - и ровно та же граница отделяет серию
// "под угрозой" (риск ещё снимается действием) от фактически мёртвой.
func (p Policy) MaxGapDays() int {
	return p.PeriodDays + p.GraceDays
}

// IsTriggeredBy проверяет, продлевает ли действие данного типа эту серию.
func (p Policy) IsTriggeredBy(action shared.ActionType) bool {
	for _, t := range p.Triggers {
		if t == action {
			return true
		}
	}
	return false
}

// PolicyTable сопоставляет тип серии с его политикой.
type PolicyTable map[Type]Policy

// DefaultPolicyTable возвращает политику по умолчанию для всех типов серий.
// Ежедневные типы: льгота 1 день; еженедельные: льгота 7 дней.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		TypeDailyCheckIn: {
			PeriodDays: 1,
			GraceDays:  1,
			Triggers:   []shared.ActionType{shared.ActionDailyCheckIn, shared.ActionCheckBalance},
		},
		TypeTransactionCategorization: {
			PeriodDays: 1,
			GraceDays:  1,
			Triggers:   []shared.ActionType{shared.ActionCategorizeTransaction},
		},
		TypeBudgetAdherence: {
			PeriodDays: 1,
			GraceDays:  1,
			Triggers:   []shared.ActionType{shared.ActionBudgetReview},
		},
		TypeSavingsContribution: {
			PeriodDays: 7,
			GraceDays:  7,
			Triggers:   []shared.ActionType{shared.ActionSavingsContribution},
		},
	}
}

// TypesForAction возвращает типы серий, которые продлевает данное действие.
func (pt PolicyTable) TypesForAction(action shared.ActionType) []Type {
	var types []Type
	for _, st := range KnownTypes() {
		policy, ok := pt[st]
		if !ok {
			continue
		}
		if policy.IsTriggeredBy(action) {
			types = append(types, st)
		}
	}
	return types
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Streak - серия последовательных квалифицирующих периодов для пары
// (пользователь, тип серии). Прерванная серия не удаляется: строка остаётся
// исторической записью, удаление возможно только при полной очистке данных
// пользователя (GDPR/PIPEDA).
type Streak struct {
	// ID - суррогатный уникальный идентификатор (UUID в строковом формате).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// Type - тип серии.
	Type Type

	// CurrentCount - текущее число последовательных периодов (>= 0).
	CurrentCount int

	// BestCount - лучший результат за всю историю, включая прошлые
	// инкарнации после восстановления. Инвариант: BestCount >= CurrentCount,
	// значение монотонно не убывает.
	BestCount int

	// LastActivityDate - дата последней квалифицирующей активности.
	// Хранится как начало календарного дня: периоды имеют дневную гранулярность.
	LastActivityDate time.Time

	// StartedDate - дата начала текущей инкарнации серии.
	StartedDate time.Time

	// IsActive - жива ли серия. RiskLevel == RiskBroken влечёт IsActive == false.
	IsActive bool

	// RiskLevel - текущий уровень риска прерывания.
	RiskLevel RiskLevel

	// RecoveryAttempts - сколько раз серия восстанавливалась.
	// Счётчик переносится между инкарнациями.
	RecoveryAttempts int

	// LastReminderSent - когда пользователю в последний раз отправляли
	// напоминание об этой серии (анти-спам). Nil, если не отправляли.
	LastReminderSent *time.Time

	// LastMilestone - последний отмеченный рубеж текущей инкарнации.
	// Сбрасывается в 0 при новой инкарнации: каждый рубеж празднуется
	// не более одного раза на инкарнацию.
	LastMilestone int

	// Version - версия строки для оптимистичной блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStreak создаёт новую серию после первого квалифицирующего действия.
func NewStreak(id, userID string, streakType Type, activityDate time.Time) (*Streak, error) {
	if id == "" {
		return nil, errors.New("streak id is required")
	}

	if !shared.IsValidUserID(userID) {
		return nil, shared.ErrInvalidID
	}

	if !streakType.IsValid() {
		return nil, shared.ErrInvalidStreakType
	}

	day := timeutil.StartOfDay(activityDate)
	now := activityDate

	return &Streak{
		ID:               id,
		UserID:           userID,
		Type:             streakType,
		CurrentCount:     1,
		BestCount:        1,
		LastActivityDate: day,
		StartedDate:      day,
		IsActive:         true,
		RiskLevel:        RiskSafe,
		RecoveryAttempts: 0,
		LastReminderSent: nil,
		LastMilestone:    0,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// RecordResult описывает результат записи активности.
type RecordResult struct {
	// WasExtended - серия продлена на один период.
	WasExtended bool

	// WasBroken - разрыв превысил льготу, началась новая инкарнация.
	WasBroken bool

	// PreviousCount - длина серии до прерывания (заполняется при WasBroken).
	PreviousCount int

	// DaysMissed - сколько календарных дней было пропущено (при WasBroken).
	DaysMissed int
}

// RecordActivity записывает квалифицирующую активность и продвигает автомат
// состояний серии. Повторная активность в тот же календарный день идемпотентна.
func (s *Streak) RecordActivity(date time.Time, policy Policy) RecordResult {
	day := timeutil.StartOfDay(date)

	// Активность задним числом не двигает серию назад
	if day.Before(s.LastActivityDate) {
		return RecordResult{}
	}

	gap := timeutil.DaysBetween(s.LastActivityDate, day)

	switch {
	case gap < policy.PeriodDays:
		// Тот же квалифицирующий период - идемпотентный no-op
		return RecordResult{}

	case gap <= policy.MaxGapDays():
		// Следующий период - продлеваем серию
		s.CurrentCount++
		if s.CurrentCount > s.BestCount {
			s.BestCount = s.CurrentCount
		}
		s.LastActivityDate = day
		s.IsActive = true
		s.RiskLevel = RiskSafe
		s.UpdatedAt = date
		return RecordResult{WasExtended: true}

	default:
		// Разрыв превысил льготу: лучший результат сохраняется, счётчик
		// начинает новую инкарнацию. Восстановление прежней длины возможно
		// только через Recovery Coordinator.
		previous := s.CurrentCount
		s.CurrentCount = 1
		s.StartedDate = day
		s.LastActivityDate = day
		s.IsActive = false
		s.RiskLevel = RiskBroken
		s.LastMilestone = 0
		s.UpdatedAt = date
		return RecordResult{
			WasBroken:     true,
			PreviousCount: previous,
			DaysMissed:    gap - 1,
		}
	}
}

// MarkBroken помечает серию прерванной без новой активности (используется
// фоновым сканером, когда разрыв вышел за горизонт риска).
func (s *Streak) MarkBroken(now time.Time) {
	if s.RiskLevel == RiskBroken {
		return
	}
	s.IsActive = false
	s.RiskLevel = RiskBroken
	s.UpdatedAt = now
}

// MarkReminderSent фиксирует отправку напоминания (анти-спам).
func (s *Streak) MarkReminderSent(at time.Time) {
	t := at
	s.LastReminderSent = &t
	s.UpdatedAt = at
}

// DaysSinceActivity возвращает число календарных дней с последней активности.
func (s *Streak) DaysSinceActivity(now time.Time) int {
	return timeutil.DaysBetween(s.LastActivityDate, now)
}

// CheckInvariants проверяет доменные инварианты серии.
func (s *Streak) CheckInvariants() error {
	if s.CurrentCount < 0 {
		return shared.ErrNegativeValue
	}
	if s.BestCount < s.CurrentCount {
		return fmt.Errorf("%w: best count %d below current count %d",
			shared.ErrInvalidEntity, s.BestCount, s.CurrentCount)
	}
	if s.RiskLevel == RiskBroken && s.IsActive {
		return fmt.Errorf("%w: broken streak cannot be active", shared.ErrInvalidState)
	}
	return nil
}

// String возвращает строковое представление серии для логирования.
func (s *Streak) String() string {
	return fmt.Sprintf(
		"Streak{ID: %s, User: %s, Type: %s, Current: %d, Best: %d, Risk: %s}",
		s.ID, s.UserID, s.Type, s.CurrentCount, s.BestCount, s.RiskLevel,
	)
}

// Clone создаёт глубокую копию серии.
func (s *Streak) Clone() *Streak {
	if s == nil {
		return nil
	}

	clone := *s
	if s.LastReminderSent != nil {
		t := *s.LastReminderSent
		clone.LastReminderSent = &t
	}
	return &clone
}
