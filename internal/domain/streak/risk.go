package streak

import (
	"sort"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK ASSESSOR
// Классифицирует риск прерывания активных серий по времени с последней
// активности и длине серии. Ничего не мутирует и не отправляет: результат
// потребляет внешний планировщик уведомлений.
// ══════════════════════════════════════════════════════════════════════════════

// RiskAnalysis - результат оценки риска для одной серии.
type RiskAnalysis struct {
	// StreakID - идентификатор серии.
	StreakID string

	// UserID - идентификатор пользователя.
	UserID string

	// StreakType - тип серии.
	StreakType Type

	// CurrentCount - текущая длина серии (сколько пользователь может потерять).
	CurrentCount int

	// RiskLevel - вычисленный уровень риска.
	RiskLevel RiskLevel

	// DaysSinceLastActivity - календарных дней с последней активности.
	DaysSinceLastActivity int

	// UrgencyScore - монотонная функция (уровень риска, длина серии):
	// чем длиннее серия при том же уровне, тем выше балл. Используется для
	// приоритизации напоминаний между несколькими сериями одного пользователя.
	UrgencyScore float64

	// RecommendedActions - типы действий, которые снимут риск.
	RecommendedActions []shared.ActionType

	// ReminderKey - ключ шаблона напоминания (сам текст - забота внешнего слоя).
	ReminderKey string

	// ShouldRemind - уместно ли напоминание с учётом анти-спам кулдауна.
	ShouldRemind bool
}

// AssessorConfig содержит настройки оценщика риска.
type AssessorConfig struct {
	// ReminderCooldown - минимальный интервал между напоминаниями об одной
	// серии, независимо от уровня риска.
	ReminderCooldown time.Duration

	// Policies - таблица политик по типам серий.
	Policies PolicyTable
}

// DefaultAssessorConfig возвращает настройки по умолчанию (кулдаун 24 часа).
func DefaultAssessorConfig() AssessorConfig {
	return AssessorConfig{
		ReminderCooldown: 24 * time.Hour,
		Policies:         DefaultPolicyTable(),
	}
}

// Assessor вычисляет риск прерывания серий.
type Assessor struct {
	config AssessorConfig
}

// NewAssessor создаёт оценщик риска.
func NewAssessor(config AssessorConfig) *Assessor {
	if config.ReminderCooldown <= 0 {
		config.ReminderCooldown = 24 * time.Hour
	}
	if config.Policies == nil {
		config.Policies = DefaultPolicyTable()
	}
	return &Assessor{config: config}
}

// Assess оценивает риск одной серии на момент now.
// Возвращает nil для неактивных серий и серий, чей разрыв уже превысил
// льготу: такую серию действие не спасёт, ею занимаются трекер и
// координатор восстановления.
func (a *Assessor) Assess(s *Streak, now time.Time) *RiskAnalysis {
	if s == nil || !s.IsActive || s.RiskLevel == RiskBroken {
		return nil
	}

	policy, ok := a.config.Policies[s.Type]
	if !ok {
		return nil
	}

	days := timeutil.DaysBetween(s.LastActivityDate, now)
	if days > policy.MaxGapDays() {
		// Риск уже не снимается: серия фактически мертва, а не "под угрозой".
		// RecommendedActions всегда действительно спасают серию.
		return nil
	}

	level := riskLevelForGap(days, policy)
	analysis := &RiskAnalysis{
		StreakID:              s.ID,
		UserID:                s.UserID,
		StreakType:            s.Type,
		CurrentCount:          s.CurrentCount,
		RiskLevel:             level,
		DaysSinceLastActivity: days,
		UrgencyScore:          urgencyScore(level, s.CurrentCount),
		RecommendedActions:    append([]shared.ActionType(nil), policy.Triggers...),
		ReminderKey:           reminderKey(s.Type, level),
		ShouldRemind:          a.shouldRemind(s, level, now),
	}
	return analysis
}

// AssessAll оценивает все серии пользователя и сортирует результат по
// убыванию срочности.
func (a *Assessor) AssessAll(streaks []*Streak, now time.Time) []RiskAnalysis {
	analyses := make([]RiskAnalysis, 0, len(streaks))
	for _, s := range streaks {
		if analysis := a.Assess(s, now); analysis != nil {
			analyses = append(analyses, *analysis)
		}
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].UrgencyScore > analyses[j].UrgencyScore
	})

	return analyses
}

// shouldRemind проверяет анти-спам кулдаун: повторное напоминание не
// рекомендуется внутри окна независимо от уровня риска.
func (a *Assessor) shouldRemind(s *Streak, level RiskLevel, now time.Time) bool {
	if level == RiskSafe {
		return false
	}

	if s.LastReminderSent == nil {
		return true
	}

	return now.Sub(*s.LastReminderSent) >= a.config.ReminderCooldown
}

// riskLevelForGap переводит разрыв в днях в уровень риска.
// Шкала монотонна: 0 дней - safe, 1 - low, 2 - medium, 3 и более - high.
// Для еженедельных серий дни внутри текущего периода риском не считаются.
// Уровень high достижим только при длинной льготе (еженедельные серии):
// у ежедневных серий третий день простоя уже превышает льготу.
func riskLevelForGap(days int, policy Policy) RiskLevel {
	if days < policy.PeriodDays {
		return RiskSafe
	}

	over := days - policy.PeriodDays + 1

	switch {
	case over <= 0:
		return RiskSafe
	case over == 1:
		return RiskLow
	case over == 2:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Базовые веса уровней риска для балла срочности.
const (
	urgencyBaseLow    = 25.0
	urgencyBaseMedium = 50.0
	urgencyBaseHigh   = 75.0

	// urgencyCountCap ограничивает вклад длины серии, чтобы балл оставался
	// в пределах сотни.
	urgencyCountCap = 25
)

// urgencyScore вычисляет балл срочности: строго возрастает по уровню риска
// и не убывает по длине серии (длинной серии есть что терять).
func urgencyScore(level RiskLevel, currentCount int) float64 {
	var base float64
	switch level {
	case RiskLow:
		base = urgencyBaseLow
	case RiskMedium:
		base = urgencyBaseMedium
	case RiskHigh:
		base = urgencyBaseHigh
	default:
		return 0
	}

	count := currentCount
	if count > urgencyCountCap {
		count = urgencyCountCap
	}
	return base + float64(count)
}

// reminderKey формирует ключ шаблона напоминания для внешнего слоя.
func reminderKey(t Type, level RiskLevel) string {
	return "streak_risk." + string(t) + "." + string(level)
}
