package gamification

import (
	"time"

	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// CelebrationIntensity управляет пышностью анимации на клиенте.
type CelebrationIntensity string

const (
	IntensityLow    CelebrationIntensity = "LOW"
	IntensityMedium CelebrationIntensity = "MEDIUM"
	IntensityHigh   CelebrationIntensity = "HIGH"
)

// Duration возвращает длительность анимации для интенсивности.
func (ci CelebrationIntensity) Duration() time.Duration {
	switch ci {
	case IntensityHigh:
		return 2600 * time.Millisecond
	case IntensityMedium:
		return 1800 * time.Millisecond
	default:
		return 1200 * time.Millisecond
	}
}

// streakMilestones - пороги серий в порядке возрастания.
var streakMilestones = []int{3, 7, 14, 30, 50, 90, 180, 365}

// streakMilestoneBonuses - бонусные очки за каждый порог.
var streakMilestoneBonuses = map[int]int{
	3:   15,
	7:   50,
	14:  100,
	30:  250,
	50:  400,
	90:  750,
	180: 1200,
	365: 2000,
}

// StreakMilestones возвращает копию списка порогов.
func StreakMilestones() []int {
	out := make([]int, len(streakMilestones))
	copy(out, streakMilestones)
	return out
}

// MilestoneBonus возвращает бонусные очки за порог, 0 для не-порога.
func MilestoneBonus(count int) int {
	return streakMilestoneBonuses[count]
}

// IsStreakMilestone сообщает, является ли значение счётчика порогом.
func IsStreakMilestone(count int) bool {
	_, ok := streakMilestoneBonuses[count]
	return ok
}

// IntensityForCount возвращает интенсивность празднования по длине серии.
func IntensityForCount(count int) CelebrationIntensity {
	switch {
	case count >= 30:
		return IntensityHigh
	case count >= 7:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CELEBRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Celebration - разовое празднование, отдаваемое клиенту.
type Celebration struct {
	// UserID - идентификатор пользователя.
	UserID string

	// StreakType - тип серии (пусто для празднований без серии).
	StreakType streak.Type

	// Milestone - достигнутый порог.
	Milestone int

	// BonusPoints - бонусные очки за порог.
	BonusPoints int

	// Intensity - интенсивность анимации.
	Intensity CelebrationIntensity

	// DurationMs - длительность анимации в миллисекундах.
	DurationMs int64

	// Message - текст празднования.
	Message string

	// OccurredAt - момент празднования.
	OccurredAt time.Time
}

// CelebrateStreakMilestone проверяет, пересёк ли счётчик серии новый порог,
// и при необходимости создаёт празднование. Каждый порог празднуется
// не более одного раза за жизнь серии: уже отпразднованный порог
// запоминается в s.LastMilestone и сбрасывается только при обрыве.
func CelebrateStreakMilestone(s *streak.Streak, now time.Time) *Celebration {
	if s == nil || !IsStreakMilestone(s.CurrentCount) {
		return nil
	}
	if s.CurrentCount <= s.LastMilestone {
		return nil
	}

	s.LastMilestone = s.CurrentCount
	intensity := IntensityForCount(s.CurrentCount)

	return &Celebration{
		UserID:      s.UserID,
		StreakType:  s.Type,
		Milestone:   s.CurrentCount,
		BonusPoints: MilestoneBonus(s.CurrentCount),
		Intensity:   intensity,
		DurationMs:  intensity.Duration().Milliseconds(),
		Message:     MilestoneMessage(s.CurrentCount),
		OccurredAt:  now,
	}
}

// MilestoneMessage возвращает текст празднования для длины серии.
func MilestoneMessage(count int) string {
	switch {
	case count >= 365:
		return "Целый год без пропусков. Легенда!"
	case count >= 90:
		return "90+ дней подряд. Это уже образ жизни."
	case count >= 30:
		return "Месяц дисциплины. Так держать!"
	case count >= 7:
		return "Неделя подряд. Привычка закрепляется."
	default:
		return "Отличное начало серии!"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL PROGRESS MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// goalProgressMilestones - пороги прогресса цели в процентах.
var goalProgressMilestones = []int{25, 50, 75, 100}

// Границы бонуса за порог цели: даже скромная цель что-то приносит,
// а огромная не ломает экономику очков.
const (
	minGoalBonus = 5
	maxGoalBonus = 500
)

// GoalProgressCelebration проверяет, пересёк ли прогресс цели новый порог
// (25/50/75/100%), и создаёт празднование для наибольшего пересечённого.
// previousPercent - прогресс до действия, currentPercent - после,
// targetAmount - размер цели в минимальных единицах валюты. Бонус
// пропорционален и порогу, и размеру цели.
func GoalProgressCelebration(userID string, previousPercent, currentPercent, targetAmount int, now time.Time) *Celebration {
	if currentPercent <= previousPercent {
		return nil
	}

	crossed := 0
	for _, m := range goalProgressMilestones {
		if previousPercent < m && currentPercent >= m {
			crossed = m
		}
	}
	if crossed == 0 {
		return nil
	}

	intensity := IntensityLow
	if crossed == 100 {
		intensity = IntensityHigh
	} else if crossed >= 50 {
		intensity = IntensityMedium
	}

	return &Celebration{
		UserID:      userID,
		Milestone:   crossed,
		BonusPoints: GoalMilestoneBonus(crossed, targetAmount),
		Intensity:   intensity,
		DurationMs:  intensity.Duration().Milliseconds(),
		Message:     GoalMilestoneMessage(crossed),
		OccurredAt:  now,
	}
}

// GoalMilestoneBonus возвращает бонусные очки за порог цели:
// targetAmount * percent / 10000, в пределах [5, 500].
func GoalMilestoneBonus(percent, targetAmount int) int {
	bonus := targetAmount * percent / 10000
	if bonus < minGoalBonus {
		return minGoalBonus
	}
	if bonus > maxGoalBonus {
		return maxGoalBonus
	}
	return bonus
}

// GoalMilestoneMessage возвращает текст празднования для порога цели.
func GoalMilestoneMessage(percent int) string {
	switch percent {
	case 100:
		return "Цель достигнута. Поздравляем!"
	case 75:
		return "Три четверти пути позади."
	case 50:
		return "Половина цели уже ваша."
	default:
		return "Первая четверть цели выполнена."
	}
}
