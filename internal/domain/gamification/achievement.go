package gamification

import (
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType - тип достижения.
type AchievementType string

const (
	AchievementFirstAction          AchievementType = "first_action"
	AchievementFirstCategorization  AchievementType = "first_categorization"
	AchievementAccountLinked        AchievementType = "account_linked"
	AchievementStreak3              AchievementType = "streak_3"
	AchievementStreak7              AchievementType = "streak_7"
	AchievementStreak30             AchievementType = "streak_30"
	AchievementStreak90             AchievementType = "streak_90"
	AchievementLevel5               AchievementType = "level_5"
	AchievementLevel10              AchievementType = "level_10"
	AchievementComeback             AchievementType = "comeback"
	AchievementPoints1000           AchievementType = "points_1000"
)

// AchievementCategory группирует достижения для витрины.
type AchievementCategory string

const (
	CategoryOnboarding  AchievementCategory = "onboarding"
	CategoryConsistency AchievementCategory = "consistency"
	CategoryProgress    AchievementCategory = "progress"
	CategoryResilience  AchievementCategory = "resilience"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementDefinition описывает достижение: как оно называется,
// к какой категории относится и сколько бонусных очков даёт.
type AchievementDefinition struct {
	Type        AchievementType
	Category    AchievementCategory
	Title       string
	Description string
	BonusPoints int
}

// DefaultAchievementCatalog возвращает каталог достижений по умолчанию.
func DefaultAchievementCatalog() map[AchievementType]AchievementDefinition {
	return map[AchievementType]AchievementDefinition{
		AchievementFirstAction: {
			Type:        AchievementFirstAction,
			Category:    CategoryOnboarding,
			Title:       "Первый шаг",
			Description: "Выполнено первое действие",
			BonusPoints: 10,
		},
		AchievementFirstCategorization: {
			Type:        AchievementFirstCategorization,
			Category:    CategoryOnboarding,
			Title:       "Наводим порядок",
			Description: "Категоризирована первая транзакция",
			BonusPoints: 15,
		},
		AchievementAccountLinked: {
			Type:        AchievementAccountLinked,
			Category:    CategoryOnboarding,
			Title:       "Всё под контролем",
			Description: "Подключён банковский счёт",
			BonusPoints: 50,
		},
		AchievementStreak3: {
			Type:        AchievementStreak3,
			Category:    CategoryConsistency,
			Title:       "Разогрев",
			Description: "Серия из 3 дней",
			BonusPoints: 15,
		},
		AchievementStreak7: {
			Type:        AchievementStreak7,
			Category:    CategoryConsistency,
			Title:       "Неделя дисциплины",
			Description: "Серия из 7 дней",
			BonusPoints: 50,
		},
		AchievementStreak30: {
			Type:        AchievementStreak30,
			Category:    CategoryConsistency,
			Title:       "Месяц без пропусков",
			Description: "Серия из 30 дней",
			BonusPoints: 250,
		},
		AchievementStreak90: {
			Type:        AchievementStreak90,
			Category:    CategoryConsistency,
			Title:       "Квартал стабильности",
			Description: "Серия из 90 дней",
			BonusPoints: 750,
		},
		AchievementLevel5: {
			Type:        AchievementLevel5,
			Category:    CategoryProgress,
			Title:       "Пятый уровень",
			Description: "Достигнут 5 уровень",
			BonusPoints: 100,
		},
		AchievementLevel10: {
			Type:        AchievementLevel10,
			Category:    CategoryProgress,
			Title:       "Десятый уровень",
			Description: "Достигнут 10 уровень",
			BonusPoints: 300,
		},
		AchievementComeback: {
			Type:        AchievementComeback,
			Category:    CategoryResilience,
			Title:       "Возвращение",
			Description: "Серия восстановлена после обрыва",
			BonusPoints: 50,
		},
		AchievementPoints1000: {
			Type:        AchievementPoints1000,
			Category:    CategoryProgress,
			Title:       "Тысячник",
			Description: "Заработано 1000 очков",
			BonusPoints: 100,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - факт разблокировки достижения пользователем.
// Пара (UserID, Type) уникальна: повторная разблокировка невозможна.
type Achievement struct {
	// ID - суррогатный уникальный идентификатор.
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// Type - тип достижения.
	Type AchievementType

	// UnlockedAt - момент первой (и единственной) разблокировки.
	UnlockedAt time.Time
}

// NewAchievement создаёт запись о разблокировке достижения.
func NewAchievement(id, userID string, achievementType AchievementType, unlockedAt time.Time) (*Achievement, error) {
	if !shared.IsValidUserID(userID) {
		return nil, shared.ErrInvalidID
	}

	return &Achievement{
		ID:         id,
		UserID:     userID,
		Type:       achievementType,
		UnlockedAt: unlockedAt,
	}, nil
}

// String возвращает строковое представление для логирования.
func (a *Achievement) String() string {
	return fmt.Sprintf("Achievement{User: %s, Type: %s}", a.UserID, a.Type)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// UnlockContext - снимок состояния пользователя, по которому проверяются
// условия разблокировки после очередного действия.
type UnlockContext struct {
	// Action - только что выполненное действие.
	Action shared.ActionType

	// IsFirstAction - было ли это первое действие пользователя.
	IsFirstAction bool

	// Profile - профиль после начисления очков.
	Profile *Profile

	// Streaks - актуальные серии пользователя.
	Streaks []*streak.Streak

	// RecoverySucceeded - завершилось ли восстановление серии этим действием.
	RecoverySucceeded bool
}

// Unlocked хранит тип достижения вместе с его определением.
type Unlocked struct {
	Definition AchievementDefinition
}

// EvaluateUnlocks возвращает достижения, условия которых выполнены и
// которых ещё нет в already. Проверка идемпотентна: повторный вызов с тем
// же состоянием и пополненным already ничего не вернёт.
func EvaluateUnlocks(ctx UnlockContext, already map[AchievementType]bool, catalog map[AchievementType]AchievementDefinition) []Unlocked {
	var result []Unlocked

	unlock := func(t AchievementType) {
		if already[t] {
			return
		}
		def, ok := catalog[t]
		if !ok {
			return
		}
		already[t] = true
		result = append(result, Unlocked{Definition: def})
	}

	if ctx.IsFirstAction {
		unlock(AchievementFirstAction)
	}
	if ctx.Action == shared.ActionCategorizeTransaction {
		unlock(AchievementFirstCategorization)
	}
	if ctx.Action == shared.ActionLinkAccount {
		unlock(AchievementAccountLinked)
	}

	best := 0
	for _, s := range ctx.Streaks {
		if s.CurrentCount > best {
			best = s.CurrentCount
		}
	}
	if best >= 3 {
		unlock(AchievementStreak3)
	}
	if best >= 7 {
		unlock(AchievementStreak7)
	}
	if best >= 30 {
		unlock(AchievementStreak30)
	}
	if best >= 90 {
		unlock(AchievementStreak90)
	}

	if ctx.Profile != nil {
		if ctx.Profile.Level() >= 5 {
			unlock(AchievementLevel5)
		}
		if ctx.Profile.Level() >= 10 {
			unlock(AchievementLevel10)
		}
		if ctx.Profile.TotalPoints >= 1000 {
			unlock(AchievementPoints1000)
		}
	}

	if ctx.RecoverySucceeded {
		unlock(AchievementComeback)
	}

	return result
}
