package gamification

import (
	"fmt"
	"time"

	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// MICRO WINS
// ══════════════════════════════════════════════════════════════════════════════

// MicroWin - маленькое достижимое действие, предлагаемое пользователю,
// чтобы не разорвать серию или закрепить новую привычку.
type MicroWin struct {
	// Action - предлагаемое действие.
	Action shared.ActionType

	// Points - очки, которые принесёт действие.
	Points int

	// Title - короткий заголовок предложения.
	Title string

	// Reason - зачем это действие предлагается именно сейчас.
	Reason string

	// StreakType - серия, которую действие спасает (пусто для привычек).
	StreakType streak.Type

	// StreakID - конкретная серия под риском (пусто для привычек).
	StreakID string

	// IsPersonalized - предложение привязано к серии пользователя,
	// а не к общей привычке.
	IsPersonalized bool

	// Priority - чем меньше, тем выше в выдаче.
	Priority int
}

// GeneratorConfig настраивает генератор микро-побед.
type GeneratorConfig struct {
	// ActionPoints - таблица очков для оценки предложений.
	ActionPoints ActionPoints

	// Policies - политики серий для подбора спасающих действий.
	Policies streak.PolicyTable
}

// DefaultGeneratorConfig возвращает конфигурацию по умолчанию.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		ActionPoints: DefaultActionPoints(),
		Policies:     streak.DefaultPolicyTable(),
	}
}

// Generator подбирает микро-победы по состоянию пользователя.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator создаёт генератор микро-побед.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.ActionPoints == nil {
		cfg.ActionPoints = DefaultActionPoints()
	}
	if cfg.Policies == nil {
		cfg.Policies = streak.DefaultPolicyTable()
	}
	return &Generator{cfg: cfg}
}

// Generate возвращает до limit микро-побед, отсортированных по приоритету.
// Сначала идут спасающие предложения для серий под риском (по убыванию
// срочности), затем предложения для действий, которые пользователь давно
// не выполнял. limit <= 0 - ошибка shared.ErrInvalidLimit.
func (g *Generator) Generate(risks []streak.RiskAnalysis, recentActions map[shared.ActionType]time.Time, limit int, now time.Time) ([]MicroWin, error) {
	if limit <= 0 {
		return nil, shared.ErrInvalidLimit
	}

	var wins []MicroWin
	suggested := make(map[shared.ActionType]bool)

	// Спасающие предложения: risks уже отсортированы по срочности.
	for i, risk := range risks {
		action, ok := g.rescueAction(risk)
		if !ok || suggested[action] {
			continue
		}
		suggested[action] = true
		points, _ := g.cfg.ActionPoints.BasePointsFor(action)

		wins = append(wins, MicroWin{
			Action:         action,
			Points:         points,
			Title:          actionTitle(action),
			Reason:         fmt.Sprintf("Серия «%s» из %d под угрозой", streakTitle(risk.StreakType), risk.CurrentCount),
			StreakType:     risk.StreakType,
			StreakID:       risk.StreakID,
			IsPersonalized: true,
			Priority:       i,
		})
	}

	// Привычки: действия, которых не было дольше всего, идут раньше.
	for _, action := range g.habitCandidates(recentActions, now) {
		if suggested[action] {
			continue
		}
		suggested[action] = true
		points, _ := g.cfg.ActionPoints.BasePointsFor(action)

		wins = append(wins, MicroWin{
			Action:   action,
			Points:   points,
			Title:    actionTitle(action),
			Reason:   "Давно не выполнялось - хороший момент вернуться",
			Priority: len(wins),
		})
	}

	if len(wins) > limit {
		wins = wins[:limit]
	}
	return wins, nil
}

// rescueAction выбирает самое дешёвое действие, продлевающее серию.
func (g *Generator) rescueAction(risk streak.RiskAnalysis) (shared.ActionType, bool) {
	if len(risk.RecommendedActions) > 0 {
		best := risk.RecommendedActions[0]
		bestPoints := pointsOrMax(g.cfg.ActionPoints, best)
		for _, a := range risk.RecommendedActions[1:] {
			if p := pointsOrMax(g.cfg.ActionPoints, a); p < bestPoints {
				best, bestPoints = a, p
			}
		}
		return best, true
	}

	policy, ok := g.cfg.Policies[risk.StreakType]
	if !ok || len(policy.Triggers) == 0 {
		return "", false
	}
	return policy.Triggers[0], true
}

// habitCandidates возвращает известные действия, отсортированные от самых
// давних к недавним; никогда не выполнявшиеся идут первыми.
func (g *Generator) habitCandidates(recent map[shared.ActionType]time.Time, now time.Time) []shared.ActionType {
	type staleness struct {
		action shared.ActionType
		age    time.Duration
	}

	var candidates []staleness
	for _, action := range shared.KnownActionTypes() {
		last, ok := recent[action]
		age := time.Duration(1<<62 - 1)
		if ok {
			age = now.Sub(last)
			// Выполненное за последние сутки предлагать не нужно.
			if age < 24*time.Hour {
				continue
			}
		}
		candidates = append(candidates, staleness{action: action, age: age})
	}

	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].age > candidates[j-1].age; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	out := make([]shared.ActionType, len(candidates))
	for i, c := range candidates {
		out[i] = c.action
	}
	return out
}

func pointsOrMax(ap ActionPoints, action shared.ActionType) int {
	if p, err := ap.BasePointsFor(action); err == nil {
		return p
	}
	return 1 << 30
}

func actionTitle(action shared.ActionType) string {
	switch action {
	case shared.ActionCheckBalance:
		return "Проверьте баланс"
	case shared.ActionDailyCheckIn:
		return "Отметьтесь в приложении"
	case shared.ActionCategorizeTransaction:
		return "Разберите одну транзакцию"
	case shared.ActionBudgetReview:
		return "Загляните в бюджет"
	case shared.ActionUpdateGoal:
		return "Обновите цель"
	case shared.ActionSavingsContribution:
		return "Отложите немного в копилку"
	case shared.ActionLinkAccount:
		return "Подключите счёт"
	case shared.ActionCompleteLesson:
		return "Пройдите короткий урок"
	default:
		return string(action)
	}
}

func streakTitle(t streak.Type) string {
	switch t {
	case streak.TypeDailyCheckIn:
		return "ежедневные визиты"
	case streak.TypeTransactionCategorization:
		return "разбор транзакций"
	case streak.TypeBudgetAdherence:
		return "работа с бюджетом"
	case streak.TypeSavingsContribution:
		return "пополнение накоплений"
	default:
		return string(t)
	}
}
