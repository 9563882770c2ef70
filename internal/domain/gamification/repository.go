package gamification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository определяет контракт хранения профилей вовлечённости.
type ProfileRepository interface {
	// Create сохраняет новый профиль.
	// Возвращает shared.ErrAlreadyExists при повторном создании.
	Create(ctx context.Context, profile *Profile) error

	// GetByUserID возвращает профиль пользователя.
	// Возвращает shared.ErrProfileNotFound, если профиля нет.
	GetByUserID(ctx context.Context, userID string) (*Profile, error)

	// Update сохраняет профиль с проверкой версии.
	// Возвращает shared.ErrOptimisticLock при конфликте версий.
	Update(ctx context.Context, profile *Profile) error

	// DeleteByUser удаляет профиль пользователя.
	DeleteByUser(ctx context.Context, userID string) error
}

// AchievementRepository определяет контракт хранения достижений.
type AchievementRepository interface {
	// Create сохраняет разблокированное достижение. Повторная вставка
	// пары (userID, type) - no-op: остаётся первая запись.
	Create(ctx context.Context, achievement *Achievement) error

	// GetByUser возвращает все достижения пользователя.
	GetByUser(ctx context.Context, userID string) ([]*Achievement, error)

	// DeleteByUser удаляет все достижения пользователя.
	DeleteByUser(ctx context.Context, userID string) error
}

// HistoryRepository определяет контракт журнала начислений очков.
// Журнал только пополняется.
type HistoryRepository interface {
	// Append добавляет запись в журнал.
	Append(ctx context.Context, entry *HistoryEntry) error

	// GetByUser возвращает последние limit записей пользователя,
	// от новых к старым.
	GetByUser(ctx context.Context, userID string, limit int) ([]*HistoryEntry, error)

	// LastActionTimes возвращает время последнего начисления по каждому
	// типу действия пользователя.
	LastActionTimes(ctx context.Context, userID string) (map[string]time.Time, error)

	// DeleteByUser удаляет журнал пользователя.
	DeleteByUser(ctx context.Context, userID string) error
}

// ProfileCache - необязательный кэш профилей поверх репозитория.
type ProfileCache interface {
	// Get возвращает профиль из кэша, nil при промахе.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Set кладёт профиль в кэш.
	Set(ctx context.Context, profile *Profile) error

	// Invalidate убирает профиль из кэша.
	Invalidate(ctx context.Context, userID string) error
}
