package streak

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence. Каждая операция
// атомарна сама по себе: ядро никогда не рассчитывает на многозвенные
// транзакции. Update-операции используют оптимистичную блокировку и
// возвращают shared.ErrOptimisticLock при конфликте версий.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения серий.
type Repository interface {
	// Create создаёт новую серию. У пары (пользователь, тип) может
	// существовать не более одной активной серии: частичный уникальный
	// индекс хранилища отклоняет вторую активную строку, и Create
	// возвращает shared.ErrStreakAlreadyExists. Неактивные строки-история
	// не ограничены.
	Create(ctx context.Context, s *Streak) error

	// GetByID возвращает серию по идентификатору.
	// Возвращает shared.ErrStreakNotFound, если серия не найдена.
	GetByID(ctx context.Context, id string) (*Streak, error)

	// GetByUserAndType возвращает активную серию пары (пользователь, тип).
	// Сломанные строки-история этим методом не видны, доставайте их по ID.
	// Возвращает shared.ErrStreakNotFound, если активной серии нет.
	GetByUserAndType(ctx context.Context, userID string, t Type) (*Streak, error)

	// GetActiveByUser возвращает все активные серии пользователя.
	GetActiveByUser(ctx context.Context, userID string) ([]*Streak, error)

	// Update сохраняет изменения серии.
	// Возвращает shared.ErrOptimisticLock при конфликте версий.
	Update(ctx context.Context, s *Streak) error

	// FindStale находит активные серии без активности с указанной даты.
	// Используется фоновым сканером риска.
	FindStale(ctx context.Context, lastActivityBefore time.Time, limit int) ([]*Streak, error)

	// GetTopStreaks возвращает самые длинные текущие серии данного типа.
	GetTopStreaks(ctx context.Context, t Type, limit int) ([]*Streak, error)

	// DeleteByUser безвозвратно удаляет все серии пользователя
	// (полная очистка данных, GDPR/PIPEDA).
	DeleteByUser(ctx context.Context, userID string) error
}

// RecoveryRepository определяет операции хранения восстановлений.
type RecoveryRepository interface {
	// Create создаёт запись восстановления.
	Create(ctx context.Context, r *StreakRecovery) error

	// GetByID возвращает восстановление по идентификатору.
	// Возвращает shared.ErrRecoveryNotFound, если запись не найдена.
	GetByID(ctx context.Context, id string) (*StreakRecovery, error)

	// GetOpenByStreak возвращает открытое восстановление серии.
	// Возвращает shared.ErrRecoveryNotFound, если открытого нет.
	// Инвариант хранилища: не более одного открытого восстановления на серию.
	GetOpenByStreak(ctx context.Context, streakID string) (*StreakRecovery, error)

	// GetActiveByUser возвращает открытые восстановления пользователя.
	GetActiveByUser(ctx context.Context, userID string) ([]*StreakRecovery, error)

	// Update сохраняет изменения восстановления.
	// Возвращает shared.ErrOptimisticLock при конфликте версий.
	Update(ctx context.Context, r *StreakRecovery) error

	// FindExpired находит открытые восстановления с истёкшим сроком.
	// Используется фоновой задачей закрытия просроченных восстановлений.
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]*StreakRecovery, error)

	// DeleteByUser безвозвратно удаляет восстановления пользователя.
	DeleteByUser(ctx context.Context, userID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER TRACKER
// Анти-спам на стороне инфраструктуры (обычно Redis с TTL-ключами):
// дополняет поле LastReminderSent при работе нескольких воркеров.
// ══════════════════════════════════════════════════════════════════════════════

// ReminderTracker ограничивает частоту напоминаний об одной серии.
type ReminderTracker interface {
	// TryAcquire атомарно резервирует право на напоминание. Возвращает
	// false, если кулдаун по этой серии ещё не истёк.
	TryAcquire(ctx context.Context, userID, streakID string, cooldown time.Duration) (bool, error)

	// Clear снимает резерв (например, если уведомление не было отправлено).
	Clear(ctx context.Context, userID, streakID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntry - позиция в таблице лучших серий.
type LeaderboardEntry struct {
	UserID       string
	CurrentCount int
}

// LeaderboardCache кеширует самые длинные текущие серии по типам
// (обычно реализуется сортированными множествами Redis).
type LeaderboardCache interface {
	// RecordCount обновляет длину серии пользователя.
	RecordCount(ctx context.Context, t Type, userID string, count int) error

	// Top возвращает лучшие позиции по типу серии.
	Top(ctx context.Context, t Type, limit int) ([]LeaderboardEntry, error)

	// Remove удаляет пользователя из таблицы (очистка данных).
	Remove(ctx context.Context, t Type, userID string) error
}
