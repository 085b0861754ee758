package port

import (
	"context"

	"ar-overlay/internal/domain/entity"
)

// SubscriberRepository интерфейс хранилища подписчиков
type SubscriberRepository interface {
	// Get возвращает подписчика по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)

	// Save сохраняет подписчика
	Save(ctx context.Context, sub *entity.Subscriber) error

	// List возвращает всех подписчиков с включёнными уведомлениями
	List(ctx context.Context) ([]*entity.Subscriber, error)
}
