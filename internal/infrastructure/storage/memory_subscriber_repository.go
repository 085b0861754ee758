package storage

import (
	"context"
	"sort"
	"sync"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// MemorySubscriberRepository in-memory хранилище подписчиков
type MemorySubscriberRepository struct {
	mu   sync.RWMutex
	subs map[int64]*entity.Subscriber
}

// NewMemorySubscriberRepository создаёт новое in-memory хранилище
func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{
		subs: make(map[int64]*entity.Subscriber),
	}
}

// Get возвращает подписчика по ID, создаёт нового если не найден
func (r *MemorySubscriberRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, exists := r.subs[chatID]; exists {
		copied := *sub
		return &copied, nil
	}

	// Создаём нового подписчика
	sub := entity.NewSubscriber(userID, chatID)
	r.subs[chatID] = sub

	copied := *sub
	return &copied, nil
}

// Save сохраняет подписчика
func (r *MemorySubscriberRepository) Save(ctx context.Context, sub *entity.Subscriber) error {
	copied := *sub
	r.mu.Lock()
	r.subs[sub.ChatID] = &copied
	r.mu.Unlock()

	return nil
}

// List возвращает подписчиков без /mute, упорядоченных по ChatID
func (r *MemorySubscriberRepository) List(ctx context.Context) ([]*entity.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.Muted {
			continue
		}
		copied := *sub
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })

	return out, nil
}

// Проверка реализации интерфейса
var _ port.SubscriberRepository = (*MemorySubscriberRepository)(nil)
