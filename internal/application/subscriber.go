package app

import (
	"context"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

type SubscriberService struct {
	repo port.SubscriberRepository
}

func NewSubscriberService(repo port.SubscriberRepository) *SubscriberService {
	return &SubscriberService{repo: repo}
}

func (s *SubscriberService) Subscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetMuted(ctx, userID, chatID, false)
}

func (s *SubscriberService) Mute(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetMuted(ctx, userID, chatID, true)
}

func (s *SubscriberService) SetMuted(ctx context.Context, userID, chatID int64, muted bool) (*entity.Subscriber, error) {
	sub, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	sub.SetMuted(muted)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Recipients чаты, которым нужно отправить уведомление
func (s *SubscriberService) Recipients(ctx context.Context) ([]int64, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	chats := make([]int64, 0, len(subs))
	for _, sub := range subs {
		chats = append(chats, sub.ChatID)
	}
	return chats, nil
}
