package entity

// Subscriber чат Telegram, получающий уведомления об оверлее
type Subscriber struct {
	UserID int64 // Telegram User ID
	ChatID int64 // Telegram Chat ID
	Muted  bool  // Уведомления выключены командой /mute
}

// NewSubscriber создаёт подписчика с включёнными уведомлениями
func NewSubscriber(userID, chatID int64) *Subscriber {
	return &Subscriber{
		UserID: userID,
		ChatID: chatID,
	}
}

// SetMuted включает или выключает уведомления
func (s *Subscriber) SetMuted(muted bool) {
	s.Muted = muted
}
