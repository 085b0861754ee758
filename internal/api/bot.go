package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я слежу за AR-камерой.

🟢 Пришлю сообщение, когда метка появится в кадре и оверлей загрузится.
⚪ И когда оверлей будет скрыт.

📋 Команды:
/status — текущее состояние
/flip — переключить камеру
/reset — начать заново
/mute — не присылать уведомления
/help — справка`

	msgHelp = `ℹ️ Как это работает:

1️⃣ Камера делает снимок каждые несколько секунд
2️⃣ Сервис распознавания ищет метку на снимке
3️⃣ Если метка найдена, показывается AR-оверлей
4️⃣ Если метка пропала дольше чем на секунду, оверлей скрывается

📋 Команды:
/status — текущее состояние
/flip — переключить камеру
/reset — сбросить оверлей
/mute — отключить уведомления
/start — включить уведомления`

	msgNoSession      = "📴 Камера не запущена."
	msgResetDone      = "🔄 Сброшено. Ищу метку заново."
	msgMuted          = "🔕 Уведомления отключены. /start чтобы включить."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendCommand    = "📋 Я понимаю только команды. Используйте /help для справки."
	msgFlipFailed     = "⚠️ Не удалось переключить камеру, осталась %s."
	msgFlipped        = "🔁 Камера переключена: %s."
	msgOverlayShown   = "🟢 Метка найдена, оверлей показан: %s"
	msgOverlayHidden  = "⚪ Метка пропала, оверлей скрыт."
	msgError          = "⚠️ Что-то пошло не так. Попробуйте ещё раз."
)

// Sender отправка сообщений в Telegram
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Controller намерения UI, которые понимает бот
type Controller interface {
	Snapshot() (app.SessionSnapshot, error)
	Reset() error
	Flip(ctx context.Context) (entity.FacingMode, error)
}

// Subscribers подписки чатов на уведомления
type Subscribers interface {
	Subscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)
	Mute(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)
	Recipients(ctx context.Context) ([]int64, error)
}

// noticeQueueSize сколько уведомлений ждёт отправки, прежде чем новые отбрасываются
const noticeQueueSize = 32

// Bot представляет Telegram-бота: пульт и канал уведомлений виджета
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	ctrl   Controller
	subs   Subscribers
	logger *slog.Logger

	notices chan string
}

// NewBot создаёт нового бота
func NewBot(token string, ctrl Controller, subs Subscribers, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("telegram authorized", "account", api.Self.UserName)

	b := newBot(api, ctrl, subs, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, ctrl Controller, subs Subscribers, logger *slog.Logger) *Bot {
	return &Bot{
		sender:  sender,
		ctrl:    ctrl,
		subs:    subs,
		logger:  logger,
		notices: make(chan string, noticeQueueSize),
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	go b.deliverNotices(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// OnState слушатель сессии: ставит в очередь уведомление о показе или скрытии оверлея.
// Не блокируется: отправкой занимается deliverNotices.
func (b *Bot) OnState(prev, next entity.ControllerState) {
	var text string
	switch {
	case !prev.Phase.OverlayVisible() && next.Phase.OverlayVisible():
		text = fmt.Sprintf(msgOverlayShown, overlayName(next.ActiveOverlayRef))
	case prev.Phase.OverlayVisible() && !next.Phase.OverlayVisible():
		text = msgOverlayHidden
	default:
		return
	}

	select {
	case b.notices <- text:
	default:
		b.logger.Warn("notice queue full, dropping notice", "text", text)
	}
}

// deliverNotices рассылает уведомления подписчикам в порядке их появления
func (b *Bot) deliverNotices(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-b.notices:
			chats, err := b.subs.Recipients(ctx)
			if err != nil {
				b.logger.Error("list subscribers", "error", err)
				continue
			}
			for _, chatID := range chats {
				b.sendMessage(chatID, text)
			}
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.sendMessage(msg.Chat.ID, msgSendCommand)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	switch msg.Command() {
	case "start":
		if _, err := b.subs.Subscribe(ctx, userID, chatID); err != nil {
			b.logger.Error("subscribe", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "mute":
		if _, err := b.subs.Mute(ctx, userID, chatID); err != nil {
			b.logger.Error("mute", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgMuted)

	case "status":
		b.handleStatus(chatID)

	case "flip":
		mode, err := b.ctrl.Flip(ctx)
		switch {
		case errors.Is(err, app.ErrNoSession):
			b.sendMessage(chatID, msgNoSession)
		case err != nil:
			b.logger.Warn("flip from telegram failed", "error", err)
			b.sendMessage(chatID, fmt.Sprintf(msgFlipFailed, cameraName(mode)))
		default:
			b.sendMessage(chatID, fmt.Sprintf(msgFlipped, cameraName(mode)))
		}

	case "reset", "retake":
		if err := b.ctrl.Reset(); err != nil {
			if errors.Is(err, app.ErrNoSession) {
				b.sendMessage(chatID, msgNoSession)
				return
			}
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgResetDone)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleStatus отправляет состояние и, если есть, диагностическое изображение
func (b *Bot) handleStatus(chatID int64) {
	snap, err := b.ctrl.Snapshot()
	if err != nil {
		b.sendMessage(chatID, msgNoSession)
		return
	}
	b.sendMessage(chatID, FormatStatus(snap))

	if snap.DiagnosticImage == "" {
		return
	}
	_, data, err := entity.DecodeDiagnostic(snap.DiagnosticImage)
	if err != nil {
		b.logger.Debug("diagnostic image is not inline", "error", err)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "diagnostic.jpg", Bytes: data})
	if _, err := b.sender.Send(photo); err != nil {
		b.logger.Error("send diagnostic photo", "error", err)
	}
}

// FormatStatus текстовое представление снимка сессии
func FormatStatus(snap app.SessionSnapshot) string {
	st := snap.State
	var sb strings.Builder
	fmt.Fprintf(&sb, "📷 Камера: %s\n", cameraName(st.FacingMode))
	fmt.Fprintf(&sb, "📍 Фаза: %s\n", st.Phase)
	if st.Phase.OverlayVisible() {
		fmt.Fprintf(&sb, "🟢 Оверлей: %s\n", overlayName(st.ActiveOverlayRef))
	} else {
		sb.WriteString("⚪ Оверлей скрыт\n")
	}
	fmt.Fprintf(&sb, "📊 Снимков: %d, пропущено тиков: %d", snap.Stats.Samples, snap.Stats.Skipped)
	return sb.String()
}

func cameraName(mode entity.FacingMode) string {
	if mode == entity.FacingUser {
		return "фронтальная"
	}
	return "основная"
}

func overlayName(ref string) string {
	if ref == "" {
		return "без ассета"
	}
	return ref
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}
