package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/infrastructure/storage"
)

type sentItem struct {
	chatID int64
	text   string
	photo  bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentItem
	// block, если задан, задерживает каждую отправку до закрытия канала
	block chan struct{}
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		s.sent = append(s.sent, sentItem{chatID: m.ChatID, text: m.Text})
	case tgbotapi.PhotoConfig:
		s.sent = append(s.sent, sentItem{chatID: m.ChatID, photo: true})
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) items() []sentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentItem(nil), s.sent...)
}

type fakeController struct {
	snap     app.SessionSnapshot
	snapErr  error
	resetErr error
	resets   int
	flipMode entity.FacingMode
	flipErr  error
}

func (c *fakeController) Snapshot() (app.SessionSnapshot, error) { return c.snap, c.snapErr }

func (c *fakeController) Reset() error {
	c.resets++
	return c.resetErr
}

func (c *fakeController) Flip(ctx context.Context) (entity.FacingMode, error) {
	return c.flipMode, c.flipErr
}

func newTestBot(ctrl *fakeController) (*Bot, *fakeSender, *app.SubscriberService) {
	sender := &fakeSender{}
	subs := app.NewSubscriberService(storage.NewMemorySubscriberRepository())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newBot(sender, ctrl, subs, logger), sender, subs
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID + 1000},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestBot_StartSubscribesAndMuteUnsubscribes(t *testing.T) {
	ctx := context.Background()
	b, sender, subs := newTestBot(&fakeController{})

	b.handleMessage(ctx, command(10, "/start"))
	chats, err := subs.Recipients(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, chats)
	require.Equal(t, msgStart, sender.items()[0].text)

	b.handleMessage(ctx, command(10, "/mute"))
	chats, err = subs.Recipients(ctx)
	require.NoError(t, err)
	require.Empty(t, chats)
	require.Equal(t, msgMuted, sender.items()[1].text)
}

func TestBot_PlainTextAsksForCommand(t *testing.T) {
	b, sender, _ := newTestBot(&fakeController{})

	b.handleMessage(context.Background(), &tgbotapi.Message{Text: "привет", Chat: &tgbotapi.Chat{ID: 1}})

	require.Equal(t, msgSendCommand, sender.items()[0].text)
}

func TestBot_UnknownCommand(t *testing.T) {
	b, sender, _ := newTestBot(&fakeController{})

	b.handleMessage(context.Background(), command(1, "/dance"))

	require.Equal(t, msgUnknownCommand, sender.items()[0].text)
}

func TestBot_ResetAndRetake(t *testing.T) {
	ctrl := &fakeController{}
	b, sender, _ := newTestBot(ctrl)

	b.handleMessage(context.Background(), command(1, "/reset"))
	b.handleMessage(context.Background(), command(1, "/retake"))

	require.Equal(t, 2, ctrl.resets)
	require.Equal(t, msgResetDone, sender.items()[1].text)
}

func TestBot_ResetWithoutSession(t *testing.T) {
	b, sender, _ := newTestBot(&fakeController{resetErr: app.ErrNoSession})

	b.handleMessage(context.Background(), command(1, "/reset"))

	require.Equal(t, msgNoSession, sender.items()[0].text)
}

func TestBot_Flip(t *testing.T) {
	ctrl := &fakeController{flipMode: entity.FacingUser}
	b, sender, _ := newTestBot(ctrl)

	b.handleMessage(context.Background(), command(1, "/flip"))
	require.Contains(t, sender.items()[0].text, "фронтальная")

	ctrl.flipMode = entity.FacingEnvironment
	ctrl.flipErr = errors.New("camera busy")
	b.handleMessage(context.Background(), command(1, "/flip"))
	require.Contains(t, sender.items()[1].text, "Не удалось")
	require.Contains(t, sender.items()[1].text, "основная")
}

func TestBot_StatusSendsDiagnosticPhoto(t *testing.T) {
	img := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})
	ctrl := &fakeController{snap: app.SessionSnapshot{
		State: entity.ControllerState{
			Phase:            entity.PhaseOverlayActive,
			ActiveOverlayRef: "https://cdn/model.glb",
			FacingMode:       entity.FacingEnvironment,
		},
		DiagnosticImage: img,
	}}
	b, sender, _ := newTestBot(ctrl)

	b.handleMessage(context.Background(), command(7, "/status"))

	items := sender.items()
	require.Len(t, items, 2)
	require.Contains(t, items[0].text, "https://cdn/model.glb")
	require.True(t, items[1].photo)
}

func TestBot_StatusWithoutSession(t *testing.T) {
	b, sender, _ := newTestBot(&fakeController{snapErr: app.ErrNoSession})

	b.handleMessage(context.Background(), command(7, "/status"))

	require.Equal(t, []sentItem{{chatID: 7, text: msgNoSession}}, sender.items())
}

func TestBot_OnStateNotifiesOnVisibilityChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, sender, subs := newTestBot(&fakeController{})
	_, err := subs.Subscribe(ctx, 1, 10)
	require.NoError(t, err)
	_, err = subs.Subscribe(ctx, 2, 20)
	require.NoError(t, err)
	_, err = subs.Mute(ctx, 2, 20)
	require.NoError(t, err)
	go b.deliverNotices(ctx)

	idle := entity.ControllerState{Phase: entity.PhaseAwaitingResult}
	active := entity.ControllerState{Phase: entity.PhaseOverlayActive, ActiveOverlayRef: "cube"}
	pending := entity.ControllerState{Phase: entity.PhasePendingUnload, ActiveOverlayRef: "cube"}

	b.OnState(idle, active)
	b.OnState(active, pending)
	b.OnState(pending, entity.ControllerState{Phase: entity.PhaseIdle})

	require.Eventually(t, func() bool { return len(sender.items()) == 2 }, time.Second, 5*time.Millisecond)
	items := sender.items()
	require.Equal(t, int64(10), items[0].chatID)
	require.Contains(t, items[0].text, "cube")
	require.Equal(t, msgOverlayHidden, items[1].text)
}

func TestBot_OnStateDoesNotWaitForTelegram(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, sender, subs := newTestBot(&fakeController{})
	sender.block = make(chan struct{})
	_, err := subs.Subscribe(ctx, 1, 10)
	require.NoError(t, err)
	go b.deliverNotices(ctx)

	active := entity.ControllerState{Phase: entity.PhaseOverlayActive}
	returned := make(chan struct{})
	go func() {
		for i := 0; i < noticeQueueSize+5; i++ {
			b.OnState(entity.ControllerState{Phase: entity.PhaseSampling}, active)
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("OnState blocked on a slow Telegram send")
	}

	close(sender.block)
	require.Eventually(t, func() bool { return len(sender.items()) > 0 }, time.Second, 5*time.Millisecond)
}
