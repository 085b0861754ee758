package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ar-overlay/internal/domain/entity"
)

// StateEvent сообщение о смене состояния оверлея
type StateEvent struct {
	Phase         entity.Phase      `json:"phase"`
	PrevPhase     entity.Phase      `json:"prev_phase"`
	OverlayRef    string            `json:"overlay_ref,omitempty"`
	OverlayActive bool              `json:"overlay_visible"`
	FacingMode    entity.FacingMode `json:"facing_mode"`
	PendingSince  *time.Time        `json:"pending_since,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewStateEvent собирает событие из пары состояний
func NewStateEvent(prev, next entity.ControllerState, now time.Time) StateEvent {
	ev := StateEvent{
		Phase:         next.Phase,
		PrevPhase:     prev.Phase,
		OverlayRef:    next.ActiveOverlayRef,
		OverlayActive: next.Phase.OverlayVisible(),
		FacingMode:    next.FacingMode,
		Timestamp:     now.UTC(),
	}
	if !next.PendingSince.IsZero() {
		ps := next.PendingSince.UTC()
		ev.PendingSince = &ps
	}
	return ev
}

// MQTTPublisher публикует смены состояния в MQTT
type MQTTPublisher struct {
	broker   string
	clientID string
	topic    string
	logger   *slog.Logger
	client   mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
}

// NewMQTTPublisher создаёт издателя, подключение в Connect
func NewMQTTPublisher(broker, clientID, topic string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		broker:   broker,
		clientID: clientID,
		topic:    topic,
		logger:   logger,
	}
}

// Connect подключается к брокеру с автопереподключением
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.broker))
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.logger.Info("mqtt connection established", "broker", p.broker, "client_id", p.clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", p.broker, "error", err)
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Significant сообщает, заметна ли смена состояния снаружи: видимость оверлея,
// ассет или камера. Фазы отдельного тика (Sampling, AwaitingResult) не публикуются.
func Significant(prev, next entity.ControllerState) bool {
	return prev.Phase.OverlayVisible() != next.Phase.OverlayVisible() ||
		prev.ActiveOverlayRef != next.ActiveOverlayRef ||
		prev.FacingMode != next.FacingMode
}

// OnState слушатель сессии. Публикация не блокирует цикл сэмплирования.
func (p *MQTTPublisher) OnState(prev, next entity.ControllerState) {
	if p.client == nil || !Significant(prev, next) {
		return
	}
	payload, err := json.Marshal(NewStateEvent(prev, next, time.Now()))
	if err != nil {
		p.logger.Error("mqtt marshal state", "error", err)
		return
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	go func() {
		<-token.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := token.Error(); err != nil {
			p.errors++
			p.logger.Warn("mqtt publish failed", "topic", p.topic, "error", err)
			return
		}
		p.published++
	}()
}

// Stats количество опубликованных сообщений и ошибок
func (p *MQTTPublisher) Stats() (published, errors uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published, p.errors
}

// Disconnect закрывает соединение
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("mqtt disconnected")
	}
}
