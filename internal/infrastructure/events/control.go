package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
)

// Controller намерения, доступные через MQTT
type Controller interface {
	Snapshot() (app.SessionSnapshot, error)
	Reset() error
	Flip(ctx context.Context) (entity.FacingMode, error)
}

// Command команда управления
type Command struct {
	Command string `json:"command"`
}

// Response ответ на команду, публикуется в <topic>/ack
type Response struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// ControlHandler принимает команды flip, reset, retake и get_status из MQTT
type ControlHandler struct {
	topic  string
	ctrl   Controller
	logger *slog.Logger
	client mqtt.Client

	commands chan Command
}

func NewControlHandler(topic string, ctrl Controller, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		topic:    topic,
		ctrl:     ctrl,
		logger:   logger,
		commands: make(chan Command, 10),
	}
}

// Start подписывается на топик управления через соединение издателя
func (h *ControlHandler) Start(ctx context.Context, p *MQTTPublisher) error {
	if p.client == nil {
		return errors.New("mqtt publisher is not connected")
	}
	h.client = p.client

	token := h.client.Subscribe(h.topic, 1, h.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control subscription failed: %w", err)
	}

	h.logger.Info("mqtt control plane started", "topic", h.topic)
	go h.process(ctx)
	return nil
}

func (h *ControlHandler) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		h.logger.Warn("invalid control command", "error", err)
		h.respond(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}

	select {
	case h.commands <- cmd:
	default:
		h.logger.Warn("control queue full, dropping command", "command", cmd.Command)
	}
}

func (h *ControlHandler) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.respond(h.handle(ctx, cmd))
		}
	}
}

// handle выполняет команду и возвращает ответ
func (h *ControlHandler) handle(ctx context.Context, cmd Command) Response {
	resp := Response{CommandAck: cmd.Command, Status: "success"}

	switch cmd.Command {
	case "get_status":
		snap, err := h.ctrl.Snapshot()
		if err != nil {
			resp.Status, resp.Error = "error", err.Error()
			break
		}
		resp.Data = map[string]any{
			"session_id":      snap.ID,
			"phase":           snap.State.Phase,
			"overlay_visible": snap.State.Phase.OverlayVisible(),
			"overlay_ref":     snap.State.ActiveOverlayRef,
			"facing_mode":     snap.State.FacingMode,
		}

	case "reset", "retake":
		if err := h.ctrl.Reset(); err != nil {
			resp.Status, resp.Error = "error", err.Error()
		}

	case "flip":
		mode, err := h.ctrl.Flip(ctx)
		if mode != "" {
			resp.Data = map[string]any{"facing_mode": mode}
		}
		if err != nil {
			resp.Status, resp.Error = "error", err.Error()
		}

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command %q", cmd.Command)
	}

	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return resp
}

func (h *ControlHandler) respond(resp Response) {
	if h.client == nil {
		return
	}
	if resp.Timestamp == "" {
		resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("marshal control response", "error", err)
		return
	}
	h.client.Publish(h.topic+"/ack", 1, false, payload)
}

// Stop отписывается от топика управления
func (h *ControlHandler) Stop() {
	if h.client != nil && h.client.IsConnected() {
		h.client.Unsubscribe(h.topic).Wait()
	}
}
