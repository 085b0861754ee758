package container

import (
	"context"
	"log/slog"

	"ar-overlay/config"
	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
	"ar-overlay/internal/infrastructure/detection"
	"ar-overlay/internal/infrastructure/encoding"
	"ar-overlay/internal/infrastructure/events"
	"ar-overlay/internal/infrastructure/storage"
	"ar-overlay/internal/infrastructure/vision"
)

type Container struct {
	SessionService    *app.SessionService
	SubscriberService *app.SubscriberService
	Publisher         *events.MQTTPublisher
	Control           *events.ControlHandler
}

// New собирает сервисы приложения. baseCtx живёт до остановки процесса.
func New(baseCtx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	mode, err := entity.ParseFacingMode(cfg.FacingMode)
	if err != nil {
		return nil, err
	}

	sessionService := app.NewSessionService(
		baseCtx,
		app.SessionConfig{
			PollInterval:   cfg.PollInterval,
			UnloadDelay:    cfg.UnloadDelay,
			RequestTimeout: cfg.RequestTimeout,
		},
		newVideoSource(cfg, logger),
		encoding.NewJPEGEncoder(cfg.JPEGQuality, cfg.MaxSide),
		detection.NewHTTPClient(cfg.DetectURL, cfg.RequestTimeout, logger),
		mode,
		logger,
	)

	c := &Container{
		SessionService:    sessionService,
		SubscriberService: app.NewSubscriberService(storage.NewMemorySubscriberRepository()),
	}

	if cfg.MQTTBroker != "" {
		c.Publisher = events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, logger)
		sessionService.AddListener(c.Publisher.OnState)
		c.Control = events.NewControlHandler(cfg.MQTTControl, sessionService, logger)
	}

	return c, nil
}

func newVideoSource(cfg *config.Config, logger *slog.Logger) port.VideoSource {
	if cfg.CameraFile != "" {
		logger.Info("using still image as video source", "path", cfg.CameraFile)
		return vision.NewStillSource(cfg.CameraFile)
	}
	return vision.NewGoCVCamera(cfg.CameraUserDevice, cfg.CameraEnvDevice)
}
