package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ar-overlay/config"
	telegram "ar-overlay/internal/api"
	"ar-overlay/internal/api/rest"
	"ar-overlay/internal/container"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем сервисы приложения
	appContainer, err := container.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	if appContainer.Publisher != nil {
		defer appContainer.Publisher.Disconnect()
		if err := appContainer.Publisher.Connect(ctx); err != nil {
			logger.Warn("mqtt unavailable, state events disabled", "error", err)
		} else if err := appContainer.Control.Start(ctx, appContainer.Publisher); err != nil {
			logger.Warn("mqtt control plane disabled", "error", err)
		} else {
			defer appContainer.Control.Stop()
		}
	}

	// Монтируем виджет сразу. Без камеры процесс продолжает работать, сессию можно поднять через POST /session.
	if _, err := appContainer.SessionService.Mount(); err != nil {
		logger.Error("initial mount failed", "error", err)
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.SessionService, appContainer.SubscriberService, logger)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		appContainer.SessionService.AddListener(bot.OnState)
		go func() {
			if err := bot.Run(ctx); err != nil {
				logger.Error("bot stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rest.NewRouter(appContainer.SessionService, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := appContainer.SessionService.Shutdown(); err != nil {
		logger.Error("session shutdown", "error", err)
	}
}
