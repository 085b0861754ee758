package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ar-overlay/internal/domain/entity"
)

type Config struct {
	DetectURL      string
	PollInterval   time.Duration
	UnloadDelay    time.Duration
	RequestTimeout time.Duration

	JPEGQuality int
	MaxSide     int

	CameraUserDevice int
	CameraEnvDevice  int
	CameraFile       string
	FacingMode       string

	HTTPAddr string

	TelegramToken string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTControl  string

	LogLevel slog.Level
}

// DefaultConfig значения по умолчанию
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     250 * time.Millisecond,
		UnloadDelay:      time.Second,
		RequestTimeout:   5 * time.Second,
		JPEGQuality:      92,
		CameraUserDevice: 0,
		CameraEnvDevice:  1,
		FacingMode:       "environment",
		HTTPAddr:         ":8080",
		MQTTTopic:        "ar-overlay/state",
		MQTTClientID:     "ar-overlay",
		MQTTControl:      "ar-overlay/control",
		LogLevel:         slog.LevelInfo,
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := DefaultConfig()
	var errs []error

	cfg.DetectURL = os.Getenv("DETECT_URL")
	cfg.CameraFile = os.Getenv("CAMERA_FILE")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	setString(&cfg.FacingMode, "FACING_MODE")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.MQTTTopic, "MQTT_TOPIC")
	setString(&cfg.MQTTClientID, "MQTT_CLIENT_ID")
	setString(&cfg.MQTTControl, "MQTT_CONTROL_TOPIC")

	errs = append(errs,
		setDuration(&cfg.PollInterval, "POLL_INTERVAL"),
		setDuration(&cfg.UnloadDelay, "UNLOAD_DELAY"),
		setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT"),
		setInt(&cfg.JPEGQuality, "JPEG_QUALITY"),
		setInt(&cfg.MaxSide, "MAX_SIDE"),
		setInt(&cfg.CameraUserDevice, "CAMERA_USER_DEVICE"),
		setInt(&cfg.CameraEnvDevice, "CAMERA_ENV_DEVICE"),
	)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и интервалы
func (c *Config) Validate() error {
	var errs []error
	if c.DetectURL == "" {
		errs = append(errs, errors.New("DETECT_URL is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.UnloadDelay <= 0 {
		errs = append(errs, errors.New("UNLOAD_DELAY must be positive"))
	}
	if c.PollInterval > 0 && c.UnloadDelay <= c.PollInterval {
		errs = append(errs, fmt.Errorf("UNLOAD_DELAY (%s) must be longer than POLL_INTERVAL (%s)", c.UnloadDelay, c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY must be in 1..100, got %d", c.JPEGQuality))
	}
	if c.MaxSide < 0 {
		errs = append(errs, errors.New("MAX_SIDE must not be negative"))
	}
	if _, err := entity.ParseFacingMode(c.FacingMode); err != nil {
		errs = append(errs, fmt.Errorf("FACING_MODE: %w", err))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Допускаем голые миллисекунды: POLL_INTERVAL=100
		ms, msErr := strconv.Atoi(v)
		if msErr != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
