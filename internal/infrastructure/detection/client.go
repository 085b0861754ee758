package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// maxResponseBytes ограничивает тело ответа: диагностическое изображение приходит в base64.
const maxResponseBytes = 16 << 20

// request тело запроса к сервису детекции
type request struct {
	RequestID  string `json:"request_id"`
	Image      string `json:"image"`
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// response ответ сервиса. Формат задаёт бэкенд, поэтому все поля необязательные.
type response struct {
	Detected        *bool             `json:"detected"`
	Valid           *bool             `json:"valid"`
	Objects         []json.RawMessage `json:"objects"`
	OverlayURL      string            `json:"overlay_url"`
	DiagnosticImage string            `json:"diagnostic_image"`
}

// HTTPClient клиент сервиса детекции по HTTP/JSON
type HTTPClient struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewHTTPClient создаёт клиент. timeout ограничивает весь обмен, отмена через ctx работает всегда.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Detect отправляет кадр. Любая ошибка транспорта даёт NotDetected и ошибку для лога.
func (c *HTTPClient) Detect(ctx context.Context, frame *entity.EncodedFrame, mode entity.FacingMode) (entity.DetectionResult, error) {
	if frame.Empty() {
		return entity.NotDetected(), errors.New("empty frame")
	}

	reqID := uuid.New().String()
	body, err := json.Marshal(request{
		RequestID:  reqID,
		Image:      dataURL(frame),
		FacingMode: string(mode),
		Width:      frame.Width,
		Height:     frame.Height,
	})
	if err != nil {
		return entity.NotDetected(), fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return entity.NotDetected(), fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return entity.NotDetected(), fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return entity.NotDetected(), fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return entity.NotDetected(), fmt.Errorf("detection service returned %s", resp.Status)
	}

	res, err := parseResponse(data)
	if err != nil {
		return entity.NotDetected(), err
	}

	c.logger.Debug("detection response",
		"request_id", reqID,
		"detected", res.Detected,
		"overlay", res.OverlayRef,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// parseResponse определяет детекцию по телу ответа, а не по статусу.
// Явное поле detected важнее пары valid + objects.
func parseResponse(data []byte) (entity.DetectionResult, error) {
	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return entity.NotDetected(), fmt.Errorf("decode response: %w", err)
	}

	var detected bool
	switch {
	case r.Detected != nil:
		detected = *r.Detected
	case r.Valid != nil:
		detected = *r.Valid && len(r.Objects) > 0
	default:
		return entity.NotDetected(), errors.New("decode response: no detection field")
	}

	if !detected {
		return entity.DetectionResult{DiagnosticImage: r.DiagnosticImage}, nil
	}
	return entity.DetectionResult{
		Detected:        true,
		OverlayRef:      r.OverlayURL,
		DiagnosticImage: r.DiagnosticImage,
	}, nil
}

func dataURL(frame *entity.EncodedFrame) string {
	mime := frame.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(frame.Data)
}

// Проверка реализации интерфейса
var _ port.DetectionClient = (*HTTPClient)(nil)
