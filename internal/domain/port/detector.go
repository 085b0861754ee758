package port

import (
	"context"

	"ar-overlay/internal/domain/entity"
)

// DetectionClient клиент удалённого сервиса детекции
type DetectionClient interface {
	// Detect отправляет кадр и возвращает результат. Результат валиден всегда:
	// при ошибке транспорта это NotDetected, а ошибка возвращается только для логирования.
	Detect(ctx context.Context, frame *entity.EncodedFrame, mode entity.FacingMode) (entity.DetectionResult, error)
}
