package port

import (
	"context"
	"errors"
	"image"

	"ar-overlay/internal/domain/entity"
)

var (
	// ErrFrameNotReady камера ещё инициализируется или кадр пустой
	ErrFrameNotReady = errors.New("frame not ready")
	// ErrCameraUnavailable камера не открылась в запрошенном режиме
	ErrCameraUnavailable = errors.New("camera unavailable")
)

// VideoSource источник живого видео
type VideoSource interface {
	// Open захватывает камеру в заданном режиме. Повторный вызов переоткрывает поток.
	Open(ctx context.Context, mode entity.FacingMode) error

	// Frame возвращает текущий кадр или ErrFrameNotReady
	Frame(ctx context.Context) (image.Image, error)

	// Close освобождает камеру
	Close() error
}
