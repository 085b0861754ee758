package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// StillSource отдаёт один и тот же кадр из файла. Используется без камеры:
// для демо и проверки связки с сервисом детекции.
// Режим User отдаёт зеркальное изображение, как фронтальная камера.
type StillSource struct {
	path string

	mu    sync.RWMutex
	frame image.Image
}

// NewStillSource создаёт источник, файл читается в Open.
func NewStillSource(path string) *StillSource {
	return &StillSource{path: path}
}

// Open читает файл и готовит кадр для режима.
func (s *StillSource) Open(ctx context.Context, mode entity.FacingMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := imaging.Open(s.path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrCameraUnavailable, err)
	}

	var frame image.Image = img
	if mode == entity.FacingUser {
		frame = imaging.FlipH(img)
	}

	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
	return nil
}

// Frame возвращает загруженный кадр
func (s *StillSource) Frame(ctx context.Context) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, port.ErrFrameNotReady
	}
	return s.frame, nil
}

// Close забывает кадр
func (s *StillSource) Close() error {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
	return nil
}

var _ port.VideoSource = (*StillSource)(nil)
