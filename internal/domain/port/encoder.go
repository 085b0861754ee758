package port

import (
	"image"

	"ar-overlay/internal/domain/entity"
)

// FrameEncoder сжимает кадр в неподвижное изображение
type FrameEncoder interface {
	// Encode не изменяет исходный кадр. Возвращает ErrFrameNotReady для кадра без размеров.
	Encode(frame image.Image) (*entity.EncodedFrame, error)
}
