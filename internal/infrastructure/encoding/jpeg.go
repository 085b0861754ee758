package encoding

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

const (
	DefaultQuality = 92
	mimeJPEG       = "image/jpeg"
)

// JPEGEncoder сжимает кадр в JPEG. MaxSide > 0 уменьшает кадр с сохранением пропорций.
type JPEGEncoder struct {
	Quality int
	MaxSide int
}

// NewJPEGEncoder создаёт кодировщик. Неверное качество заменяется на DefaultQuality.
func NewJPEGEncoder(quality, maxSide int) *JPEGEncoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxSide < 0 {
		maxSide = 0
	}
	return &JPEGEncoder{Quality: quality, MaxSide: maxSide}
}

// Encode кодирует кадр. Исходное изображение не изменяется: imaging.Fit всегда создаёт новое.
func (e *JPEGEncoder) Encode(frame image.Image) (*entity.EncodedFrame, error) {
	if frame == nil {
		return nil, port.ErrFrameNotReady
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, port.ErrFrameNotReady
	}

	img := frame
	if e.MaxSide > 0 && (b.Dx() > e.MaxSide || b.Dy() > e.MaxSide) {
		img = imaging.Fit(frame, e.MaxSide, e.MaxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	out := img.Bounds()
	return &entity.EncodedFrame{
		Data:     buf.Bytes(),
		MimeType: mimeJPEG,
		Width:    out.Dx(),
		Height:   out.Dy(),
	}, nil
}

// Проверка реализации интерфейса
var _ port.FrameEncoder = (*JPEGEncoder)(nil)
