//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// GoCVCamera заглушка для сборки без OpenCV.
type GoCVCamera struct {
	devices deviceSet
}

// NewGoCVCamera создаёт камеру-заглушку.
func NewGoCVCamera(userDevice, envDevice int) *GoCVCamera {
	return &GoCVCamera{devices: newDeviceSet(userDevice, envDevice)}
}

// Open возвращает ошибку, если сборка без тега gocv.
func (c *GoCVCamera) Open(ctx context.Context, mode entity.FacingMode) error {
	if _, _, err := c.devices.resolve(mode); err != nil {
		return err
	}
	return fmt.Errorf("%w: gocv build tag is not enabled", port.ErrCameraUnavailable)
}

// Frame возвращает ErrFrameNotReady, если сборка без тега gocv.
func (c *GoCVCamera) Frame(ctx context.Context) (image.Image, error) {
	_ = ctx
	return nil, port.ErrFrameNotReady
}

// Close ничего не делает.
func (c *GoCVCamera) Close() error {
	return nil
}

var _ port.VideoSource = (*GoCVCamera)(nil)
