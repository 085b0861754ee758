//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// GoCVCamera источник кадров с веб-камеры через OpenCV.
// Режимы камеры сопоставлены индексам устройств.
type GoCVCamera struct {
	mu      sync.Mutex
	devices deviceSet
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// NewGoCVCamera создаёт источник с индексами устройств для фронтальной и тыльной камеры.
func NewGoCVCamera(userDevice, envDevice int) *GoCVCamera {
	return &GoCVCamera{
		devices: newDeviceSet(userDevice, envDevice),
		mat:     gocv.NewMat(),
	}
}

// Open переоткрывает устройство, соответствующее режиму.
// Уже открытое устройство не захватывается повторно.
func (c *GoCVCamera) Open(ctx context.Context, mode entity.FacingMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	device, reopen, err := c.devices.resolve(mode)
	keep := err == nil && !reopen && c.capture != nil && c.capture.IsOpened()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if keep {
		return nil
	}

	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", port.ErrCameraUnavailable, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d is not opened", port.ErrCameraUnavailable, device)
	}

	c.mu.Lock()
	prev := c.capture
	c.capture = capture
	c.devices.markOpened(device)
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// Frame читает текущий кадр. Пустой кадр означает, что камера ещё прогревается.
func (c *GoCVCamera) Frame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, port.ErrFrameNotReady
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, port.ErrFrameNotReady
	}
	if c.mat.Cols() == 0 || c.mat.Rows() == 0 {
		return nil, port.ErrFrameNotReady
	}

	// ToImage копирует пиксели, Mat переиспользуется на следующем тике.
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close освобождает устройство
func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.capture != nil {
		err = c.capture.Close()
		c.capture = nil
	}
	c.devices.markClosed()
	return err
}

// Проверка реализации интерфейса
var _ port.VideoSource = (*GoCVCamera)(nil)
