package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// CameraController владеет выбором камеры и переоткрывает источник при смене режима.
type CameraController struct {
	mu     sync.Mutex
	source port.VideoSource
	mode   entity.FacingMode
	open   bool
	logger *slog.Logger
}

// NewCameraController создаёт контроллер, камера ещё не открыта
func NewCameraController(source port.VideoSource, mode entity.FacingMode, logger *slog.Logger) *CameraController {
	return &CameraController{
		source: source,
		mode:   mode,
		logger: logger,
	}
}

// Open захватывает камеру в текущем режиме
func (c *CameraController) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.source.Open(ctx, c.mode); err != nil {
		return fmt.Errorf("open camera %s: %w", c.mode, err)
	}
	c.open = true
	return nil
}

// Mode возвращает активный режим
func (c *CameraController) Mode() entity.FacingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Frame возвращает текущий кадр или port.ErrFrameNotReady
func (c *CameraController) Frame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, port.ErrFrameNotReady
	}
	return c.source.Frame(ctx)
}

// Flip переключает камеру. Если новый режим не открылся, возвращается
// прежний режим вместе с ошибкой, а источник переоткрывается в прежнем режиме.
func (c *CameraController) Flip(ctx context.Context) (entity.FacingMode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.mode
	next := prev.Toggle()
	err := c.source.Open(ctx, next)
	if err == nil {
		c.mode = next
		c.open = true
		c.logger.Info("camera flipped", "from", prev, "to", next)
		return next, nil
	}

	c.logger.Warn("camera flip failed, reverting", "to", next, "error", err)
	if rerr := c.source.Open(ctx, prev); rerr != nil {
		c.open = false
		return prev, errors.Join(fmt.Errorf("flip to %s: %w", next, err), fmt.Errorf("reopen %s: %w", prev, rerr))
	}
	c.open = true
	return prev, fmt.Errorf("flip to %s: %w", next, err)
}

// Close освобождает камеру
func (c *CameraController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	c.open = false
	return c.source.Close()
}
