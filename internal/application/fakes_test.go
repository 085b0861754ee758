package app

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu       sync.Mutex
	opened   []entity.FacingMode
	failFor  map[entity.FacingMode]error
	notReady bool
	closed   int
	isOpen   bool
	// gate, если задан, блокирует Frame до закрытия канала
	gate chan struct{}
	// frameStarted получает сигнал, когда Frame начал ждать gate
	frameStarted chan struct{}
}

func (s *fakeSource) Open(ctx context.Context, mode entity.FacingMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, mode)
	if err := s.failFor[mode]; err != nil {
		return err
	}
	s.isOpen = true
	return nil
}

func (s *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	gate, started := s.gate, s.frameStarted
	s.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notReady {
		return nil, port.ErrFrameNotReady
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed++
	s.isOpen = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) setGate(gate chan struct{}) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
	s.frameStarted = make(chan struct{}, 1)
	return s.frameStarted
}

func (s *fakeSource) stillOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

func (s *fakeSource) setNotReady(v bool) {
	s.mu.Lock()
	s.notReady = v
	s.mu.Unlock()
}

func (s *fakeSource) openedModes() []entity.FacingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.FacingMode(nil), s.opened...)
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(frame image.Image) (*entity.EncodedFrame, error) {
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, port.ErrFrameNotReady
	}
	return &entity.EncodedFrame{Data: []byte{0xff, 0xd8}, MimeType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

type detectCall struct {
	mode  entity.FacingMode
	reply chan detectReply
}

type detectReply struct {
	res entity.DetectionResult
	err error
}

// gatedDetector блокирует каждый запрос, пока тест не ответит на него через calls.
type gatedDetector struct {
	calls     chan detectCall
	ignoreCtx bool
}

func newGatedDetector() *gatedDetector {
	return &gatedDetector{calls: make(chan detectCall, 16)}
}

func (d *gatedDetector) Detect(ctx context.Context, frame *entity.EncodedFrame, mode entity.FacingMode) (entity.DetectionResult, error) {
	call := detectCall{mode: mode, reply: make(chan detectReply, 1)}
	d.calls <- call
	if d.ignoreCtx {
		r := <-call.reply
		return r.res, r.err
	}
	select {
	case r := <-call.reply:
		return r.res, r.err
	case <-ctx.Done():
		return entity.NotDetected(), ctx.Err()
	}
}

// staticDetector всегда возвращает один и тот же ответ.
// Если задан byMode, ответ выбирается по режиму камеры.
type staticDetector struct {
	mu     sync.Mutex
	res    entity.DetectionResult
	err    error
	byMode map[entity.FacingMode]entity.DetectionResult
	count  int
	modes  []entity.FacingMode
}

func (d *staticDetector) Detect(ctx context.Context, frame *entity.EncodedFrame, mode entity.FacingMode) (entity.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.modes = append(d.modes, mode)
	if res, ok := d.byMode[mode]; ok {
		return res, d.err
	}
	return d.res, d.err
}

func (d *staticDetector) setByMode(byMode map[entity.FacingMode]entity.DetectionResult) {
	d.mu.Lock()
	d.byMode = byMode
	d.mu.Unlock()
}

func (d *staticDetector) callsFor(mode entity.FacingMode) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, m := range d.modes {
		if m == mode {
			n++
		}
	}
	return n
}

func (d *staticDetector) set(res entity.DetectionResult, err error) {
	d.mu.Lock()
	d.res, d.err = res, err
	d.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errDenied = errors.New("permission denied")
