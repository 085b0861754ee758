package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// SessionConfig параметры цикла сэмплирования
type SessionConfig struct {
	PollInterval   time.Duration
	UnloadDelay    time.Duration
	RequestTimeout time.Duration
}

// SessionSnapshot то, что видит слой UI
type SessionSnapshot struct {
	ID              string
	State           entity.ControllerState
	DiagnosticImage string
	InFlight        bool
	Stats           SchedulerStats
}

// Session одна смонтированная сессия виджета: камера, планировщик и машина состояний.
type Session struct {
	id       uuid.UUID
	cfg      SessionConfig
	logger   *slog.Logger
	now      func() time.Time
	camera   *CameraController
	encoder  port.FrameEncoder
	detector port.DetectionClient
	sched    *Scheduler

	mu         sync.Mutex
	machine    *OverlayMachine
	diagnostic string
	cancelReq  context.CancelFunc
	runCtx     context.Context
	closed     bool
	listeners  []port.StateListener

	dispatchMu sync.Mutex
	// lifeMu сериализует Flip и Close
	lifeMu sync.Mutex
}

// SessionOption настраивает сессию
type SessionOption func(*Session)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession собирает сессию. Камера открывается в Start.
func NewSession(cfg SessionConfig, camera *CameraController, encoder port.FrameEncoder, detector port.DetectionClient, logger *slog.Logger, opts ...SessionOption) *Session {
	id := uuid.New()
	s := &Session{
		id:       id,
		cfg:      cfg,
		logger:   logger.With("session", id.String()),
		now:      time.Now,
		camera:   camera,
		encoder:  encoder,
		detector: detector,
		machine:  NewOverlayMachine(camera.Mode(), cfg.UnloadDelay),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = NewScheduler(cfg.PollInterval, s.logger, s.sample, s.tick)
	return s
}

// ID идентификатор сессии
func (s *Session) ID() string {
	return s.id.String()
}

// AddListener подписывает слушателя на смену состояния.
// Слушатель вызывается вне блокировки сессии, но не должен синхронно вызывать Reset или Flip.
func (s *Session) AddListener(l port.StateListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Start открывает камеру и запускает планировщик
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.runCtx = ctx
	s.mu.Unlock()

	if err := s.camera.Open(ctx); err != nil {
		return err
	}
	s.sched.Start(ctx)
	s.logger.Info("session started", "facing_mode", s.camera.Mode(), "interval", s.cfg.PollInterval)
	return nil
}

// Reset сбрасывает сессию в Idle. Результат запроса в полёте будет отброшен.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.machine.Reset()
	s.cancelInFlight()
	s.diagnostic = ""
	s.mu.Unlock()

	s.logger.Info("session reset")
	s.dispatch()
	return nil
}

// Retake то же, что Reset: пользователь хочет начать съёмку заново
func (s *Session) Retake() error {
	return s.Reset()
}

// Flip переключает камеру. Планировщик на время переоткрытия источника останавливается,
// фаза оверлея не меняется. Ошибка означает, что осталась прежняя камера.
func (s *Session) Flip(ctx context.Context) (entity.FacingMode, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.camera.Mode(), ErrSessionClosed
	}
	// тик, начатый до переключения, не должен изменить состояние
	s.machine.Invalidate()
	s.cancelInFlight()
	runCtx := s.runCtx
	s.mu.Unlock()
	s.dispatch()

	s.sched.Stop()

	mode, err := s.camera.Flip(ctx)

	s.mu.Lock()
	s.machine.SetFacingMode(mode)
	s.mu.Unlock()
	s.dispatch()

	if runCtx != nil {
		s.sched.Start(runCtx)
	}
	return mode, err
}

// Close разбирает сессию: останавливает планировщик, отбрасывает запрос в полёте и освобождает камеру.
func (s *Session) Close() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.machine.Invalidate()
	s.cancelInFlight()
	s.mu.Unlock()

	s.sched.Stop()
	s.sched.Wait()
	err := s.camera.Close()
	s.logger.Info("session closed")
	return err
}

// Snapshot возвращает копию состояния для UI
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		ID:              s.id.String(),
		State:           s.machine.State(),
		DiagnosticImage: s.diagnostic,
		InFlight:        s.sched.InFlight(),
		Stats:           s.sched.Stats(),
	}
}

// tick двигает окно debounce на каждом тике, даже если сэмпл пропущен
func (s *Session) tick() {
	s.mu.Lock()
	if !s.closed {
		s.machine.Expire(s.now())
	}
	s.mu.Unlock()
	s.dispatch()
}

// sample один проход конвейера: кадр, кодирование, детекция, применение результата.
// Токен поколения фиксируется в начале тика: Reset, Flip или Close во время
// тика делают его результат устаревшим.
func (s *Session) sample(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	token := s.machine.Generation()
	s.machine.BeginSampling()
	s.mu.Unlock()
	s.dispatch()

	mode := s.camera.Mode()
	frame, err := s.camera.Frame(ctx)
	if err != nil {
		s.logger.Debug("tick skipped: frame not acquired", "error", err)
		return
	}
	encoded, err := s.encoder.Encode(frame)
	if err != nil {
		s.logger.Debug("tick skipped: frame not encoded", "error", err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	s.mu.Lock()
	if s.closed || token != s.machine.Generation() {
		s.mu.Unlock()
		s.logger.Debug("tick superseded before request", "token", token)
		return
	}
	s.machine.Issue()
	s.cancelReq = cancel
	s.mu.Unlock()
	s.dispatch()

	res, err := s.detector.Detect(reqCtx, encoded, mode)

	s.mu.Lock()
	if token == s.machine.Generation() {
		s.cancelReq = nil
	}
	s.mu.Unlock()

	// отменённый запрос не промах: его результат отбрасывается целиком
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.logger.Debug("detection request cancelled", "token", token)
		return
	}
	if err != nil {
		s.logger.Warn("detection request failed", "error", err)
		res = entity.NotDetected()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	applied := s.machine.Apply(token, res, s.now())
	if applied && res.DiagnosticImage != "" {
		s.diagnostic = res.DiagnosticImage
	}
	s.mu.Unlock()

	if !applied {
		s.logger.Debug("stale detection result discarded", "token", token)
		return
	}
	s.dispatch()
}

// cancelInFlight вызывается под s.mu
func (s *Session) cancelInFlight() {
	if s.cancelReq != nil {
		s.cancelReq()
		s.cancelReq = nil
	}
}

// dispatch рассылает накопленные переходы в порядке их возникновения
func (s *Session) dispatch() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	transitions := s.machine.Drain()
	listeners := append([]port.StateListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, tr := range transitions {
		s.logger.Debug("overlay state transition", "from", tr.Prev.Phase, "to", tr.Next.Phase, "overlay", tr.Next.ActiveOverlayRef)
		for _, l := range listeners {
			l(tr.Prev, tr.Next)
		}
	}
}
