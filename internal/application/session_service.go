package app

import (
	"context"
	"log/slog"
	"sync"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// SessionService управляет жизненным циклом сессии: монтирование и размонтирование виджета.
type SessionService struct {
	baseCtx   context.Context
	cfg       SessionConfig
	source    port.VideoSource
	encoder   port.FrameEncoder
	detector  port.DetectionClient
	mode      entity.FacingMode
	logger    *slog.Logger
	opts      []SessionOption
	listeners []port.StateListener

	mu      sync.Mutex
	current *Session
}

// NewSessionService создаёт сервис. baseCtx живёт столько же, сколько процесс.
func NewSessionService(baseCtx context.Context, cfg SessionConfig, source port.VideoSource, encoder port.FrameEncoder, detector port.DetectionClient, mode entity.FacingMode, logger *slog.Logger, opts ...SessionOption) *SessionService {
	return &SessionService{
		baseCtx:  baseCtx,
		cfg:      cfg,
		source:   source,
		encoder:  encoder,
		detector: detector,
		mode:     mode,
		logger:   logger,
		opts:     opts,
	}
}

// AddListener подписывает слушателя на все будущие сессии и на текущую.
func (s *SessionService) AddListener(l port.StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	if s.current != nil {
		s.current.AddListener(l)
	}
}

// Mount создаёт и запускает сессию. Если сессия уже есть, возвращает её.
func (s *SessionService) Mount() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, nil
	}

	mode := s.mode
	camera := NewCameraController(s.source, mode, s.logger)
	sess := NewSession(s.cfg, camera, s.encoder, s.detector, s.logger, s.opts...)
	for _, l := range s.listeners {
		sess.AddListener(l)
	}
	if err := sess.Start(s.baseCtx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	s.current = sess
	return sess, nil
}

// Unmount разбирает текущую сессию. Режим камеры запоминается для следующей.
func (s *SessionService) Unmount() error {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	if sess != nil {
		s.mode = sess.camera.Mode()
	}
	s.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}
	return sess.Close()
}

// Current возвращает смонтированную сессию
func (s *SessionService) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoSession
	}
	return s.current, nil
}

// Reset сбрасывает текущую сессию
func (s *SessionService) Reset() error {
	sess, err := s.Current()
	if err != nil {
		return err
	}
	return sess.Reset()
}

// Flip переключает камеру текущей сессии
func (s *SessionService) Flip(ctx context.Context) (entity.FacingMode, error) {
	sess, err := s.Current()
	if err != nil {
		return "", err
	}
	return sess.Flip(ctx)
}

// Snapshot состояние текущей сессии
func (s *SessionService) Snapshot() (SessionSnapshot, error) {
	sess, err := s.Current()
	if err != nil {
		return SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Shutdown разбирает сессию при остановке процесса
func (s *SessionService) Shutdown() error {
	err := s.Unmount()
	if err == ErrNoSession {
		return nil
	}
	return err
}
