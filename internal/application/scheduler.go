package app

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// SchedulerStats счётчики планировщика
type SchedulerStats struct {
	Ticks   uint64 // всего тиков
	Samples uint64 // запущено сэмплов
	Skipped uint64 // тиков, пропущенных из-за запроса в полёте
}

// Scheduler запускает сэмплирование с фиксированным интервалом.
// В любой момент выполняется не больше одного сэмпла: тик, пришедший
// во время незавершённого сэмпла, пропускается, а не ставится в очередь.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	sample   func(ctx context.Context)
	onTick   func()

	inFlight atomic.Bool
	ticks    atomic.Uint64
	samples  atomic.Uint64
	skipped  atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	workers sync.WaitGroup
}

// NewScheduler создаёт планировщик. onTick вызывается на каждом тике, включая пропущенные.
func NewScheduler(interval time.Duration, logger *slog.Logger, sample func(ctx context.Context), onTick func()) *Scheduler {
	return &Scheduler{
		interval: interval,
		logger:   logger,
		sample:   sample,
		onTick:   onTick,
	}
}

// Start запускает тики. Первый тик срабатывает сразу. Повторный вызов ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	s.logger.Debug("scheduler started", "interval", s.interval)
}

// Stop останавливает тики и отменяет контекст сэмпла в полёте. Идемпотентен.
// Не ждёт завершения сэмпла, для этого есть Wait.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("scheduler stopped")
}

// Wait блокируется до завершения сэмпла в полёте
func (s *Scheduler) Wait() {
	s.workers.Wait()
}

// Running сообщает, идут ли тики
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// InFlight сообщает, выполняется ли сэмпл
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Stats возвращает счётчики
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:   s.ticks.Load(),
		Samples: s.samples.Load(),
		Skipped: s.skipped.Load(),
	}
}

// Fire выполняет один тик. Возвращает true, если сэмпл был запущен.
func (s *Scheduler) Fire(ctx context.Context) bool {
	s.ticks.Add(1)
	if s.onTick != nil {
		s.onTick()
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return false
	}
	s.samples.Add(1)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.inFlight.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("sample panic", "error", r, "stack", string(debug.Stack()))
			}
		}()
		s.sample(ctx)
	}()
	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Fire(ctx)
	for {
		select {
		case <-ticker.C:
			s.Fire(ctx)
		case <-ctx.Done():
			return
		}
	}
}
