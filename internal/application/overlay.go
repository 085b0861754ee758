package app

import (
	"time"

	"ar-overlay/internal/domain/entity"
)

// Transition одна смена фазы машины состояний
type Transition struct {
	Prev entity.ControllerState
	Next entity.ControllerState
}

// OverlayMachine решает, когда показывать и скрывать AR-оверлей.
// Показ происходит сразу на первом положительном результате, скрытие только
// после UnloadDelay непрерывного отсутствия паттерна.
//
// Не потокобезопасна: единственный писатель это Session под своим мьютексом.
type OverlayMachine struct {
	state      entity.ControllerState
	window     time.Duration
	generation uint64
	lastRef    string
	pending    []Transition
}

// NewOverlayMachine создаёт машину в фазе Idle
func NewOverlayMachine(mode entity.FacingMode, unloadDelay time.Duration) *OverlayMachine {
	return &OverlayMachine{
		state:      entity.NewControllerState(mode),
		window:     unloadDelay,
		generation: 1,
	}
}

// State возвращает копию состояния
func (m *OverlayMachine) State() entity.ControllerState {
	return m.state
}

// Generation текущее поколение запросов
func (m *OverlayMachine) Generation() uint64 {
	return m.generation
}

// BeginSampling переводит Idle в Sampling на тике планировщика.
func (m *OverlayMachine) BeginSampling() {
	if m.state.Phase == entity.PhaseIdle {
		m.setPhase(entity.PhaseSampling)
	}
}

// Issue отмечает отправку запроса. Токен берётся из Generation в начале тика.
// При активном оверлее фаза не меняется.
func (m *OverlayMachine) Issue() {
	switch m.state.Phase {
	case entity.PhaseIdle, entity.PhaseSampling:
		m.setPhase(entity.PhaseAwaitingResult)
	}
}

// Apply применяет результат запроса с токеном token.
// Результаты устаревших поколений отбрасываются, тогда возвращается false.
func (m *OverlayMachine) Apply(token uint64, res entity.DetectionResult, now time.Time) bool {
	if token != m.generation {
		return false
	}
	if m.Expire(now) {
		if !res.Detected {
			return true
		}
	}

	switch m.state.Phase {
	case entity.PhaseOverlayActive:
		if res.Detected {
			m.refresh(res)
			return true
		}
		next := m.state
		next.Phase = entity.PhasePendingUnload
		next.PendingSince = now
		m.transition(next)

	case entity.PhasePendingUnload:
		if res.Detected {
			next := m.state
			next.Phase = entity.PhaseOverlayActive
			next.PendingSince = time.Time{}
			m.transition(next)
			m.refresh(res)
		}

	default:
		if !res.Detected {
			if m.state.Phase == entity.PhaseAwaitingResult {
				m.setPhase(entity.PhaseSampling)
			}
			return true
		}
		m.setPhase(entity.PhaseDetected)
		next := m.state
		next.Phase = entity.PhaseOverlayActive
		if ref, ok := res.Overlay(); ok {
			m.lastRef = ref
		}
		next.ActiveOverlayRef = m.lastRef
		m.transition(next)
	}
	return true
}

// Expire скрывает оверлей, если окно UnloadDelay истекло без положительного результата.
func (m *OverlayMachine) Expire(now time.Time) bool {
	if m.state.Phase != entity.PhasePendingUnload {
		return false
	}
	if now.Sub(m.state.PendingSince) < m.window {
		return false
	}
	m.transition(entity.NewControllerState(m.state.FacingMode))
	return true
}

// Reset возвращает машину в Idle и делает все отправленные запросы устаревшими.
func (m *OverlayMachine) Reset() {
	m.generation++
	m.lastRef = ""
	m.transition(entity.NewControllerState(m.state.FacingMode))
}

// Invalidate делает устаревшим запрос в полёте, не трогая оверлей.
func (m *OverlayMachine) Invalidate() {
	m.generation++
	if m.state.Phase == entity.PhaseAwaitingResult {
		m.setPhase(entity.PhaseSampling)
	}
}

// SetFacingMode фиксирует активную камеру
func (m *OverlayMachine) SetFacingMode(mode entity.FacingMode) {
	if m.state.FacingMode == mode {
		return
	}
	next := m.state
	next.FacingMode = mode
	m.transition(next)
}

// Drain забирает накопленные переходы для рассылки слушателям.
func (m *OverlayMachine) Drain() []Transition {
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

// refresh обновляет ссылку на ассет только если пришла другая.
func (m *OverlayMachine) refresh(res entity.DetectionResult) {
	ref, ok := res.Overlay()
	if !ok || ref == m.state.ActiveOverlayRef {
		return
	}
	m.lastRef = ref
	next := m.state
	next.ActiveOverlayRef = ref
	m.transition(next)
}

func (m *OverlayMachine) setPhase(p entity.Phase) {
	next := m.state
	next.Phase = p
	m.transition(next)
}

func (m *OverlayMachine) transition(next entity.ControllerState) {
	prev := m.state
	if prev == next {
		return
	}
	m.state = next
	m.pending = append(m.pending, Transition{Prev: prev, Next: next})
}
