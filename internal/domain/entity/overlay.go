package entity

import (
	"fmt"
	"time"
)

// Phase фаза контроллера оверлея
type Phase string

const (
	PhaseIdle           Phase = "idle"            // Ничего не показано, сэмплирование не начато
	PhaseSampling       Phase = "sampling"        // Тики идут, запроса нет
	PhaseAwaitingResult Phase = "awaiting_result" // Запрос в сервис отправлен
	PhaseDetected       Phase = "detected"        // Транзитная фаза перед показом оверлея
	PhasePendingUnload  Phase = "pending_unload"  // Паттерн пропал, оверлей ещё виден
	PhaseOverlayActive  Phase = "overlay_active"  // Оверлей показан
)

// OverlayVisible сообщает, виден ли оверлей в этой фазе.
func (p Phase) OverlayVisible() bool {
	return p == PhaseOverlayActive || p == PhasePendingUnload
}

// FacingMode выбор фронтальной или тыльной камеры
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Toggle возвращает противоположный режим.
func (m FacingMode) Toggle() FacingMode {
	if m == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// ParseFacingMode разбирает строку из конфигурации или запроса.
func ParseFacingMode(s string) (FacingMode, error) {
	switch FacingMode(s) {
	case FacingUser, FacingEnvironment:
		return FacingMode(s), nil
	case "front":
		return FacingUser, nil
	case "back", "rear":
		return FacingEnvironment, nil
	default:
		return "", fmt.Errorf("unknown facing mode %q", s)
	}
}

// ControllerState состояние сессии. Изменяется только машиной состояний оверлея,
// наружу отдаётся копией.
type ControllerState struct {
	Phase            Phase      // Текущая фаза
	PendingSince     time.Time  // Момент первого промаха в PendingUnload, zero если не ждём
	ActiveOverlayRef string     // Показанный ассет
	FacingMode       FacingMode // Активная камера
}

// NewControllerState создаёт состояние в фазе Idle
func NewControllerState(mode FacingMode) ControllerState {
	return ControllerState{
		Phase:      PhaseIdle,
		FacingMode: mode,
	}
}
