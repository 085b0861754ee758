package port

import "ar-overlay/internal/domain/entity"

// StateListener вызывается после каждой смены фазы
type StateListener func(prev, next entity.ControllerState)
