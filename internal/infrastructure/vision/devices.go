package vision

import (
	"fmt"

	"ar-overlay/internal/domain/entity"
	"ar-overlay/internal/domain/port"
)

// deviceSet сопоставляет режимы камеры индексам устройств и помнит открытое устройство.
type deviceSet struct {
	byMode  map[entity.FacingMode]int
	current int
	opened  bool
}

func newDeviceSet(userDevice, envDevice int) deviceSet {
	return deviceSet{
		byMode: map[entity.FacingMode]int{
			entity.FacingUser:        userDevice,
			entity.FacingEnvironment: envDevice,
		},
	}
}

// resolve возвращает индекс устройства для режима. reopen == false, если это
// устройство уже открыто: повторный захват того же V4L2 устройства обычно
// заканчивается "device busy".
func (d *deviceSet) resolve(mode entity.FacingMode) (device int, reopen bool, err error) {
	device, ok := d.byMode[mode]
	if !ok {
		return 0, false, fmt.Errorf("%w: no device for %s", port.ErrCameraUnavailable, mode)
	}
	return device, !d.opened || d.current != device, nil
}

func (d *deviceSet) markOpened(device int) {
	d.current = device
	d.opened = true
}

func (d *deviceSet) markClosed() {
	d.opened = false
}
