package climate

import (
	"time"

	"climate_hub/internal/models"
)

// DeriveAction computes the heating action from the power flag and the
// two temperatures alone. Devices report their own warming flag but it
// is cached upstream and routinely stale, so it is never consulted.
func DeriveAction(power bool, target, current float64) models.HeatingAction {
	if !power {
		return models.ActionOff
	}
	if target > current {
		return models.ActionHeating
	}
	return models.ActionIdle
}

// EffectiveTarget returns the schedule-aware target and preset for a
// device at the given instant. Auto mode consults the schedule; every
// other mode uses the observed setpoint and preset directly.
func EffectiveTarget(dev models.Device, now time.Time) (models.Preset, float64) {
	if dev.Mode == models.ModeAuto {
		preset, target, _ := Resolve(dev, now)
		return preset, target
	}
	return dev.Preset, dev.TargetTemperature
}

// DisplayState composes the read-time view for a control surface:
// resolved target, derived action and the availability verdict the
// caller computed from merge recency. A powered-off device exposes no
// target temperature.
func DisplayState(dev models.Device, now time.Time, available bool) models.DisplayState {
	preset, target := EffectiveTarget(dev, now)

	st := models.DisplayState{
		DeviceID:  dev.ID,
		Preset:    preset,
		Action:    DeriveAction(dev.Power, target, dev.CurrentTemperature),
		Available: available,
	}
	if dev.Power {
		st.TargetTemperature = target
	}
	return st
}
