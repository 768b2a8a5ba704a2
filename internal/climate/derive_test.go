package climate

import (
	"testing"
	"time"

	"climate_hub/internal/models"
)

func TestDeriveAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		power   bool
		target  float64
		current float64
		want    models.HeatingAction
	}{
		{"powered off", false, 25.0, 10.0, models.ActionOff},
		{"target above current", true, 21.0, 19.5, models.ActionHeating},
		{"target reached", true, 22.0, 22.0, models.ActionIdle},
		{"target below current", true, 18.0, 22.0, models.ActionIdle},
		{"marginally above", true, 19.51, 19.5, models.ActionHeating},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DeriveAction(tc.power, tc.target, tc.current); got != tc.want {
				t.Fatalf("DeriveAction(%v, %v, %v) = %v, want %v",
					tc.power, tc.target, tc.current, got, tc.want)
			}
		})
	}
}

func TestEffectiveTarget(t *testing.T) {
	t.Parallel()
	monday := models.Weekdays(time.Monday)
	at := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	dev := models.Device{
		ID:                "rad-1",
		Mode:              models.ModeAuto,
		Preset:            models.PresetManual,
		TargetTemperature: 21.0,
		ComfortTemp:       22.5,
		Schedule: models.Schedule{Entries: []models.ScheduleEntry{
			{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
		}},
	}

	if preset, target := EffectiveTarget(dev, at); preset != models.PresetComfort || target != 22.5 {
		t.Fatalf("auto mode: got %v %v, want comfort 22.5", preset, target)
	}

	dev.Mode = models.ModeManual
	if preset, target := EffectiveTarget(dev, at); preset != models.PresetManual || target != 21.0 {
		t.Fatalf("manual mode: got %v %v, want manual 21.0", preset, target)
	}
}

func TestDisplayState(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	dev := models.Device{
		ID:                 "rad-1",
		Power:              true,
		Mode:               models.ModeHeat,
		Preset:             models.PresetManual,
		TargetTemperature:  21.0,
		CurrentTemperature: 19.5,
	}

	st := DisplayState(dev, at, true)
	if st.Action != models.ActionHeating {
		t.Fatalf("action = %v, want heating", st.Action)
	}
	if st.TargetTemperature != 21.0 {
		t.Fatalf("target = %v, want 21.0", st.TargetTemperature)
	}
	if !st.Available {
		t.Fatalf("expected available")
	}

	dev.Power = false
	st = DisplayState(dev, at, false)
	if st.Action != models.ActionOff {
		t.Fatalf("action = %v, want off", st.Action)
	}
	if st.TargetTemperature != 0 {
		t.Fatalf("powered-off device should expose no target, got %v", st.TargetTemperature)
	}
	if st.Available {
		t.Fatalf("expected unavailable")
	}
}
