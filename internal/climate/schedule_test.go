package climate

import (
	"testing"
	"time"

	"climate_hub/internal/models"
)

// mustTime builds a wall-clock instant on a known weekday.
// 2026-01-05 is a Monday.
func mustTime(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	ts := time.Date(2026, time.January, 5, hour, minute, 0, 0, time.UTC)
	if ts.Weekday() != time.Monday {
		t.Fatalf("fixture day is %v, want Monday", ts.Weekday())
	}
	return ts
}

func baseDevice(sched models.Schedule) models.Device {
	return models.Device{
		ID:                "rad-1",
		Mode:              models.ModeAuto,
		Preset:            models.PresetManual,
		TargetTemperature: 21.5,
		EcoTemp:           17.0,
		ComfortTemp:       22.0,
		IceTemp:           7.0,
		Schedule:          sched,
	}
}

func TestResolve_NoEntriesNoDefault(t *testing.T) {
	t.Parallel()
	dev := baseDevice(models.Schedule{})

	preset, target, ok := Resolve(dev, mustTime(t, 10, 0))
	if ok {
		t.Fatalf("expected ok=false for empty schedule")
	}
	if preset != models.PresetManual || target != 21.5 {
		t.Fatalf("expected last observed state back, got %v %v", preset, target)
	}
}

func TestResolve_EntrySelection(t *testing.T) {
	t.Parallel()
	monday := models.Weekdays(time.Monday)

	tests := []struct {
		name       string
		entries    []models.ScheduleEntry
		at         time.Time
		wantPreset models.Preset
		wantTemp   float64
		wantOK     bool
	}{
		{
			name: "explicit entry temperature wins over setpoint",
			entries: []models.ScheduleEntry{
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetEco, Temperature: 18.5},
			},
			at:         time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
			wantPreset: models.PresetEco,
			wantTemp:   18.5,
			wantOK:     true,
		},
		{
			name: "entry without temperature uses preset setpoint",
			entries: []models.ScheduleEntry{
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
			},
			at:         time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
			wantPreset: models.PresetComfort,
			wantTemp:   22.0,
			wantOK:     true,
		},
		{
			name: "shortest overlapping window wins",
			entries: []models.ScheduleEntry{
				{Days: monday, Start: 6 * 60, End: 22 * 60, Preset: models.PresetEco},
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
			},
			at:         time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
			wantPreset: models.PresetComfort,
			wantTemp:   22.0,
			wantOK:     true,
		},
		{
			name: "equal width ties break to the later declaration",
			entries: []models.ScheduleEntry{
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetEco},
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
			},
			at:         time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
			wantPreset: models.PresetComfort,
			wantTemp:   22.0,
			wantOK:     true,
		},
		{
			name: "wrong day does not match",
			entries: []models.ScheduleEntry{
				{Days: models.Weekdays(time.Tuesday), Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
			},
			at:     time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
			wantOK: false,
		},
		{
			name: "window end is exclusive",
			entries: []models.ScheduleEntry{
				{Days: monday, Start: 8 * 60, End: 10 * 60, Preset: models.PresetComfort},
			},
			at:     time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC),
			wantOK: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dev := baseDevice(models.Schedule{Entries: tc.entries})

			preset, target, ok := Resolve(dev, tc.at)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !tc.wantOK {
				return
			}
			if preset != tc.wantPreset {
				t.Fatalf("preset = %v, want %v", preset, tc.wantPreset)
			}
			if target != tc.wantTemp {
				t.Fatalf("target = %v, want %v", target, tc.wantTemp)
			}
		})
	}
}

func TestResolve_WrapsMidnight(t *testing.T) {
	t.Parallel()
	// Window starts Monday 22:00 and ends Tuesday 06:00.
	sched := models.Schedule{Entries: []models.ScheduleEntry{
		{Days: models.Weekdays(time.Monday), Start: 22 * 60, End: 6 * 60, Preset: models.PresetEco},
	}}
	dev := baseDevice(sched)

	// Monday 23:30: inside, counted on the start day.
	if _, temp, ok := Resolve(dev, time.Date(2026, time.January, 5, 23, 30, 0, 0, time.UTC)); !ok || temp != 17.0 {
		t.Fatalf("Monday night: ok=%v temp=%v, want eco 17.0", ok, temp)
	}
	// Tuesday 05:00: still inside the Monday window.
	if _, temp, ok := Resolve(dev, time.Date(2026, time.January, 6, 5, 0, 0, 0, time.UTC)); !ok || temp != 17.0 {
		t.Fatalf("Tuesday early: ok=%v temp=%v, want eco 17.0", ok, temp)
	}
	// Tuesday 22:30: a fresh Tuesday evening is outside, the set names Monday only.
	if _, _, ok := Resolve(dev, time.Date(2026, time.January, 6, 22, 30, 0, 0, time.UTC)); ok {
		t.Fatalf("Tuesday night should not match a Monday-only window")
	}
}

func TestResolve_DefaultFallback(t *testing.T) {
	t.Parallel()

	withTemp := baseDevice(models.Schedule{
		DefaultPreset: models.PresetEco, DefaultTemperature: 16.0, HasDefault: true,
	})
	if preset, target, ok := Resolve(withTemp, mustTime(t, 3, 0)); !ok || preset != models.PresetEco || target != 16.0 {
		t.Fatalf("default with temperature: got %v %v ok=%v", preset, target, ok)
	}

	withSetpoint := baseDevice(models.Schedule{
		DefaultPreset: models.PresetComfort, HasDefault: true,
	})
	if preset, target, ok := Resolve(withSetpoint, mustTime(t, 3, 0)); !ok || preset != models.PresetComfort || target != 22.0 {
		t.Fatalf("default via setpoint: got %v %v ok=%v", preset, target, ok)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()
	monday := models.Weekdays(time.Monday)
	dev := baseDevice(models.Schedule{Entries: []models.ScheduleEntry{
		{Days: monday, Start: 0, End: 12 * 60, Preset: models.PresetEco},
		{Days: monday, Start: 0, End: 12 * 60, Preset: models.PresetComfort},
		{Days: monday, Start: 8 * 60, End: 20 * 60, Preset: models.PresetNone},
	}})
	at := mustTime(t, 9, 0)

	firstPreset, firstTemp, _ := Resolve(dev, at)
	for i := 0; i < 50; i++ {
		preset, temp, _ := Resolve(dev, at)
		if preset != firstPreset || temp != firstTemp {
			t.Fatalf("resolution flapped on call %d: %v/%v then %v/%v", i, firstPreset, firstTemp, preset, temp)
		}
	}
}
