package climate

import (
	"time"

	"climate_hub/internal/models"
)

// minutesPerDay bounds schedule window values.
const minutesPerDay = 24 * 60

// minuteOfDay converts a wall-clock time to minutes from midnight.
func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// windowWidth returns the length of an entry's window in minutes.
// An entry with End <= Start wraps past midnight.
func windowWidth(e models.ScheduleEntry) int {
	if e.End > e.Start {
		return e.End - e.Start
	}
	return minutesPerDay - e.Start + e.End
}

// entryMatches reports whether the entry's day set and [Start, End)
// window contain now.
func entryMatches(e models.ScheduleEntry, now time.Time) bool {
	m := minuteOfDay(now)
	if e.End > e.Start {
		return e.Days.Contains(now.Weekday()) && m >= e.Start && m < e.End
	}
	// Window wraps midnight: the day set names the day the window starts.
	if m >= e.Start {
		return e.Days.Contains(now.Weekday())
	}
	return m < e.End && e.Days.Contains(now.Add(-24*time.Hour).Weekday())
}

// activeEntry selects the schedule entry covering now. Source schedules
// are not guaranteed non-overlapping, so the selection is deterministic:
// the shortest window wins, and among equal widths the entry declared
// later wins. Repeated calls with the same schedule and instant always
// return the same entry.
func activeEntry(sched models.Schedule, now time.Time) (models.ScheduleEntry, bool) {
	var (
		best      models.ScheduleEntry
		bestWidth int
		found     bool
	)
	for _, e := range sched.Entries {
		if !entryMatches(e, now) {
			continue
		}
		w := windowWidth(e)
		if !found || w <= bestWidth {
			best = e
			bestWidth = w
			found = true
		}
	}
	return best, found
}

// setpointFor maps a preset to the device's stored setpoint for it.
func setpointFor(dev models.Device, p models.Preset) float64 {
	switch p {
	case models.PresetEco:
		return dev.EcoTemp
	case models.PresetComfort:
		return dev.ComfortTemp
	case models.PresetNone:
		// No preset scheduled means frost protection.
		return dev.IceTemp
	default:
		return dev.TargetTemperature
	}
}

// Resolve returns the active preset and target temperature for a device
// in auto mode at the given instant. Evaluation is recomputed on every
// read against the caller's clock, so the result flips exactly at
// schedule boundaries without a background tick.
//
// When no entry covers now, the schedule's declared default applies; if
// the schedule has no default, ok is false and the last observed target
// is returned unchanged.
func Resolve(dev models.Device, now time.Time) (models.Preset, float64, bool) {
	if e, found := activeEntry(dev.Schedule, now); found {
		if e.Temperature != 0 {
			return e.Preset, e.Temperature, true
		}
		return e.Preset, setpointFor(dev, e.Preset), true
	}

	if dev.Schedule.HasDefault {
		p := dev.Schedule.DefaultPreset
		if dev.Schedule.DefaultTemperature != 0 {
			return p, dev.Schedule.DefaultTemperature, true
		}
		return p, setpointFor(dev, p), true
	}

	return dev.Preset, dev.TargetTemperature, false
}
