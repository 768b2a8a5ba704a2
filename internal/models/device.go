package models

import "time"

// Mode is the operating mode reported by (or commanded to) a device.
type Mode string

const (
	ModeHeat   Mode = "heat"
	ModeAuto   Mode = "auto"
	ModeOff    Mode = "off"
	ModeManual Mode = "manual"
)

// Preset names a temperature preset.
type Preset string

const (
	PresetEco     Preset = "eco"
	PresetComfort Preset = "comfort"
	PresetManual  Preset = "manual"
	PresetNone    Preset = "none"
)

// Source records which channel produced the last accepted write.
type Source string

const (
	SourcePush       Source = "push"
	SourcePoll       Source = "poll"
	SourceOptimistic Source = "optimistic"
)

// ProductClass decides which channel is authoritative for commands:
// nexa-class devices take commands over the realtime stream, legacy
// devices over REST.
type ProductClass string

const (
	ClassNexa   ProductClass = "nexa"
	ClassLegacy ProductClass = "legacy"
)

// HeatingAction is the derived heating state, never taken from the
// device's own (stale) warming flag.
type HeatingAction string

const (
	ActionHeating HeatingAction = "heating"
	ActionIdle    HeatingAction = "idle"
	ActionOff     HeatingAction = "off"
)

// WeekdaySet is a bit set over time.Weekday (Sunday = bit 0).
type WeekdaySet uint8

// Weekdays builds a set from the given days.
func Weekdays(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Contains reports whether the set includes d.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// ScheduleEntry is one time-bounded slot of a weekly schedule.
// Start and End are minutes from midnight; the window is [Start, End).
// Temperature 0 means "use the device setpoint for the entry's preset".
type ScheduleEntry struct {
	Days        WeekdaySet `json:"days"`
	Start       int        `json:"start"`
	End         int        `json:"end"`
	Preset      Preset     `json:"preset"`
	Temperature float64    `json:"temperature,omitempty"`
}

// Schedule is device-owned data; this service only reads and evaluates it.
// Entries may overlap or leave gaps, the evaluator tie-breaks.
type Schedule struct {
	Entries            []ScheduleEntry `json:"entries,omitempty"`
	DefaultPreset      Preset          `json:"default_preset,omitempty"`
	DefaultTemperature float64         `json:"default_temperature,omitempty"`
	HasDefault         bool            `json:"has_default,omitempty"`
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	out := s
	if len(s.Entries) > 0 {
		out.Entries = make([]ScheduleEntry, len(s.Entries))
		copy(out.Entries, s.Entries)
	}
	return out
}

// Device is the canonical record for one radiator as the store knows it.
// LastUpdated is a coarse per-record clock: a merge carrying an older
// timestamp is rejected, so the field is monotonically non-decreasing.
type Device struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Class ProductClass `json:"class"`

	Power              bool    `json:"power"`
	CurrentTemperature float64 `json:"current_temp_c"`
	TargetTemperature  float64 `json:"target_temp_c"`
	Mode               Mode    `json:"mode"`
	Preset             Preset  `json:"preset"`

	// Preset setpoints, used when a schedule entry names a preset
	// without an explicit temperature.
	EcoTemp     float64 `json:"eco_temp_c,omitempty"`
	ComfortTemp float64 `json:"comfort_temp_c,omitempty"`
	IceTemp     float64 `json:"ice_temp_c,omitempty"`

	Schedule Schedule `json:"schedule,omitempty"`

	ConnectionSource Source    `json:"connection_source"`
	LastUpdated      time.Time `json:"last_updated"`

	FirmwareVersion         string `json:"firmware_version,omitempty"`
	FirmwareUpdateAvailable bool   `json:"firmware_update_available"`

	EnergyTotalKWh float64 `json:"energy_total_kwh,omitempty"`
	PowerInstantW  float64 `json:"power_instant_w,omitempty"`
}

// Clone returns a deep copy so readers never share slices with the store.
func (d Device) Clone() Device {
	out := d
	out.Schedule = d.Schedule.Clone()
	return out
}

// PartialUpdate is a merge proposal from one of the channels. Nil fields
// are left untouched; a full snapshot is simply an update with every
// field set.
type PartialUpdate struct {
	Name  *string
	Class *ProductClass

	Power              *bool
	CurrentTemperature *float64
	TargetTemperature  *float64
	Mode               *Mode
	Preset             *Preset

	EcoTemp     *float64
	ComfortTemp *float64
	IceTemp     *float64

	Schedule *Schedule

	FirmwareVersion         *string
	FirmwareUpdateAvailable *bool

	EnergyTotalKWh *float64
	PowerInstantW  *float64
}

// SnapshotUpdate converts a full device record into a merge proposal
// with every field set. Used for poll snapshots and warm starts.
func SnapshotUpdate(d Device) PartialUpdate {
	sched := d.Schedule.Clone()
	return PartialUpdate{
		Name:                    &d.Name,
		Class:                   &d.Class,
		Power:                   &d.Power,
		CurrentTemperature:      &d.CurrentTemperature,
		TargetTemperature:       &d.TargetTemperature,
		Mode:                    &d.Mode,
		Preset:                  &d.Preset,
		EcoTemp:                 &d.EcoTemp,
		ComfortTemp:             &d.ComfortTemp,
		IceTemp:                 &d.IceTemp,
		Schedule:                &sched,
		FirmwareVersion:         &d.FirmwareVersion,
		FirmwareUpdateAvailable: &d.FirmwareUpdateAvailable,
		EnergyTotalKWh:          &d.EnergyTotalKWh,
		PowerInstantW:           &d.PowerInstantW,
	}
}

// Capabilities are the per-device command bounds supplied by the catalog.
type Capabilities struct {
	MinTemp float64
	MaxTemp float64
	Step    float64
	Modes   []Mode
	Presets []Preset
}

// SupportsMode reports whether m is an allowed mode.
func (c Capabilities) SupportsMode(m Mode) bool {
	for _, v := range c.Modes {
		if v == m {
			return true
		}
	}
	return false
}

// SupportsPreset reports whether p is an allowed preset.
func (c Capabilities) SupportsPreset(p Preset) bool {
	for _, v := range c.Presets {
		if v == p {
			return true
		}
	}
	return false
}

// DisplayState is the composed read-time view for a control surface:
// schedule-resolved target, derived heating action and availability.
type DisplayState struct {
	DeviceID          string        `json:"device_id"`
	TargetTemperature float64       `json:"target_temp_c,omitempty"`
	Preset            Preset        `json:"preset"`
	Action            HeatingAction `json:"action"`
	Available         bool          `json:"available"`
}
