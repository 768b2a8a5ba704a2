package transport

import (
	"time"

	"climate_hub/internal/models"
)

// Wire shapes for the hub's neutral JSON encoding.

type scheduleEntryJSON struct {
	Days        []int   `json:"days"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Preset      string  `json:"preset"`
	Temperature float64 `json:"temperature,omitempty"`
}

type scheduleJSON struct {
	Entries            []scheduleEntryJSON `json:"entries,omitempty"`
	DefaultPreset      string              `json:"default_preset,omitempty"`
	DefaultTemperature float64             `json:"default_temperature,omitempty"`
	HasDefault         bool                `json:"has_default,omitempty"`
}

func (s scheduleJSON) toModel() models.Schedule {
	out := models.Schedule{
		DefaultPreset:      models.Preset(s.DefaultPreset),
		DefaultTemperature: s.DefaultTemperature,
		HasDefault:         s.HasDefault,
	}
	for _, e := range s.Entries {
		var days models.WeekdaySet
		for _, d := range e.Days {
			days |= models.Weekdays(time.Weekday(d))
		}
		out.Entries = append(out.Entries, models.ScheduleEntry{
			Days:        days,
			Start:       e.Start,
			End:         e.End,
			Preset:      models.Preset(e.Preset),
			Temperature: e.Temperature,
		})
	}
	return out
}

// deviceJSON is a full snapshot as served by the REST collaborator.
type deviceJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`

	Power       bool    `json:"power"`
	CurrentTemp float64 `json:"current_temp_c"`
	TargetTemp  float64 `json:"target_temp_c"`
	Mode        string  `json:"mode"`
	Preset      string  `json:"preset"`

	EcoTemp     float64 `json:"eco_temp_c,omitempty"`
	ComfortTemp float64 `json:"comfort_temp_c,omitempty"`
	IceTemp     float64 `json:"ice_temp_c,omitempty"`

	Schedule *scheduleJSON `json:"schedule,omitempty"`

	FirmwareVersion   string  `json:"firmware_version,omitempty"`
	FirmwareUpdate    bool    `json:"firmware_update_available,omitempty"`
	EnergyTotalKWh    float64 `json:"energy_total_kwh,omitempty"`
	PowerInstantWatts float64 `json:"power_instant_w,omitempty"`
}

func (d deviceJSON) toModel() models.Device {
	dev := models.Device{
		ID:                      d.ID,
		Name:                    d.Name,
		Class:                   models.ProductClass(d.Class),
		Power:                   d.Power,
		CurrentTemperature:      d.CurrentTemp,
		TargetTemperature:       d.TargetTemp,
		Mode:                    models.Mode(d.Mode),
		Preset:                  models.Preset(d.Preset),
		EcoTemp:                 d.EcoTemp,
		ComfortTemp:             d.ComfortTemp,
		IceTemp:                 d.IceTemp,
		FirmwareVersion:         d.FirmwareVersion,
		FirmwareUpdateAvailable: d.FirmwareUpdate,
		EnergyTotalKWh:          d.EnergyTotalKWh,
		PowerInstantW:           d.PowerInstantWatts,
	}
	if d.Class == "" {
		dev.Class = models.ClassLegacy
	}
	if d.Schedule != nil {
		dev.Schedule = d.Schedule.toModel()
	}
	return dev
}

// updateJSON is an incremental delta; absent fields stay untouched.
type updateJSON struct {
	Name  *string `json:"name,omitempty"`
	Class *string `json:"class,omitempty"`

	Power       *bool    `json:"power,omitempty"`
	CurrentTemp *float64 `json:"current_temp_c,omitempty"`
	TargetTemp  *float64 `json:"target_temp_c,omitempty"`
	Mode        *string  `json:"mode,omitempty"`
	Preset      *string  `json:"preset,omitempty"`

	EcoTemp     *float64 `json:"eco_temp_c,omitempty"`
	ComfortTemp *float64 `json:"comfort_temp_c,omitempty"`
	IceTemp     *float64 `json:"ice_temp_c,omitempty"`

	Schedule *scheduleJSON `json:"schedule,omitempty"`

	FirmwareVersion   *string  `json:"firmware_version,omitempty"`
	FirmwareUpdate    *bool    `json:"firmware_update_available,omitempty"`
	EnergyTotalKWh    *float64 `json:"energy_total_kwh,omitempty"`
	PowerInstantWatts *float64 `json:"power_instant_w,omitempty"`
}

func (u updateJSON) toPartial() models.PartialUpdate {
	out := models.PartialUpdate{
		Name:                    u.Name,
		Power:                   u.Power,
		CurrentTemperature:      u.CurrentTemp,
		TargetTemperature:       u.TargetTemp,
		EcoTemp:                 u.EcoTemp,
		ComfortTemp:             u.ComfortTemp,
		IceTemp:                 u.IceTemp,
		FirmwareVersion:         u.FirmwareVersion,
		FirmwareUpdateAvailable: u.FirmwareUpdate,
		EnergyTotalKWh:          u.EnergyTotalKWh,
		PowerInstantW:           u.PowerInstantWatts,
	}
	if u.Class != nil {
		c := models.ProductClass(*u.Class)
		out.Class = &c
	}
	if u.Mode != nil {
		m := models.Mode(*u.Mode)
		out.Mode = &m
	}
	if u.Preset != nil {
		p := models.Preset(*u.Preset)
		out.Preset = &p
	}
	if u.Schedule != nil {
		sched := u.Schedule.toModel()
		out.Schedule = &sched
	}
	return out
}

// commandJSON is the outbound command envelope shared by every channel.
type commandJSON struct {
	CorrelationID string    `json:"correlation_id"`
	DeviceID      string    `json:"device_id"`
	Field         string    `json:"field"`
	Temperature   float64   `json:"temperature,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	Preset        string    `json:"preset,omitempty"`
	Power         bool      `json:"power"`
	IssuedAt      time.Time `json:"issued_at"`
}

func commandToJSON(cmd models.Command) commandJSON {
	return commandJSON{
		CorrelationID: cmd.CorrelationID,
		DeviceID:      cmd.DeviceID,
		Field:         string(cmd.Field),
		Temperature:   cmd.Temperature,
		Mode:          string(cmd.Mode),
		Preset:        string(cmd.Preset),
		Power:         cmd.Power,
		IssuedAt:      cmd.IssuedAt.UTC(),
	}
}
