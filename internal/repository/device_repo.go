package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"climate_hub/internal/models"
)

// DeviceSQLite persists last-known device snapshots, one row per device.
type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite {
	return &DeviceSQLite{db: db}
}

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	upsertDeviceSQL = `
		INSERT INTO device_state (
			id, name, class, power, current_temp_c, target_temp_c, mode, preset,
			eco_temp_c, comfort_temp_c, ice_temp_c, schedule, connection_source,
			firmware_version, firmware_update, energy_total_kwh, power_instant_w, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			class=excluded.class,
			power=excluded.power,
			current_temp_c=excluded.current_temp_c,
			target_temp_c=excluded.target_temp_c,
			mode=excluded.mode,
			preset=excluded.preset,
			eco_temp_c=excluded.eco_temp_c,
			comfort_temp_c=excluded.comfort_temp_c,
			ice_temp_c=excluded.ice_temp_c,
			schedule=excluded.schedule,
			connection_source=excluded.connection_source,
			firmware_version=excluded.firmware_version,
			firmware_update=excluded.firmware_update,
			energy_total_kwh=excluded.energy_total_kwh,
			power_instant_w=excluded.power_instant_w,
			last_updated=excluded.last_updated
	`

	selectDevicesSQL = `
		SELECT id, name, class, power, current_temp_c, target_temp_c, mode, preset,
			eco_temp_c, comfort_temp_c, ice_temp_c, schedule, connection_source,
			firmware_version, firmware_update, energy_total_kwh, power_instant_w, last_updated
		FROM device_state
	`
)

// Save upserts the whole record. The schedule goes in as JSON; it is
// read-only reference data, never queried field-by-field.
func (r *DeviceSQLite) Save(ctx context.Context, dev models.Device) error {
	schedJSON, err := json.Marshal(dev.Schedule)
	if err != nil {
		return err
	}

	ts := dev.LastUpdated
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.ExecContext(ctx, upsertDeviceSQL,
		dev.ID,
		dev.Name,
		string(dev.Class),
		dev.Power,
		dev.CurrentTemperature,
		dev.TargetTemperature,
		string(dev.Mode),
		string(dev.Preset),
		dev.EcoTemp,
		dev.ComfortTemp,
		dev.IceTemp,
		string(schedJSON),
		string(dev.ConnectionSource),
		dev.FirmwareVersion,
		dev.FirmwareUpdateAvailable,
		dev.EnergyTotalKWh,
		dev.PowerInstantW,
		ts.UTC(),
	)
	return err
}

// LoadAll returns every persisted snapshot, for warm-starting the store.
func (r *DeviceSQLite) LoadAll(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		var (
			dev       models.Device
			class     string
			mode      string
			preset    string
			source    string
			schedJSON sql.NullString
			firmware  sql.NullString
		)
		if err := rows.Scan(
			&dev.ID,
			&dev.Name,
			&class,
			&dev.Power,
			&dev.CurrentTemperature,
			&dev.TargetTemperature,
			&mode,
			&preset,
			&dev.EcoTemp,
			&dev.ComfortTemp,
			&dev.IceTemp,
			&schedJSON,
			&source,
			&firmware,
			&dev.FirmwareUpdateAvailable,
			&dev.EnergyTotalKWh,
			&dev.PowerInstantW,
			&dev.LastUpdated,
		); err != nil {
			return nil, err
		}
		dev.Class = models.ProductClass(class)
		dev.Mode = models.Mode(mode)
		dev.Preset = models.Preset(preset)
		dev.ConnectionSource = models.Source(source)
		dev.FirmwareVersion = firmware.String
		dev.LastUpdated = dev.LastUpdated.UTC()

		if schedJSON.Valid && schedJSON.String != "" {
			var sched models.Schedule
			if err := json.Unmarshal([]byte(schedJSON.String), &sched); err == nil {
				dev.Schedule = sched
			}
		}
		out = append(out, dev)
	}
	return out, rows.Err()
}
