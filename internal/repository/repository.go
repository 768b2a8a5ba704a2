// Package repository persists the hub's durable leftovers: last-known
// device snapshots for warm starts and the append-only event log. The
// live device table stays in memory; sqlite only has to survive
// restarts.
package repository

import (
	"context"
	"database/sql"
	"time"

	"climate_hub/internal/models"
)

// DeviceRepo stores last-known device snapshots.
type DeviceRepo interface {
	Save(ctx context.Context, dev models.Device) error
	LoadAll(ctx context.Context) ([]models.Device, error)
}

// EventRepo is the append-only audit log.
type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

// Repository bundles the sqlite-backed repos.
type Repository struct {
	Devices DeviceRepo
	Events  EventRepo
}

// NewRepository wires the concrete sqlite repos.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Devices: NewDeviceSQLite(db),
		Events:  NewEventSQLite(db),
	}
}
