// Package service composes the reconciliation core into the narrow
// surfaces the handlers consume: reads, command dispatch, the event log
// and operator auth for the local API.
package service

import (
	"context"
	"time"

	"climate_hub/internal/availability"
	"climate_hub/internal/dispatch"
	"climate_hub/internal/models"
	"climate_hub/internal/push"
	"climate_hub/internal/repository"
	"climate_hub/internal/store"
)

// Monitoring exposes read-only device state and derived display state.
type Monitoring interface {
	ListDevices() []models.Device
	GetDevice(id string) (models.Device, error)
	DisplayState(id string) (models.DisplayState, error)
	ConnectionState() push.State
	// Subscribe registers a callback for accepted merges; the returned
	// function cancels it. Callbacks must not block.
	Subscribe(fn func(models.Device)) func()
}

// Commands accepts user intents and reports their outcomes.
type Commands interface {
	Dispatch(ctx context.Context, cmd models.Command) (*dispatch.Receipt, error)
	Status(correlationID string) (models.CommandStatus, bool)
}

// EventLog exposes the append-only audit log with filtering access.
type EventLog interface {
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

// Authorization issues and validates tokens for the local API.
type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Service aggregates all sub-services.
type Service struct {
	Monitoring
	Commands
	EventLog
	Authorization
}

// NewService wires the core components into concrete services.
func NewService(st *store.DeviceStore, tracker *availability.Tracker, pushCh *push.Channel,
	d *dispatch.Dispatcher, repos *repository.Repository, authCfg AuthConfig) *Service {
	return &Service{
		Monitoring:    NewMonitoringService(st, tracker, pushCh),
		Commands:      NewCommandService(d),
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(authCfg),
	}
}
