package service

import (
	"context"
	"time"

	"climate_hub/internal/models"
	"climate_hub/internal/repository"
)

// EventLogService exposes the audit log to readers.
type EventLogService struct {
	events repository.EventRepo
}

func NewEventLogService(events repository.EventRepo) *EventLogService {
	return &EventLogService{events: events}
}

// List returns events in [from, to], optionally filtered by type.
func (s *EventLogService) List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error) {
	return s.events.List(ctx, from, to, typ)
}
