package service

import (
	"context"

	"climate_hub/internal/dispatch"
	"climate_hub/internal/models"
)

// CommandService fronts the dispatcher.
type CommandService struct {
	dispatcher *dispatch.Dispatcher
}

func NewCommandService(d *dispatch.Dispatcher) *CommandService {
	return &CommandService{dispatcher: d}
}

// Dispatch forwards the intent to the dispatcher.
func (s *CommandService) Dispatch(ctx context.Context, cmd models.Command) (*dispatch.Receipt, error) {
	return s.dispatcher.Dispatch(ctx, cmd)
}

// Status looks up a command's lifecycle state by correlation ID.
func (s *CommandService) Status(correlationID string) (models.CommandStatus, bool) {
	r, ok := s.dispatcher.Lookup(correlationID)
	if !ok {
		return "", false
	}
	return r.Status(), true
}
