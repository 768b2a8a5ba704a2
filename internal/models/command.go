package models

import "time"

// CommandField names the device field a command changes.
type CommandField string

const (
	FieldTemperature CommandField = "temperature"
	FieldMode        CommandField = "mode"
	FieldPreset      CommandField = "preset"
	FieldPower       CommandField = "power"
)

// CommandStatus is the lifecycle of a dispatched command. A command is
// resolved exactly once: confirmed by an authoritative echo, failed on
// timeout, or rejected up front as invalid.
type CommandStatus string

const (
	StatusPending   CommandStatus = "pending"
	StatusConfirmed CommandStatus = "confirmed"
	StatusFailed    CommandStatus = "failed"
	StatusInvalid   CommandStatus = "invalid"
)

// Command is a user-issued intent. Exactly one of the value fields is
// meaningful, selected by Field. Immutable once dispatched.
type Command struct {
	CorrelationID string       `json:"correlation_id"`
	DeviceID      string       `json:"device_id"`
	Field         CommandField `json:"field"`

	Temperature float64 `json:"temperature,omitempty"`
	Mode        Mode    `json:"mode,omitempty"`
	Preset      Preset  `json:"preset,omitempty"`
	Power       bool    `json:"power,omitempty"`

	IssuedAt time.Time `json:"issued_at"`
}

// Event is a single append-only log entry: connection transitions and
// command resolutions.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // CONNECTION | COMMAND
	DeviceID    string    `json:"device_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// Event types.
const (
	EventConnection = "CONNECTION"
	EventCommand    = "COMMAND"
)
