// Package transport defines the abstract contracts for the upstream
// collaborators (auth, realtime stream, REST, device catalog) and
// provides websocket, MQTT and HTTP implementations plus in-package
// fakes for tests. Wire formats here are the hub's own neutral JSON;
// vendor encodings live behind these interfaces.
package transport

import (
	"context"
	"time"

	"climate_hub/internal/models"
)

// Credentials for the upstream account.
type Credentials struct {
	Username string
	Password string
}

// Token is an upstream access token with its refresh companion.
type Token struct {
	Value        string
	RefreshValue string
	ExpiresAt    time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// NearExpiry reports whether the token expires within margin of now.
// Channels refresh proactively instead of waiting for a 401.
func (t Token) NearExpiry(now time.Time, margin time.Duration) bool {
	return !t.ExpiresAt.IsZero() && now.Add(margin).After(t.ExpiresAt)
}

// AuthProvider exchanges credentials for tokens and refreshes them.
type AuthProvider interface {
	Authenticate(ctx context.Context, creds Credentials) (Token, error)
	Refresh(ctx context.Context, tok Token) (Token, error)
}

// Update is one inbound state change from a channel. A zero Timestamp
// means the message carried none and the receiver should use receipt
// time.
type Update struct {
	DeviceID  string
	Fields    models.PartialUpdate
	Timestamp time.Time
}

// Stream is an open realtime connection.
type Stream interface {
	// Subscribe performs the handshake for the account's device set.
	Subscribe(ctx context.Context, deviceIDs []string) error
	// Next blocks for the next inbound update. Returns
	// models.ErrStreamClosed once the stream is gone and
	// models.ErrAuthExpired when the upstream rejects the token.
	Next(ctx context.Context) (Update, error)
	// Send forwards a command over the stream.
	Send(ctx context.Context, cmd models.Command) error
	Close() error
}

// Realtime opens push streams.
type Realtime interface {
	Connect(ctx context.Context, tok Token) (Stream, error)
}

// REST is the request/response collaborator used by the poll channel,
// the push channel's resync and legacy-class command delivery.
type REST interface {
	ListDeviceIDs(ctx context.Context, tok Token) ([]string, error)
	FetchDevice(ctx context.Context, deviceID string, tok Token) (models.Device, error)
	SendCommand(ctx context.Context, deviceID string, tok Token, cmd models.Command) error
}

// Catalog supplies per-device capability bounds, read-only to this core.
type Catalog interface {
	Capabilities(ctx context.Context, deviceID string) (models.Capabilities, error)
}
