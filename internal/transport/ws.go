package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"climate_hub/internal/models"
)

// Timing for the realtime socket. A connection that misses heartbeats
// for longer than heartbeatWait is treated as dead and surfaced to the
// push channel as a stream error.
const (
	wsWriteWait     = 10 * time.Second
	heartbeatWait   = 90 * time.Second
	wsHandshakeWait = 15 * time.Second
)

// WSRealtime opens websocket streams to the cloud's push endpoint.
type WSRealtime struct {
	url    string
	dialer *websocket.Dialer
}

// NewWSRealtime builds a websocket realtime transport for the given URL.
func NewWSRealtime(url string) *WSRealtime {
	return &WSRealtime{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeWait,
		},
	}
}

// Connect dials the push endpoint with bearer auth.
func (w *WSRealtime) Connect(ctx context.Context, tok Token) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok.Value)

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, models.ErrAuthExpired
		}
		return nil, fmt.Errorf("dial %s: %w", w.url, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(heartbeatWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(heartbeatWait))

	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

// wsEnvelope is the inbound message frame.
type wsEnvelope struct {
	Type     string      `json:"type"` // update | subscribed | error
	DeviceID string      `json:"device_id,omitempty"`
	TS       *time.Time  `json:"ts,omitempty"`
	Data     *updateJSON `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Subscribe sends the handshake for the account's device set and waits
// for the ack frame.
func (s *wsStream) Subscribe(ctx context.Context, deviceIDs []string) error {
	req := map[string]any{"type": "subscribe", "devices": deviceIDs}
	if err := s.writeJSON(req); err != nil {
		return err
	}

	for {
		env, err := s.readEnvelope(ctx)
		if err != nil {
			return err
		}
		switch env.Type {
		case "subscribed":
			return nil
		case "error":
			return fmt.Errorf("subscribe rejected: %s", env.Error)
		default:
			// Updates may already race in before the ack; drop them,
			// the resync snapshot covers the gap.
		}
	}
}

// Next blocks for the next device update.
func (s *wsStream) Next(ctx context.Context) (Update, error) {
	for {
		env, err := s.readEnvelope(ctx)
		if err != nil {
			return Update{}, err
		}
		if env.Type != "update" || env.DeviceID == "" || env.Data == nil {
			continue
		}
		upd := Update{
			DeviceID: env.DeviceID,
			Fields:   env.Data.toPartial(),
		}
		if env.TS != nil {
			upd.Timestamp = env.TS.UTC()
		}
		return upd, nil
	}
}

// Send forwards a command over the socket.
func (s *wsStream) Send(ctx context.Context, cmd models.Command) error {
	return s.writeJSON(map[string]any{
		"type":    "command",
		"command": commandToJSON(cmd),
	})
}

func (s *wsStream) Close() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *wsStream) writeJSON(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStreamClosed, err)
	}
	return nil
}

func (s *wsStream) readEnvelope(ctx context.Context) (wsEnvelope, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return wsEnvelope{}, models.ErrAuthExpired
		}
		return wsEnvelope{}, fmt.Errorf("%w: %v", models.ErrStreamClosed, err)
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(heartbeatWait))

	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Malformed frame: a protocol error, not a dead socket, but the
		// channel reconnects either way to get back to a known state.
		return wsEnvelope{}, errors.Join(models.ErrStreamClosed, err)
	}
	return env, nil
}
