package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"climate_hub/internal/models"
)

// MQTT topic layout: state deltas arrive on <prefix>/<deviceID>/state,
// commands are published to <prefix>/<deviceID>/cmd.
const (
	mqttConnectWait   = 15 * time.Second
	mqttPublishWait   = 10 * time.Second
	mqttUpdateBacklog = 64
)

// MQTTRealtime is the broker-based alternative to the websocket push
// transport, for installations that bridge the fleet through MQTT.
type MQTTRealtime struct {
	broker      string
	clientID    string
	topicPrefix string
}

// NewMQTTRealtime builds an MQTT realtime transport.
func NewMQTTRealtime(broker, clientID, topicPrefix string) *MQTTRealtime {
	return &MQTTRealtime{broker: broker, clientID: clientID, topicPrefix: topicPrefix}
}

// Connect establishes the broker session, authenticating with the
// upstream token. Auto-reconnect is off: the push channel owns the
// reconnect state machine and must see the drop.
func (m *MQTTRealtime) Connect(ctx context.Context, tok Token) (Stream, error) {
	s := &mqttStream{
		prefix:  m.topicPrefix,
		updates: make(chan Update, mqttUpdateBacklog),
		closed:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.broker)
	opts.SetClientID(m.clientID)
	opts.SetUsername(tok.Value)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.fail(fmt.Errorf("%w: %v", models.ErrStreamClosed, err))
	})

	client := mqtt.NewClient(opts)
	t := client.Connect()
	if !t.WaitTimeout(mqttConnectWait) {
		return nil, fmt.Errorf("%w: broker connect timeout", models.ErrStreamClosed)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", m.broker, err)
	}

	s.client = client
	return s, nil
}

type mqttStream struct {
	client  mqtt.Client
	prefix  string
	updates chan Update

	mu      sync.Mutex
	err     error
	closed  chan struct{}
	isClose bool
}

func (s *mqttStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClose {
		return
	}
	s.err = err
	s.isClose = true
	close(s.closed)
}

// Subscribe attaches to each device's state topic.
func (s *mqttStream) Subscribe(ctx context.Context, deviceIDs []string) error {
	for _, id := range deviceIDs {
		deviceID := id
		topic := fmt.Sprintf("%s/%s/state", s.prefix, deviceID)
		t := s.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			s.handleMessage(deviceID, msg.Payload())
		})
		if !t.WaitTimeout(mqttConnectWait) || t.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, firstErr(t.Error(), models.ErrStreamClosed))
		}
	}
	return nil
}

func (s *mqttStream) handleMessage(deviceID string, payload []byte) {
	var frame struct {
		TS   *time.Time `json:"ts,omitempty"`
		Data updateJSON `json:"data"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return // malformed payload, skip
	}
	upd := Update{DeviceID: deviceID, Fields: frame.Data.toPartial()}
	if frame.TS != nil {
		upd.Timestamp = frame.TS.UTC()
	}
	select {
	case s.updates <- upd:
	default:
		// Backlog full: drop the delta, the poll channel and the next
		// resync recover any missed state.
	}
}

// Next blocks for the next update or stream failure.
func (s *mqttStream) Next(ctx context.Context) (Update, error) {
	select {
	case <-ctx.Done():
		return Update{}, ctx.Err()
	case <-s.closed:
		return Update{}, s.closeErr()
	case upd := <-s.updates:
		return upd, nil
	}
}

// Send publishes a command to the device's command topic.
func (s *mqttStream) Send(ctx context.Context, cmd models.Command) error {
	payload, err := json.Marshal(commandToJSON(cmd))
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/cmd", s.prefix, cmd.DeviceID)
	t := s.client.Publish(topic, 1, false, payload)
	if !t.WaitTimeout(mqttPublishWait) {
		return fmt.Errorf("%w: publish timeout", models.ErrStreamClosed)
	}
	return t.Error()
}

func (s *mqttStream) Close() error {
	s.fail(models.ErrStreamClosed)
	s.client.Disconnect(250)
	return nil
}

func (s *mqttStream) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return models.ErrStreamClosed
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
