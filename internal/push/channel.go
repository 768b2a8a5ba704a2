// Package push owns the realtime connection lifecycle: the connection
// state machine, exponential reconnect backoff, the post-connect resync
// and the inbound message pump feeding the device store.
package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"climate_hub/internal/availability"
	"climate_hub/internal/logger"
	"climate_hub/internal/models"
	"climate_hub/internal/store"
	"climate_hub/internal/transport"
)

// State of the push connection. Owned exclusively by this package; the
// store never mutates it.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateAuthenticated State = "authenticated"
	StateStreaming     State = "streaming"
	StateReconnecting  State = "reconnecting"
)

// EventSink receives connection transition events for the audit log.
type EventSink interface {
	Append(ctx context.Context, e models.Event) error
}

// Config tunes the connection loop.
type Config struct {
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BackoffFactor float64
	BackoffJitter float64

	// HealthyAfter is the streaming duration after which the backoff
	// schedule resets to its base delay.
	HealthyAfter time.Duration
}

const defaultHealthyAfter = 30 * time.Second

// Channel runs the push side of the dual-channel ingestion. One
// long-lived goroutine owns it; blocking I/O never happens on a
// caller's read path.
type Channel struct {
	tokens   *transport.TokenSource
	realtime transport.Realtime
	rest     transport.REST
	store    *store.DeviceStore
	tracker  *availability.Tracker
	events   EventSink
	log      *logger.Logger
	cfg      Config

	mu     sync.RWMutex
	state  State
	stream transport.Stream
}

// New wires a push channel. events may be nil.
func New(tokens *transport.TokenSource, realtime transport.Realtime, rest transport.REST,
	st *store.DeviceStore, tracker *availability.Tracker, events EventSink,
	log *logger.Logger, cfg Config) *Channel {

	if cfg.HealthyAfter <= 0 {
		cfg.HealthyAfter = defaultHealthyAfter
	}
	return &Channel{
		tokens:   tokens,
		realtime: realtime,
		rest:     rest,
		store:    st,
		tracker:  tracker,
		events:   events,
		log:      log,
		cfg:      cfg,
		state:    StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send forwards a command over the active stream. Fails fast when the
// channel is not streaming; the dispatcher decides what to do with that.
func (c *Channel) Send(ctx context.Context, cmd models.Command) error {
	c.mu.RLock()
	stream, state := c.stream, c.state
	c.mu.RUnlock()

	if state != StateStreaming || stream == nil {
		return models.ErrStreamClosed
	}
	return stream.Send(ctx, cmd)
}

// Run drives the connection state machine until ctx is canceled.
// Connection drops never remove or invalidate store records; the
// availability tracker decides staleness from merge recency.
func (c *Channel) Run(ctx context.Context) {
	backoff := NewBackoff(c.cfg.BackoffBase, c.cfg.BackoffMax, c.cfg.BackoffFactor, c.cfg.BackoffJitter)

	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		streamed, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if err != nil {
			c.log.Infow("push channel dropped", "err", err, "attempt", backoff.Attempt())
		}

		if streamed >= c.cfg.HealthyAfter {
			backoff.Reset()
		}

		c.setState(StateReconnecting)
		delay := backoff.Next()
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}
	}
}

// connectOnce runs a single Connecting -> Streaming -> drop cycle and
// returns how long the stream stayed up.
func (c *Channel) connectOnce(ctx context.Context) (time.Duration, error) {
	c.setState(StateConnecting)

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}
	c.setState(StateAuthenticated)

	stream, err := c.realtime.Connect(ctx, tok)
	if err != nil {
		if errors.Is(err, models.ErrAuthExpired) {
			c.tokens.Invalidate()
		}
		return 0, err
	}
	defer func() { _ = stream.Close() }()

	ids, err := c.deviceIDs(ctx, tok)
	if err != nil {
		return 0, err
	}
	if err := stream.Subscribe(ctx, ids); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stream = nil
		c.mu.Unlock()
	}()

	c.setState(StateStreaming)
	started := time.Now()

	// Delta messages alone cannot make the view consistent after a gap:
	// fetch a full snapshot of every device first.
	c.resync(ctx, ids, tok)

	for {
		upd, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, models.ErrAuthExpired) {
				c.tokens.Invalidate()
			}
			return time.Since(started), err
		}
		ts := upd.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if c.store.Merge(upd.DeviceID, upd.Fields, models.SourcePush, ts) {
			c.tracker.RecordSuccess(upd.DeviceID)
		}
	}
}

// deviceIDs returns the account's device set, preferring the upstream
// listing and falling back to what the store already knows.
func (c *Channel) deviceIDs(ctx context.Context, tok transport.Token) ([]string, error) {
	ids, err := c.rest.ListDeviceIDs(ctx, tok)
	if err == nil && len(ids) > 0 {
		return ids, nil
	}
	known := c.store.All()
	if len(known) == 0 {
		return nil, err
	}
	out := make([]string, 0, len(known))
	for _, dev := range known {
		out = append(out, dev.ID)
	}
	return out, nil
}

// resync merges a full snapshot per device to cover updates missed
// while disconnected. Individual fetch failures are skipped; the poll
// channel retries them on its own cadence.
func (c *Channel) resync(ctx context.Context, ids []string, tok transport.Token) {
	for _, id := range ids {
		dev, err := c.rest.FetchDevice(ctx, id, tok)
		if err != nil {
			c.log.Debugw("resync fetch failed", "device", id, "err", err)
			continue
		}
		c.store.Merge(id, models.SnapshotUpdate(dev), models.SourcePush, time.Now().UTC())
		c.tracker.RecordSuccess(id)
	}
}

// setState records a transition and appends it to the event log.
func (c *Channel) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev == next {
		return
	}
	c.log.Debugw("push state", "from", prev, "to", next)
	if c.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.events.Append(ctx, models.Event{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Type:        models.EventConnection,
			Description: "push channel " + string(prev) + " -> " + string(next),
		})
	}
}
