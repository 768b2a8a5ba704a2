// Package dispatch turns user intents into optimistic store writes and
// upstream commands, and resolves each command exactly once: confirmed
// by an authoritative echo, or failed after a bounded timeout.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"climate_hub/internal/logger"
	"climate_hub/internal/models"
	"climate_hub/internal/store"
	"climate_hub/internal/transport"
)

// DefaultConfirmTimeout bounds how long a dispatched command may stay
// pending before it is resolved Failed.
const DefaultConfirmTimeout = 20 * time.Second

// tempEpsilon is the tolerance for matching a confirmed temperature echo.
const tempEpsilon = 0.01

// StreamSender delivers commands over the realtime channel; the push
// channel satisfies it.
type StreamSender interface {
	Send(ctx context.Context, cmd models.Command) error
}

// EventSink receives command resolution events for the audit log.
type EventSink interface {
	Append(ctx context.Context, e models.Event) error
}

// Config tunes the dispatcher.
type Config struct {
	ConfirmTimeout time.Duration
}

// Receipt tracks one dispatched command until it is resolved.
type Receipt struct {
	Command models.Command

	mu     sync.Mutex
	status models.CommandStatus
	done   chan struct{}
	timer  *time.Timer
}

// Status returns the command's current lifecycle state.
func (r *Receipt) Status() models.CommandStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Done is closed once the command is resolved.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the command resolves or ctx expires, returning the
// status either way. The dispatcher's own timeout bounds the wait.
func (r *Receipt) Wait(ctx context.Context) models.CommandStatus {
	select {
	case <-ctx.Done():
	case <-r.done:
	}
	return r.Status()
}

// arm starts the confirmation timeout unless already resolved.
func (r *Receipt) arm(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.StatusPending {
		return
	}
	r.timer = time.AfterFunc(d, fn)
}

// resolve transitions to a terminal status once; later calls no-op.
func (r *Receipt) resolve(status models.CommandStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.StatusPending {
		return false
	}
	r.status = status
	if r.timer != nil {
		r.timer.Stop()
	}
	close(r.done)
	return true
}

// Dispatcher validates, optimistically applies and forwards commands.
type Dispatcher struct {
	store   *store.DeviceStore
	catalog transport.Catalog
	stream  StreamSender
	rest    transport.REST
	tokens  *transport.TokenSource
	events  EventSink
	log     *logger.Logger
	cfg     Config

	mu       sync.Mutex
	pending  map[string]*Receipt
	resolved map[string]*Receipt
	order    []string // resolution order, for bounded eviction

	cancelSub func()
}

// resolvedKeep bounds how many resolved receipts stay queryable.
const resolvedKeep = 256

// New wires a dispatcher and registers its confirmation watcher on the
// store. Call Close on shutdown.
func New(st *store.DeviceStore, catalog transport.Catalog, stream StreamSender,
	rest transport.REST, tokens *transport.TokenSource, events EventSink,
	log *logger.Logger, cfg Config) *Dispatcher {

	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	d := &Dispatcher{
		store:    st,
		catalog:  catalog,
		stream:   stream,
		rest:     rest,
		tokens:   tokens,
		events:   events,
		log:      log,
		cfg:      cfg,
		pending:  make(map[string]*Receipt),
		resolved: make(map[string]*Receipt),
	}
	d.cancelSub = st.Subscribe(d.onMerge)
	return d
}

// Close cancels the store subscription and fails whatever is pending.
func (d *Dispatcher) Close() {
	d.cancelSub()

	d.mu.Lock()
	receipts := make([]*Receipt, 0, len(d.pending))
	for _, r := range d.pending {
		receipts = append(receipts, r)
	}
	d.pending = make(map[string]*Receipt)
	d.mu.Unlock()

	for _, r := range receipts {
		r.resolve(models.StatusFailed)
	}
}

// Dispatch validates the command, applies an optimistic merge so the
// control surface reflects the change instantly, and forwards it to the
// channel authoritative for the device class. The returned receipt
// resolves exactly once; on timeout the optimistic value stays in place
// (reverting would flash a value the user never asked for) and the
// failure is only flagged on the receipt.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd models.Command) (*Receipt, error) {
	dev, ok := d.store.Read(cmd.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDeviceNotFound, cmd.DeviceID)
	}

	caps, err := d.catalog.Capabilities(ctx, cmd.DeviceID)
	if err != nil {
		return nil, err // ErrUpstreamUnavailable: cannot validate safely
	}

	cmd, err = normalize(cmd, caps)
	if err != nil {
		return nil, err
	}

	r := &Receipt{
		Command: cmd,
		status:  models.StatusPending,
		done:    make(chan struct{}),
	}
	// Registered before the optimistic write so an immediate
	// authoritative echo cannot slip past the watcher.
	d.mu.Lock()
	d.pending[cmd.CorrelationID] = r
	d.mu.Unlock()

	// Optimistic write, superseded naturally by any newer authoritative
	// merge thanks to the store's timestamp rule.
	d.store.Merge(cmd.DeviceID, optimisticUpdate(cmd, dev), models.SourceOptimistic, cmd.IssuedAt)
	r.arm(d.cfg.ConfirmTimeout, func() {
		d.finish(r, models.StatusFailed, "confirmation timeout")
	})

	if err := d.forward(ctx, dev, cmd); err != nil {
		d.log.Infow("command forward failed", "device", cmd.DeviceID, "err", err)
		d.finish(r, models.StatusFailed, "delivery failed: "+err.Error())
		return r, nil
	}
	return r, nil
}

// forward routes the command: nexa-class devices over the realtime
// stream, legacy devices over REST.
func (d *Dispatcher) forward(ctx context.Context, dev models.Device, cmd models.Command) error {
	if dev.Class == models.ClassNexa {
		return d.stream.Send(ctx, cmd)
	}
	tok, err := d.tokens.Token(ctx)
	if err != nil {
		return err
	}
	return d.rest.SendCommand(ctx, cmd.DeviceID, tok, cmd)
}

// onMerge watches accepted merges for authoritative echoes of pending
// commands. The store's timestamp rule already reconciled the record;
// this only resolves the receipt.
func (d *Dispatcher) onMerge(dev models.Device) {
	if dev.ConnectionSource != models.SourcePush && dev.ConnectionSource != models.SourcePoll {
		return
	}

	d.mu.Lock()
	var matched []*Receipt
	for _, r := range d.pending {
		if r.Command.DeviceID != dev.ID {
			continue
		}
		if dev.LastUpdated.Before(r.Command.IssuedAt) {
			continue
		}
		if reflectsCommand(dev, r.Command) {
			matched = append(matched, r)
		}
	}
	d.mu.Unlock()

	for _, r := range matched {
		d.finish(r, models.StatusConfirmed, "confirmed by "+string(dev.ConnectionSource))
	}
}

// finish resolves a receipt once and logs the outcome.
func (d *Dispatcher) finish(r *Receipt, status models.CommandStatus, reason string) {
	if !r.resolve(status) {
		return
	}

	d.mu.Lock()
	id := r.Command.CorrelationID
	delete(d.pending, id)
	d.resolved[id] = r
	d.order = append(d.order, id)
	for len(d.order) > resolvedKeep {
		delete(d.resolved, d.order[0])
		d.order = d.order[1:]
	}
	d.mu.Unlock()

	d.log.Debugw("command resolved",
		"correlation_id", r.Command.CorrelationID,
		"device", r.Command.DeviceID,
		"status", status,
		"reason", reason)

	if d.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.events.Append(ctx, models.Event{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Type:        models.EventCommand,
			DeviceID:    r.Command.DeviceID,
			Description: reason,
			Metadata: map[string]any{
				"correlation_id": r.Command.CorrelationID,
				"field":          r.Command.Field,
				"status":         status,
			},
		})
	}
}

// Lookup returns the receipt for a correlation ID, pending or recently
// resolved.
func (d *Dispatcher) Lookup(correlationID string) (*Receipt, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.pending[correlationID]; ok {
		return r, true
	}
	r, ok := d.resolved[correlationID]
	return r, ok
}

// normalize validates a command against capabilities, fills in the
// correlation ID and timestamp, and rounds temperatures to the device
// step. Violations are ErrInvalidCommand with no side effect.
func normalize(cmd models.Command, caps models.Capabilities) (models.Command, error) {
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	cmd.IssuedAt = cmd.IssuedAt.UTC()

	switch cmd.Field {
	case models.FieldTemperature:
		step := caps.Step
		if step <= 0 {
			step = transport.DefaultTempStep
		}
		cmd.Temperature = math.Round(cmd.Temperature/step) * step
		if cmd.Temperature < caps.MinTemp || cmd.Temperature > caps.MaxTemp {
			return cmd, fmt.Errorf("%w: temperature %.1f outside [%.1f, %.1f]",
				models.ErrInvalidCommand, cmd.Temperature, caps.MinTemp, caps.MaxTemp)
		}
	case models.FieldMode:
		if !caps.SupportsMode(cmd.Mode) {
			return cmd, fmt.Errorf("%w: unsupported mode %q", models.ErrInvalidCommand, cmd.Mode)
		}
	case models.FieldPreset:
		if !caps.SupportsPreset(cmd.Preset) {
			return cmd, fmt.Errorf("%w: unsupported preset %q", models.ErrInvalidCommand, cmd.Preset)
		}
	case models.FieldPower:
		// Always valid.
	default:
		return cmd, fmt.Errorf("%w: unknown field %q", models.ErrInvalidCommand, cmd.Field)
	}
	return cmd, nil
}

// optimisticUpdate builds the local mutation for a command. A manual
// temperature change also drops the device out of auto, mirroring what
// the upstream does when it applies the setpoint.
func optimisticUpdate(cmd models.Command, dev models.Device) models.PartialUpdate {
	var upd models.PartialUpdate
	switch cmd.Field {
	case models.FieldTemperature:
		manual := models.ModeManual
		manualPreset := models.PresetManual
		upd.TargetTemperature = &cmd.Temperature
		upd.Mode = &manual
		upd.Preset = &manualPreset
	case models.FieldMode:
		upd.Mode = &cmd.Mode
		if cmd.Mode == models.ModeOff {
			off := false
			upd.Power = &off
		} else {
			on := true
			upd.Power = &on
		}
	case models.FieldPreset:
		upd.Preset = &cmd.Preset
		if target := presetSetpoint(cmd.Preset, dev); target > 0 {
			upd.TargetTemperature = &target
		}
	case models.FieldPower:
		upd.Power = &cmd.Power
	}
	return upd
}

func presetSetpoint(p models.Preset, dev models.Device) float64 {
	switch p {
	case models.PresetEco:
		return dev.EcoTemp
	case models.PresetComfort:
		return dev.ComfortTemp
	case models.PresetNone:
		return dev.IceTemp
	default:
		return 0
	}
}

// reflectsCommand reports whether an authoritative record echoes the
// commanded value (or a newer equivalent).
func reflectsCommand(dev models.Device, cmd models.Command) bool {
	switch cmd.Field {
	case models.FieldTemperature:
		return math.Abs(dev.TargetTemperature-cmd.Temperature) < tempEpsilon
	case models.FieldMode:
		if cmd.Mode == models.ModeOff {
			return !dev.Power || dev.Mode == models.ModeOff
		}
		return dev.Mode == cmd.Mode
	case models.FieldPreset:
		return dev.Preset == cmd.Preset
	case models.FieldPower:
		return dev.Power == cmd.Power
	default:
		return false
	}
}
