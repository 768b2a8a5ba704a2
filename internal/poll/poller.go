// Package poll is the fallback ingestion channel: a periodic full
// snapshot fetch per device over REST, merged into the store with the
// fetch time as the record clock.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"climate_hub/internal/availability"
	"climate_hub/internal/logger"
	"climate_hub/internal/models"
	"climate_hub/internal/store"
	"climate_hub/internal/transport"
)

// Defaults for the polling cadence and upstream fan-out.
const (
	DefaultInterval    = time.Minute
	DefaultConcurrency = 4
)

// Config tunes the poller.
type Config struct {
	// Interval between polling cycles.
	Interval time.Duration
	// Concurrency bounds parallel fetches within a cycle to respect
	// upstream rate limits.
	Concurrency int
}

// Poller fetches device snapshots on a timer. One instance per account.
type Poller struct {
	tokens  *transport.TokenSource
	rest    transport.REST
	store   *store.DeviceStore
	tracker *availability.Tracker
	log     *logger.Logger
	cfg     Config

	mu       sync.Mutex
	inflight map[string]bool
}

// New wires a poller.
func New(tokens *transport.TokenSource, rest transport.REST, st *store.DeviceStore,
	tracker *availability.Tracker, log *logger.Logger, cfg Config) *Poller {

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Poller{
		tokens:   tokens,
		rest:     rest,
		store:    st,
		tracker:  tracker,
		log:      log,
		cfg:      cfg,
		inflight: make(map[string]bool),
	}
}

// Run ticks until ctx is canceled. The first cycle starts immediately
// so the store has data before the first interval elapses.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.cycle(ctx)
		}
	}
}

// cycle fetches every device once with bounded fan-out. A failed or
// still-running fetch simply skips this cycle and retries on the next
// tick; failures are only counted for the availability tracker.
func (p *Poller) cycle(ctx context.Context) {
	tok, err := p.tokens.Token(ctx)
	if err != nil {
		p.log.Infow("poll cycle skipped, no token", "err", err)
		return
	}

	ids, err := p.rest.ListDeviceIDs(ctx, tok)
	if err != nil || len(ids) == 0 {
		// Fall back to the devices the store already knows.
		for _, dev := range p.store.All() {
			ids = append(ids, dev.ID)
		}
	}

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if !p.begin(id) {
			continue // previous fetch still in flight
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(deviceID string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer p.end(deviceID)
			p.fetchOne(ctx, deviceID, tok)
		}(id)
	}
	wg.Wait()
}

func (p *Poller) fetchOne(ctx context.Context, deviceID string, tok transport.Token) {
	// A fetch never outlives its cycle's slot: a device that is slower
	// than the interval is abandoned and retried next tick.
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()

	dev, err := p.rest.FetchDevice(ctx, deviceID, tok)
	if err != nil {
		if errors.Is(err, models.ErrAuthExpired) {
			p.tokens.Invalidate()
		}
		p.tracker.RecordFailure(deviceID)
		p.log.Debugw("poll fetch failed", "device", deviceID, "err", err)
		return
	}

	p.store.Merge(deviceID, models.SnapshotUpdate(dev), models.SourcePoll, time.Now().UTC())
	p.tracker.RecordSuccess(deviceID)
}

// begin marks a device fetch in flight; false means one is already running.
func (p *Poller) begin(deviceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[deviceID] {
		return false
	}
	p.inflight[deviceID] = true
	return true
}

func (p *Poller) end(deviceID string) {
	p.mu.Lock()
	delete(p.inflight, deviceID)
	p.mu.Unlock()
}
