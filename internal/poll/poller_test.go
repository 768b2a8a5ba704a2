package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"climate_hub/internal/availability"
	"climate_hub/internal/logger"
	"climate_hub/internal/models"
	"climate_hub/internal/store"
	"climate_hub/internal/transport"
)

func newTestPoller(rest *transport.FakeREST, st *store.DeviceStore, tracker *availability.Tracker) *Poller {
	tokens := transport.NewTokenSource(
		&transport.FakeAuth{Tok: transport.Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}},
		transport.Credentials{}, 0)
	return New(tokens, rest, st, tracker, logger.Nop(), Config{
		Interval:    50 * time.Millisecond,
		Concurrency: 2,
	})
}

func TestCycle_MergesSnapshots(t *testing.T) {
	t.Parallel()

	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1", TargetTemperature: 22.0}
	rest.Devices["rad-2"] = models.Device{ID: "rad-2", TargetTemperature: 19.0}
	st := store.New()
	tracker := availability.NewTracker(availability.DefaultPolicy())

	p := newTestPoller(rest, st, tracker)
	p.cycle(context.Background())

	for _, id := range []string{"rad-1", "rad-2"} {
		dev, ok := st.Read(id)
		if !ok {
			t.Fatalf("device %s not merged", id)
		}
		if dev.ConnectionSource != models.SourcePoll {
			t.Fatalf("source = %v, want poll", dev.ConnectionSource)
		}
		if dev.LastUpdated.IsZero() {
			t.Fatalf("record clock not set for %s", id)
		}
	}
}

func TestCycle_CountsFailuresWithoutTouchingState(t *testing.T) {
	t.Parallel()

	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1", TargetTemperature: 22.0}
	st := store.New()
	tracker := availability.NewTracker(availability.DefaultPolicy())
	p := newTestPoller(rest, st, tracker)

	p.cycle(context.Background())
	before, _ := st.Read("rad-1")

	rest.FetchErr["rad-1"] = errors.New("gateway timeout")
	p.cycle(context.Background())

	after, _ := st.Read("rad-1")
	if !after.LastUpdated.Equal(before.LastUpdated) || after.TargetTemperature != before.TargetTemperature {
		t.Fatalf("failed fetch mutated the record: %+v", after)
	}
	if tracker.Failures("rad-1") != 1 {
		t.Fatalf("failures = %d, want 1", tracker.Failures("rad-1"))
	}

	// Recovery on the next good cycle.
	delete(rest.FetchErr, "rad-1")
	p.cycle(context.Background())
	if tracker.Failures("rad-1") != 0 {
		t.Fatalf("failures = %d after recovery, want 0", tracker.Failures("rad-1"))
	}
}

func TestCycle_SkipsDeviceWithFetchInFlight(t *testing.T) {
	t.Parallel()

	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1"}
	p := newTestPoller(rest, store.New(), availability.NewTracker(availability.DefaultPolicy()))

	// Simulate a fetch still running from a previous cycle.
	if !p.begin("rad-1") {
		t.Fatalf("first begin should succeed")
	}
	p.cycle(context.Background())

	if n := rest.FetchCount("rad-1"); n != 0 {
		t.Fatalf("fetch count = %d, want 0 while in flight", n)
	}

	p.end("rad-1")
	p.cycle(context.Background())
	if n := rest.FetchCount("rad-1"); n != 1 {
		t.Fatalf("fetch count = %d after release, want 1", n)
	}
}

func TestCycle_FallsBackToKnownDevices(t *testing.T) {
	t.Parallel()

	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1", TargetTemperature: 20.0}
	rest.ListErr = errors.New("listing down")
	st := store.New()
	target := 18.0
	st.Merge("rad-1", models.PartialUpdate{TargetTemperature: &target}, models.SourcePush,
		time.Now().UTC().Add(-time.Minute))

	p := newTestPoller(rest, st, availability.NewTracker(availability.DefaultPolicy()))
	p.cycle(context.Background())

	if n := rest.FetchCount("rad-1"); n != 1 {
		t.Fatalf("fetch count = %d, want 1 via store fallback", n)
	}
	dev, _ := st.Read("rad-1")
	if dev.TargetTemperature != 20.0 {
		t.Fatalf("snapshot not merged after fallback: %+v", dev)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	rest := transport.NewFakeREST()
	p := newTestPoller(rest, store.New(), availability.NewTracker(availability.DefaultPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}
