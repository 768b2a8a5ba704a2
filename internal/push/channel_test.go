package push

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

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func testConfig() Config {
	return Config{
		BackoffBase:   time.Millisecond,
		BackoffMax:    5 * time.Millisecond,
		BackoffFactor: 2.0,
		HealthyAfter:  time.Hour,
	}
}

func farToken() transport.Token {
	return transport.Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestChannel_StreamsResyncsAndMerges(t *testing.T) {
	t.Parallel()

	stream := transport.NewFakeStream()
	realtime := &transport.FakeRealtime{Streams: []*transport.FakeStream{stream}}
	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{
		ID: "rad-1", Power: true, TargetTemperature: 22.0, CurrentTemperature: 20.0,
	}
	st := store.New()
	tracker := availability.NewTracker(availability.DefaultPolicy())
	tokens := transport.NewTokenSource(&transport.FakeAuth{Tok: farToken()}, transport.Credentials{}, 0)

	ch := New(tokens, realtime, rest, st, tracker, nil, logger.Nop(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, func() bool { return ch.State() == StateStreaming }, "streaming state")

	// The post-connect resync fetched a full snapshot over REST.
	waitFor(t, func() bool {
		dev, ok := st.Read("rad-1")
		return ok && dev.TargetTemperature == 22.0 && dev.ConnectionSource == models.SourcePush
	}, "resync snapshot in store")

	// A delta on the stream lands in the store with the message clock.
	ts := time.Now().UTC().Add(time.Second)
	cur := 21.5
	stream.Updates <- transport.Update{
		DeviceID:  "rad-1",
		Fields:    models.PartialUpdate{CurrentTemperature: &cur},
		Timestamp: ts,
	}

	waitFor(t, func() bool {
		dev, _ := st.Read("rad-1")
		return dev.CurrentTemperature == 21.5
	}, "stream delta merged")

	dev, _ := st.Read("rad-1")
	if !dev.LastUpdated.Equal(ts) {
		t.Fatalf("record clock = %v, want message timestamp %v", dev.LastUpdated, ts)
	}
	if dev.TargetTemperature != 22.0 {
		t.Fatalf("delta clobbered snapshot fields: %+v", dev)
	}
}

func TestChannel_SendRequiresStreaming(t *testing.T) {
	t.Parallel()

	tokens := transport.NewTokenSource(&transport.FakeAuth{Tok: farToken()}, transport.Credentials{}, 0)
	ch := New(tokens, &transport.FakeRealtime{}, transport.NewFakeREST(),
		store.New(), availability.NewTracker(availability.DefaultPolicy()), nil, logger.Nop(), testConfig())

	err := ch.Send(context.Background(), models.Command{DeviceID: "rad-1"})
	if !errors.Is(err, models.ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
}

func TestChannel_ReconnectsAfterConnectFailure(t *testing.T) {
	t.Parallel()

	realtime := &transport.FakeRealtime{
		ConnectErrs: []error{errors.New("dial refused")},
		Streams:     []*transport.FakeStream{transport.NewFakeStream()},
	}
	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1"}
	tokens := transport.NewTokenSource(&transport.FakeAuth{Tok: farToken()}, transport.Credentials{}, 0)

	ch := New(tokens, realtime, rest, store.New(),
		availability.NewTracker(availability.DefaultPolicy()), nil, logger.Nop(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, func() bool { return realtime.ConnectCalls() >= 2 }, "second connect attempt")
	waitFor(t, func() bool { return ch.State() == StateStreaming }, "streaming after retry")
}

func TestChannel_AuthExpiredForcesReauth(t *testing.T) {
	t.Parallel()

	auth := &transport.FakeAuth{Tok: farToken()}
	realtime := &transport.FakeRealtime{
		ConnectErrs: []error{models.ErrAuthExpired},
		Streams:     []*transport.FakeStream{transport.NewFakeStream()},
	}
	rest := transport.NewFakeREST()
	rest.Devices["rad-1"] = models.Device{ID: "rad-1"}
	tokens := transport.NewTokenSource(auth, transport.Credentials{}, 0)

	ch := New(tokens, realtime, rest, store.New(),
		availability.NewTracker(availability.DefaultPolicy()), nil, logger.Nop(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	// The rejected token is dropped, so the retry performs a fresh login.
	waitFor(t, func() bool {
		calls, _ := auth.Calls()
		return calls >= 2
	}, "second login")
	waitFor(t, func() bool { return ch.State() == StateStreaming }, "streaming after reauth")
}
