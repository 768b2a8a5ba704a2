package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"climate_hub/internal/models"
)

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestWSUpdates_SnapshotThenUpdates(t *testing.T) {
	f := newFixture(t)
	f.monitoring.devices = []models.Device{
		{ID: "rad-1", Name: "Living room", TargetTemperature: 22.0},
	}

	conn := dialWS(t, f)

	env := readEnvelope(t, conn)
	if env.Type != "snapshot" {
		t.Fatalf("first frame type = %q, want snapshot", env.Type)
	}
	snap, _ := json.Marshal(env.Data)
	if !strings.Contains(string(snap), `"rad-1"`) {
		t.Fatalf("snapshot missing device: %s", snap)
	}

	// An accepted merge flows out as an update frame.
	f.monitoring.publish(models.Device{ID: "rad-1", TargetTemperature: 21.5})

	env = readEnvelope(t, conn)
	if env.Type != "update" {
		t.Fatalf("second frame type = %q, want update", env.Type)
	}
	upd, _ := json.Marshal(env.Data)
	if !strings.Contains(string(upd), `"target_temp_c":21.5`) {
		t.Fatalf("update frame payload = %s", upd)
	}
}

func TestWSUpdates_DropsWhenClientBacklogged(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	_ = readEnvelope(t, conn) // snapshot

	// Flood well past the per-client backlog; the publisher must never
	// block even though the client is not reading.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < updateBacklog*10; i++ {
			f.monitoring.publish(models.Device{ID: "rad-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on a slow websocket client")
	}
}
