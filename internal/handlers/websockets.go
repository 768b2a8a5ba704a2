package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"climate_hub/internal/models"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxMsgSize    = 1 << 12 // 4 KB
	updateBacklog = 32
)

// wsEnvelope frames outbound WebSocket messages.
type wsEnvelope struct {
	Type string `json:"type"` // snapshot | update
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsUpdates streams accepted store merges to the client: an initial
// snapshot of every device, then one frame per merge. Unlike a polling
// feed there is nothing to recompute here; derivation stays on the
// read endpoints.
func (h *Handler) wsUpdates(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine handles control frames and detects disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	// Store callbacks must not block: updates queue into a buffered
	// channel and drop when the client cannot keep up. A client that
	// misses frames still converges via the next update per device.
	updates := make(chan models.Device, updateBacklog)
	cancel := h.services.Subscribe(func(dev models.Device) {
		select {
		case updates <- dev:
		default:
		}
	})
	defer cancel()

	if err := h.writeEnvelope(conn, wsEnvelope{Type: "snapshot", Data: h.services.ListDevices()}); err != nil {
		h.log.Infow("ws initial snapshot failed", "err", err)
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws ping failed", "err", err)
				return
			}
		case dev := <-updates:
			if err := h.writeEnvelope(conn, wsEnvelope{Type: "update", Data: dev}); err != nil {
				h.log.Infow("ws write failed", "err", err)
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and
// detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
