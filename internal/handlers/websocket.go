package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12
	subBuffer  = 8
)

// wsEnvelope is one websocket message
type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The console serves a single-site operator LAN
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams the console state: once on connect, then after every
// store or banner change
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	stores := h.console.Stores
	seasonCh, cancelSeason := stores.Season.Subscribe(subBuffer)
	defer cancelSeason()
	overridesCh, cancelOverrides := stores.Overrides.Subscribe(subBuffer)
	defer cancelOverrides()
	telemetryCh, cancelTelemetry := stores.Telemetry.Subscribe(subBuffer)
	defer cancelTelemetry()
	bannersCh, cancelBanners := h.console.Notifier.Subscribe(subBuffer)
	defer cancelBanners()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.sendState(conn); err != nil {
		h.logger.Info("Websocket initial write failed", "error", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Info("Websocket ping failed", "error", err)
				return
			}
			continue
		case <-seasonCh:
		case <-overridesCh:
		case <-telemetryCh:
		case <-bannersCh:
		}
		if err := h.sendState(conn); err != nil {
			h.logger.Info("Websocket write failed", "error", err)
			return
		}
	}
}

// startReader drains incoming frames so control messages are handled
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("Websocket reader closed", "error", err)
			return
		}
	}
}

func (h *Handler) sendState(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "state", Data: h.console.State()})
}
