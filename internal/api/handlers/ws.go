package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// EventSource yields pipeline state transitions for push delivery.
type EventSource interface {
	Subscribe() (<-chan contracts.QueryEvent, func())
}

// WSHandler pushes query progress to WebSocket clients so the dashboard can
// show which pipeline stage a slow browser-backed query is in.
type WSHandler struct {
	events EventSource
	logger *logger.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(events EventSource, log *logger.Logger) *WSHandler {
	return &WSHandler{
		events: events,
		logger: log,
	}
}

// Stream upgrades the connection and forwards query events until the client
// goes away.
// GET /ws/query
func (h *WSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.events.Subscribe()
	defer cancel()

	// Drain client frames so close and pong frames are processed; the read
	// error is the disconnect signal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
