package api

import (
	"context"
	"errors"
	"time"

	"github.com/example/room-chat-broker/modules/broadcast"
	"github.com/example/room-chat-broker/protocol"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const limiterTimeout = 250 * time.Millisecond

// handleWebSocket handles WebSocket connections at /ws.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	client := broadcast.NewClient(connID, c, m.cfg.Client, m.logger)

	if err := m.hub.Register(client); err != nil {
		m.logger.Warn("Rejecting WebSocket connection", "connectionID", connID, "error", err)
		_ = c.Close()
		return
	}
	go client.WritePump()

	m.logger.Info("WebSocket client connected", "connectionID", connID, "remote", c.RemoteAddr().String())
	m.broker.Connect(connID)

	client.ReadPump(func(data []byte) {
		m.handleFrame(connID, data)
	})

	m.broker.Disconnect(connID)
	m.hub.Unregister(connID)
	if err := m.limiter.Forget(context.Background(), connID); err != nil {
		m.logger.Debug("Failed to reset rate limit", "connectionID", connID, "error", err)
	}

	// The handler must not return while the write pump still uses the conn.
	<-client.Done()
	m.logger.Info("WebSocket client disconnected", "connectionID", connID)
}

// handleFrame decodes one client frame and hands it to the broker. Rate
// limited and undecodable frames are answered with an ERROR frame.
func (m *APIModule) handleFrame(connID string, data []byte) {
	ev, err := protocol.Decode(data)
	if !m.allow(connID) {
		m.broker.Reject(connID, ev.Type, protocol.CodeRateLimited, "too many events, slow down")
		return
	}
	if err != nil {
		m.logger.Debug("Rejected client frame", "connectionID", connID, "error", err)
		m.broker.Reject(connID, ev.Type, protocol.ErrorCode(err), err.Error())
		return
	}

	// Dispatch failures are already reported to the sender.
	_ = m.broker.Handle(connID, ev)
}

// allow consults the limiter. Limiter failures let the event through.
func (m *APIModule) allow(connID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), limiterTimeout)
	defer cancel()

	ok, err := m.limiter.Allow(ctx, connID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("Rate limiter unavailable, allowing event", "connectionID", connID, "error", err)
		}
		return true
	}
	return ok
}
