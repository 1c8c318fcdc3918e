package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Drop reasons reported to metrics.
const (
	reasonClientClosed = "client_closed"
	reasonSlowConsumer = "slow_consumer"
	reasonFlood        = "message_rate"
	reasonWriteFailed  = "write_failed"
)

// conn is one admitted realtime connection.
type conn struct {
	id          string
	role        domain.Role
	peerID      string
	connectedAt time.Time

	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{} // closed when the hub removes the connection
	limiter *rate.Limiter
	log     logger.Logger
}

// writeLoop drains c's queue in order until c is removed.
func (h *Hub) writeLoop(c *conn) {
	for {
		select {
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(h.ctx, h.cfg.WriteTimeout)
			err := c.ws.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.log.Debug("realtime write failed", "error", err)
				h.unregister(c, reasonWriteFailed)
				c.ws.CloseNow()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop handles client events until the connection closes.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	reason := reasonClientClosed
	defer func() {
		h.unregister(c, reason)
		c.ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logger.L(ctx).Debug("realtime read ended", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			reason = reasonFlood
			h.unregister(c, reason)
			c.log.Warn("realtime connection dropped", "reason", reason)
			c.ws.Close(websocket.StatusPolicyViolation, "message rate exceeded")
			return
		}

		if typ != websocket.MessageText {
			h.send(c, domain.EventConnectionError, domain.ConnectionError{
				Code:   "unsupported_message",
				Reason: "only text messages are accepted",
			})
			continue
		}

		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.send(c, domain.EventConnectionError, domain.ConnectionError{
				Code:   "malformed_message",
				Reason: "message is not a valid event",
			})
			continue
		}

		switch ev.Type {
		case domain.EventHeartbeatPing:
			h.send(c, domain.EventHeartbeatPong, nil)
		case domain.EventRequestState:
			h.mu.Lock()
			data := h.encode(domain.EventPeerList, h.peerListLocked())
			h.enqueueLocked(c, data)
			h.mu.Unlock()
		default:
			h.send(c, domain.EventConnectionError, domain.ConnectionError{
				Code:   "unknown_event",
				Reason: "unknown event type " + string(ev.Type),
			})
		}
	}
}
