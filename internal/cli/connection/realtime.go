package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/realtime"
)

// RealtimePath is the WebSocket endpoint of the hub.
const RealtimePath = "/v1/realtime"

// ErrServerGoingAway is returned by Listen when the server shuts down.
var ErrServerGoingAway = errors.New("server is shutting down")

// RealtimeClient is an admitted connection to the realtime hub.
type RealtimeClient struct {
	ws       *websocket.Conn
	accepted domain.ConnectionAccepted
}

// RealtimeURL converts a server address into the hub's ws:// or wss:// URL.
// A non-empty session is carried in the token query parameter.
func RealtimeURL(server, session string) string {
	base := normalizeBaseURL(server)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	default:
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	u := base + RealtimePath
	if session != "" {
		u += "?" + realtime.TokenQueryParam + "=" + url.QueryEscape(session)
	}
	return u
}

// DialRealtime opens a connection to the hub and waits for the
// connection-accepted event. Without a session the connection is admitted
// as the primary.
func DialRealtime(ctx context.Context, server, session string, opts ...Option) (*RealtimeClient, error) {
	ws, resp, err := websocket.Dial(ctx, RealtimeURL(server, session), &websocket.DialOptions{
		HTTPClient:   newTransportClient(0, opts),
		Subprotocols: []string{realtime.Subprotocol},
		HTTPHeader:   http.Header{"User-Agent": {UserAgent}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			if apiErr := ParseResponse(resp, nil); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	var ev domain.Event
	if err := wsjson.Read(ctx, ws, &ev); err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	if ev.Type != domain.EventConnectionAccepted {
		ws.CloseNow()
		return nil, fmt.Errorf("unexpected first event %q", ev.Type)
	}

	c := &RealtimeClient{ws: ws}
	if err := decodePayload(ev, &c.accepted); err != nil {
		ws.CloseNow()
		return nil, err
	}
	return c, nil
}

// Accepted returns the connection-accepted payload of the handshake.
func (c *RealtimeClient) Accepted() domain.ConnectionAccepted {
	return c.accepted
}

// Send writes a client event without payload.
func (c *RealtimeClient) Send(ctx context.Context, typ domain.EventType) error {
	return wsjson.Write(ctx, c.ws, domain.Event{Type: typ})
}

// Next reads the next server event.
func (c *RealtimeClient) Next(ctx context.Context) (domain.Event, error) {
	var ev domain.Event
	err := wsjson.Read(ctx, c.ws, &ev)
	return ev, err
}

// Listen delivers every server event to fn until ctx is done, the server
// closes the connection, or fn returns an error. A heartbeat-ping is sent
// every heartbeat interval when it is positive. Cancellation and a normal
// close return nil.
func (c *RealtimeClient) Listen(ctx context.Context, heartbeat time.Duration, fn func(domain.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if heartbeat > 0 {
		go c.heartbeat(ctx, heartbeat)
	}

	for {
		ev, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure:
				return nil
			case websocket.StatusGoingAway:
				return ErrServerGoingAway
			case websocket.StatusPolicyViolation:
				return fmt.Errorf("connection dropped by server: %w", err)
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (c *RealtimeClient) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(ctx, domain.EventHeartbeatPing); err != nil {
				return
			}
		}
	}
}

// Close performs a normal close handshake.
func (c *RealtimeClient) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

func decodePayload(ev domain.Event, target any) error {
	if len(ev.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(ev.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}
	return nil
}
