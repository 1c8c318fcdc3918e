package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/storage/memory"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	hub       *Hub
	authority *service.TokenAuthority
	clock     *testClock
	server    *httptest.Server
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Now()}
	authority := service.NewTokenAuthority(memory.NewTokenStore(), nil,
		service.WithAuthorityClock(clock.Now),
		service.WithAuthorityLogger(logger.Nop()),
	)
	hub := NewHub(authority, cfg, WithLogger(logger.Nop()))
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		server.Close()
	})
	return &testEnv{hub: hub, authority: authority, clock: clock, server: server}
}

func (e *testEnv) url(query string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) session(t *testing.T) *domain.Token {
	t.Helper()
	ctx := context.Background()
	eph, err := e.authority.IssueEphemeral(ctx)
	require.NoError(t, err)
	session, err := e.authority.Exchange(ctx, eph.Value)
	require.NoError(t, err)
	return session
}

func dial(t *testing.T, url string, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) domain.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func writeEvent(t *testing.T, c *websocket.Conn, typ domain.EventType) {
	t.Helper()
	data, err := json.Marshal(domain.Event{Type: typ})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func decode[T any](t *testing.T, ev domain.Event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ev.Payload, &v))
	return v
}

func TestCredential(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		header       http.Header
		wantValue    string
		wantProtocol string
		wantPresent  bool
	}{
		{name: "none"},
		{name: "query", query: "token=pmst_q", wantValue: "pmst_q", wantPresent: true},
		{name: "bearer", header: http.Header{"Authorization": {"Bearer pmst_h"}}, wantValue: "pmst_h", wantPresent: true},
		{name: "bearer any case", header: http.Header{"Authorization": {"bearer pmst_h"}}, wantValue: "pmst_h", wantPresent: true},
		{
			name:         "subprotocol",
			header:       http.Header{"Sec-Websocket-Protocol": {"pairmesh.v1, pairmesh.token.pmst_p"}},
			wantValue:    "pmst_p",
			wantProtocol: "pairmesh.token.pmst_p",
			wantPresent:  true,
		},
		{
			name:        "query wins",
			query:       "token=pmst_q",
			header:      http.Header{"Authorization": {"Bearer pmst_h"}},
			wantValue:   "pmst_q",
			wantPresent: true,
		},
		{name: "empty query", query: "token=", wantPresent: true},
		{
			name:        "empty query still wins",
			query:       "token=",
			header:      http.Header{"Authorization": {"Bearer pmst_h"}},
			wantPresent: true,
		},
		{name: "basic scheme", header: http.Header{"Authorization": {"Basic abc"}}, wantPresent: true},
		{name: "bare bearer", header: http.Header{"Authorization": {"Bearer"}}, wantPresent: true},
		{name: "blank bearer", header: http.Header{"Authorization": {"Bearer   "}}, wantPresent: true},
		{
			name:         "empty subprotocol token",
			header:       http.Header{"Sec-Websocket-Protocol": {"pairmesh.v1, pairmesh.token."}},
			wantProtocol: "pairmesh.token.",
			wantPresent:  true,
		},
		{name: "plain subprotocol", header: http.Header{"Sec-Websocket-Protocol": {"pairmesh.v1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/realtime?"+tt.query, nil)
			for k, v := range tt.header {
				r.Header[http.CanonicalHeaderKey(k)] = v
			}
			value, protocol, present := Credential(r)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantProtocol, protocol)
			assert.Equal(t, tt.wantPresent, present)
		})
	}
}

func TestAdmit_UnusableCredentialRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		query  string
		header http.Header
	}{
		{name: "empty query", query: "token="},
		{name: "basic scheme", header: http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}},
		{name: "bare bearer", header: http.Header{"Authorization": {"Bearer"}}},
		{name: "empty subprotocol token", header: http.Header{"Sec-Websocket-Protocol": {"pairmesh.v1, pairmesh.token."}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/realtime?"+tt.query, nil)
			for k, v := range tt.header {
				r.Header[http.CanonicalHeaderKey(k)] = v
			}
			adm, err := env.hub.Admit(r)
			assert.Nil(t, adm)
			assert.ErrorIs(t, err, domain.ErrSessionInvalid)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, resp, err := websocket.Dial(ctx, env.url(""), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}},
	})
	require.Error(t, err)
	assert.Nil(t, c)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.hub.Count())
}

// A client without a credential is admitted as the primary.
func TestAdmit_PrimaryWithoutCredential(t *testing.T) {
	env := newTestEnv(t, nil)
	c := dial(t, env.url(""), nil)

	ev := readEvent(t, c)
	require.Equal(t, domain.EventConnectionAccepted, ev.Type)
	accepted := decode[domain.ConnectionAccepted](t, ev)
	assert.Equal(t, domain.RolePrimary, accepted.Role)
	assert.NotEmpty(t, accepted.ConnectionID)
	assert.Empty(t, accepted.PeerID)
	assert.Equal(t, 1, env.hub.Count())
}

func TestAdmit_SecondaryCredentialSources(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		dial func(value string) (string, *websocket.DialOptions)
	}{
		{"query", func(v string) (string, *websocket.DialOptions) {
			return env.url("token=" + v), nil
		}},
		{"bearer", func(v string) (string, *websocket.DialOptions) {
			return env.url(""), &websocket.DialOptions{
				HTTPHeader: http.Header{"Authorization": {"Bearer " + v}},
			}
		}},
		{"subprotocol", func(v string) (string, *websocket.DialOptions) {
			return env.url(""), &websocket.DialOptions{
				Subprotocols: []string{Subprotocol, TokenSubprotocolPrefix + v},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := env.session(t)
			url, opts := tt.dial(session.Value)
			c := dial(t, url, opts)

			ev := readEvent(t, c)
			require.Equal(t, domain.EventConnectionAccepted, ev.Type)
			accepted := decode[domain.ConnectionAccepted](t, ev)
			assert.Equal(t, domain.RoleSecondary, accepted.Role)
			assert.Equal(t, session.PeerID, accepted.PeerID)
			if opts != nil && len(opts.Subprotocols) > 0 {
				assert.Equal(t, Subprotocol, c.Subprotocol())
			}
			c.Close(websocket.StatusNormalClosure, "")
		})
	}
}

// A client presenting an expired session is refused before the upgrade.
func TestAdmit_ExpiredSessionRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.session(t)
	env.clock.Advance(61 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, resp, err := websocket.Dial(ctx, env.url("token="+session.Value), nil)
	require.Error(t, err)
	assert.Nil(t, c)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.hub.Count())
}

func TestAdmit_RejectsNonSessionCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	eph, err := env.authority.IssueEphemeral(context.Background())
	require.NoError(t, err)

	for _, value := range []string{"pmst_unknown", eph.Value} {
		r := httptest.NewRequest(http.MethodGet, "/v1/realtime?token="+value, nil)
		_, err := env.hub.Admit(r)
		assert.ErrorIs(t, err, domain.ErrSessionInvalid, value)
	}
}

func TestHeartbeat(t *testing.T) {
	env := newTestEnv(t, nil)
	c := dial(t, env.url(""), nil)
	readEvent(t, c)

	writeEvent(t, c, domain.EventHeartbeatPing)
	ev := readEvent(t, c)
	assert.Equal(t, domain.EventHeartbeatPong, ev.Type)
}

func TestUnknownEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	c := dial(t, env.url(""), nil)
	readEvent(t, c)

	writeEvent(t, c, "dance")
	ev := readEvent(t, c)
	require.Equal(t, domain.EventConnectionError, ev.Type)
	assert.Equal(t, "unknown_event", decode[domain.ConnectionError](t, ev).Code)

	// The connection stays open.
	writeEvent(t, c, domain.EventHeartbeatPing)
	assert.Equal(t, domain.EventHeartbeatPong, readEvent(t, c).Type)
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == want },
		2*time.Second, 5*time.Millisecond, "connection count never reached %d", want)
}

func TestBroadcast_ReachesEveryAdmittedConnection(t *testing.T) {
	env := newTestEnv(t, nil)

	clients := make([]*websocket.Conn, 3)
	for i := range clients {
		clients[i] = dial(t, env.url(""), nil)
		readEvent(t, clients[i])
	}
	waitForCount(t, env.hub, 3)

	ev, err := domain.NewEvent(domain.EventArtifactInserted, domain.ArtifactInserted{OwnerID: "p", URL: "/v1/blobs/p/x"})
	require.NoError(t, err)
	assert.Equal(t, 3, env.hub.Broadcast(ev))
	for _, c := range clients {
		got := readEvent(t, c)
		assert.Equal(t, domain.EventArtifactInserted, got.Type)
		assert.Equal(t, "/v1/blobs/p/x", decode[domain.ArtifactInserted](t, got).URL)
	}

	require.NoError(t, clients[0].Close(websocket.StatusNormalClosure, ""))
	waitForCount(t, env.hub, 2)
	assert.Equal(t, 2, env.hub.Broadcast(ev))
}

func TestBroadcast_PreservesOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	c := dial(t, env.url(""), nil)
	readEvent(t, c)

	const n = 50
	for i := 0; i < n; i++ {
		ev, err := domain.NewEvent(domain.EventPeerUpdate, domain.PeerUpdate{ID: "p", Field: fmt.Sprint(i)})
		require.NoError(t, err)
		env.hub.Broadcast(ev)
	}
	for i := 0; i < n; i++ {
		ev := readEvent(t, c)
		require.Equal(t, fmt.Sprint(i), decode[domain.PeerUpdate](t, ev).Field)
	}
}

func TestPeerList_OnSecondaryJoinAndLeave(t *testing.T) {
	env := newTestEnv(t, nil)
	primary := dial(t, env.url(""), nil)
	readEvent(t, primary)

	session := env.session(t)
	secondary := dial(t, env.url("token="+session.Value), nil)
	readEvent(t, secondary)

	ev := readEvent(t, primary)
	require.Equal(t, domain.EventPeerList, ev.Type)
	peers := decode[domain.PeerList](t, ev).Peers
	require.Len(t, peers, 1)
	assert.Equal(t, session.PeerID, peers[0].ID)
	assert.Equal(t, domain.RoleSecondary, peers[0].Role)

	require.NoError(t, secondary.Close(websocket.StatusNormalClosure, ""))
	ev = readEvent(t, primary)
	require.Equal(t, domain.EventPeerList, ev.Type)
	assert.Empty(t, decode[domain.PeerList](t, ev).Peers)

	// Leaving never touches token state.
	assert.True(t, env.authority.ValidateSession(context.Background(), session.Value))
}

func TestRequestState(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.session(t)
	secondary := dial(t, env.url("token="+session.Value), nil)
	readEvent(t, secondary) // connection-accepted
	readEvent(t, secondary) // peer-list from its own join

	writeEvent(t, secondary, domain.EventRequestState)
	ev := readEvent(t, secondary)
	require.Equal(t, domain.EventPeerList, ev.Type)
	peers := decode[domain.PeerList](t, ev).Peers
	require.Len(t, peers, 1)
	assert.Equal(t, session.PeerID, peers[0].ID)
}

func TestSlowConsumerDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendQueueSize = 1
	env := newTestEnv(t, cfg)

	// The client never reads, so socket buffers fill and the queue backs up.
	dial(t, env.url(""), nil)
	waitForCount(t, env.hub, 1)

	big := domain.Event{
		Type:    domain.EventPeerUpdate,
		Payload: json.RawMessage(`"` + strings.Repeat("x", 256<<10) + `"`),
	}
	for i := 0; i < 1000 && env.hub.Count() > 0; i++ {
		env.hub.Broadcast(big)
	}
	waitForCount(t, env.hub, 0)
	assert.Equal(t, 0, env.hub.Broadcast(big))
}

func TestFloodControl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageRate = 1
	cfg.MessageBurst = 2
	env := newTestEnv(t, cfg)

	c := dial(t, env.url(""), nil)
	readEvent(t, c)

	for i := 0; i < 5; i++ {
		data, _ := json.Marshal(domain.Event{Type: domain.EventHeartbeatPing})
		if err := c.Write(context.Background(), websocket.MessageText, data); err != nil {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	for err == nil {
		_, _, err = c.Read(ctx)
	}
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	waitForCount(t, env.hub, 0)
}

func TestShutdown(t *testing.T) {
	env := newTestEnv(t, nil)

	clients := make([]*websocket.Conn, 2)
	for i := range clients {
		clients[i] = dial(t, env.url(""), nil)
		readEvent(t, clients[i])
	}
	waitForCount(t, env.hub, 2)

	// Clients must be reading to answer the close handshake.
	statuses := make(chan websocket.StatusCode, len(clients))
	for _, c := range clients {
		go func(c *websocket.Conn) {
			_, _, err := c.Read(context.Background())
			statuses <- websocket.CloseStatus(err)
		}(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, env.hub.Shutdown(ctx))
	assert.Equal(t, 0, env.hub.Count())

	for range clients {
		select {
		case status := <-statuses:
			assert.Equal(t, websocket.StatusGoingAway, status)
		case <-time.After(2 * time.Second):
			t.Fatal("client never observed the close")
		}
	}

	_, resp, err := websocket.Dial(ctx, env.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Idempotent.
	assert.NoError(t, env.hub.Shutdown(ctx))
}

func TestConnectionCounts(t *testing.T) {
	env := newTestEnv(t, nil)
	c := dial(t, env.url(""), nil)
	readEvent(t, c)
	session := env.session(t)
	s := dial(t, env.url("token="+session.Value), nil)
	readEvent(t, s)

	waitForCount(t, env.hub, 2)
	counts := env.hub.ConnectionCounts()
	assert.Equal(t, 1, counts["primary"])
	assert.Equal(t, 1, counts["secondary"])
	assert.Len(t, env.hub.Peers(), 1)
}
