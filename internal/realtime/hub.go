package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// Config holds hub configuration.
type Config struct {
	// SendQueueSize is the per-connection outbound queue length (default: 64).
	SendQueueSize int

	// WriteTimeout bounds a single outbound write (default: 10s).
	WriteTimeout time.Duration

	// ReadLimit is the largest inbound message in bytes (default: 64 KiB).
	ReadLimit int64

	// MessageRate and MessageBurst bound inbound messages per connection
	// (default: 20/s, burst 40).
	MessageRate  float64
	MessageBurst int

	// ShutdownGrace is how long Shutdown waits for close handshakes
	// (default: 5s).
	ShutdownGrace time.Duration

	// OriginPatterns lists allowed Origin host patterns (default: any).
	OriginPatterns []string
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() *Config {
	return &Config{
		SendQueueSize:  64,
		WriteTimeout:   10 * time.Second,
		ReadLimit:      64 << 10,
		MessageRate:    20,
		MessageBurst:   40,
		ShutdownGrace:  5 * time.Second,
		OriginPatterns: []string{"*"},
	}
}

// Hub tracks admitted realtime connections and broadcasts events to them.
type Hub struct {
	cfg      Config
	sessions SessionValidator
	logger   logger.Logger
	metrics  *metric.Registry
	now      func() time.Time

	// ctx is cancelled once Shutdown has force-closed every connection.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool

	wg sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a Hub that validates credentials with sessions.
func NewHub(sessions SessionValidator, cfg *Config, opts ...Option) *Hub {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	c := *cfg
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.MessageRate <= 0 {
		c.MessageRate = def.MessageRate
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = def.MessageBurst
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = def.ShutdownGrace
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      c,
		sessions: sessions,
		logger:   logger.Default(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP admits and upgrades a realtime connection, answering 401 when
// the presented credential is not a live session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	adm, err := h.Admit(r)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, domain.ErrServiceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, domain.AsDomainError(err).Message, status)
		return
	}
	h.Accept(w, r, adm)
}

// Accept upgrades r and serves the connection until it closes. adm must
// come from Admit.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, adm *Admission) {
	protocols := []string{Subprotocol}
	if adm.protocol != "" {
		protocols = append(protocols, adm.protocol)
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:    protocols,
		OriginPatterns:  h.cfg.OriginPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		logger.L(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(h.cfg.ReadLimit)

	c := &conn{
		id:          ulid.Make().String(),
		role:        adm.Role,
		peerID:      adm.PeerID,
		connectedAt: h.now().UTC(),
		ws:          ws,
		send:        make(chan []byte, h.cfg.SendQueueSize),
		done:        make(chan struct{}),
		limiter:     rate.NewLimiter(rate.Limit(h.cfg.MessageRate), h.cfg.MessageBurst),
	}
	c.log = h.logger.With("conn_id", c.id, "role", string(c.role))

	if !h.register(c) {
		ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.wg.Done()
	h.metrics.RecordAdmission(string(c.role))
	c.log.Info("realtime connection admitted", "peer_id", c.peerID)

	go h.writeLoop(c)
	h.readLoop(logger.WithConnectionID(logger.WithLogger(h.ctx, h.logger), c.id), c)
}

// register adds c and queues its connection-accepted event. It returns false
// once the hub is shutting down. On success the caller owns one h.wg count.
func (h *Hub) register(c *conn) bool {
	accepted := h.encode(domain.EventConnectionAccepted, domain.ConnectionAccepted{
		ConnectionID: c.id,
		Role:         c.role,
		PeerID:       c.peerID,
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	h.conns[c.id] = c
	h.enqueueLocked(c, accepted)
	if c.role == domain.RoleSecondary {
		h.broadcastLocked(domain.EventPeerList, h.peerListLocked())
	}
	return true
}

// unregister removes c. It is a no-op if c was already removed.
func (h *Hub) unregister(c *conn, reason string) {
	h.mu.Lock()
	removed := h.removeLocked(c, reason)
	if removed && c.role == domain.RoleSecondary && !h.closed {
		h.broadcastLocked(domain.EventPeerList, h.peerListLocked())
	}
	h.mu.Unlock()

	if removed {
		c.log.Info("realtime connection closed", "reason", reason)
	}
}

func (h *Hub) removeLocked(c *conn, reason string) bool {
	if h.conns[c.id] != c {
		return false
	}
	delete(h.conns, c.id)
	close(c.done)
	if reason != "" && reason != reasonClientClosed {
		h.metrics.RecordDrop(reason)
	}
	return true
}

// Broadcast sends ev to every admitted connection and returns how many
// connections it was queued for. Events are not replayed to later
// connections.
func (h *Hub) Broadcast(ev domain.Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", ev.Type, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.fanoutLocked(data)
	h.metrics.RecordBroadcast(string(ev.Type))
	return n
}

func (h *Hub) broadcastLocked(typ domain.EventType, payload any) {
	data := h.encode(typ, payload)
	if data == nil {
		return
	}
	h.fanoutLocked(data)
	h.metrics.RecordBroadcast(string(typ))
}

func (h *Hub) fanoutLocked(data []byte) int {
	n := 0
	for _, c := range h.conns {
		if h.enqueueLocked(c, data) {
			n++
		}
	}
	return n
}

// enqueueLocked queues data for c, dropping c if its queue is full.
func (h *Hub) enqueueLocked(c *conn, data []byte) bool {
	if data == nil || h.conns[c.id] != c {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		h.removeLocked(c, reasonSlowConsumer)
		c.log.Warn("realtime connection dropped", "reason", reasonSlowConsumer)
		go c.ws.Close(websocket.StatusPolicyViolation, "send queue full, reconnect and request state")
		return false
	}
}

// send queues an event for c alone.
func (h *Hub) send(c *conn, typ domain.EventType, payload any) {
	data := h.encode(typ, payload)
	h.mu.Lock()
	h.enqueueLocked(c, data)
	h.mu.Unlock()
}

func (h *Hub) encode(typ domain.EventType, payload any) []byte {
	ev, err := domain.NewEvent(typ, payload)
	if err != nil {
		h.logger.Error("failed to encode event", "event", typ, "error", err)
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "event", typ, "error", err)
		return nil
	}
	return data
}

func (h *Hub) peerListLocked() domain.PeerList {
	peers := make([]domain.Peer, 0, len(h.conns))
	for _, c := range h.conns {
		if c.role != domain.RoleSecondary {
			continue
		}
		peers = append(peers, domain.Peer{
			ID:          c.peerID,
			Role:        c.role,
			ConnectedAt: c.connectedAt,
		})
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].ConnectedAt.Equal(peers[j].ConnectedAt) {
			return peers[i].ID < peers[j].ID
		}
		return peers[i].ConnectedAt.Before(peers[j].ConnectedAt)
	})
	return domain.PeerList{Peers: peers}
}

// Peers returns the currently admitted secondary peers.
func (h *Hub) Peers() []domain.Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peerListLocked().Peers
}

// Count returns the number of admitted connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ConnectionCounts returns admitted connections by role.
func (h *Hub) ConnectionCounts() map[string]int {
	counts := map[string]int{
		string(domain.RolePrimary):   0,
		string(domain.RoleSecondary): 0,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		counts[string(c.role)]++
	}
	return counts
}

// Closed reports whether Shutdown has started.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Shutdown sends a going-away close to every connection and waits for the
// close handshakes up to the grace period or ctx, whichever ends first.
// Connections still open after that are closed without a handshake.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
		h.removeLocked(c, "")
	}
	h.mu.Unlock()

	h.logger.Info("realtime hub shutting down", "connections", len(conns))

	var closing sync.WaitGroup
	for _, c := range conns {
		closing.Add(1)
		go func(c *conn) {
			defer closing.Done()
			c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		}(c)
	}

	graceCtx, cancel := context.WithTimeout(ctx, h.cfg.ShutdownGrace)
	defer cancel()
	if !waitGroupDone(graceCtx, &closing) {
		h.logger.Warn("realtime close handshakes timed out, forcing close")
		for _, c := range conns {
			c.ws.CloseNow()
		}
	}
	h.cancel()

	if !waitGroupDone(ctx, &h.wg) {
		return ctx.Err()
	}
	return nil
}

func waitGroupDone(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
