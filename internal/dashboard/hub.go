// Package dashboard streams run summaries to browser clients over WebSocket.
package dashboard

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/observability"
)

// Config configures connection handling.
type Config struct {
	// WriteTimeout is timeout for writing one message.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames. Must be below PongWait.
	PingInterval time.Duration
	// PongWait is how long a client may stay silent before it is dropped.
	PongWait time.Duration
	// SendBuffer is the per-client queue length. Slow clients are dropped
	// when their queue is full.
	SendBuffer int
	// AllowedOrigins lists cross-origin pages (scheme://host[:port]) that may
	// connect. Same-origin and Origin-less requests are always accepted.
	AllowedOrigins []string
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		SendBuffer:   16,
	}
}

// Message is the JSON frame sent to clients.
type Message struct {
	Type    string      `json:"type"`
	Summary SummaryView `json:"summary"`
}

// MessageTypeRunSummary tags run summary frames.
const MessageTypeRunSummary = "run_summary"

// SummaryView is the wire form of domain.RunSummary.
type SummaryView struct {
	RunID         string  `json:"run_id"`
	ReportingDate string  `json:"reporting_date"`
	Seed          uint64  `json:"seed"`
	DataSource    string  `json:"data_source"`
	TotalLoans    int     `json:"total_loans"`
	RejectedLoans int     `json:"rejected_loans"`
	FlaggedLoans  int     `json:"flagged_loans"`
	TotalExposure float64 `json:"total_exposure"`
	TotalECL      float64 `json:"total_ecl"`
	CoverageRatio float64 `json:"coverage_ratio"`
	Stage1Count   int     `json:"stage_1_count"`
	Stage2Count   int     `json:"stage_2_count"`
	Stage3Count   int     `json:"stage_3_count"`
	CreatedAt     string  `json:"created_at"`
}

// NewSummaryView converts a run summary to its wire form.
func NewSummaryView(s *domain.RunSummary) SummaryView {
	return SummaryView{
		RunID:         s.RunID,
		ReportingDate: s.ReportingDate.Format(domain.DateLayout),
		Seed:          s.Seed,
		DataSource:    s.DataSource,
		TotalLoans:    s.TotalLoans,
		RejectedLoans: s.RejectedLoans,
		FlaggedLoans:  s.FlaggedLoans,
		TotalExposure: s.TotalExposure,
		TotalECL:      s.TotalECL,
		CoverageRatio: s.CoverageRatio,
		Stage1Count:   s.Stage1Count,
		Stage2Count:   s.Stage2Count,
		Stage3Count:   s.Stage3Count,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub fans out run summaries to connected WebSocket clients. New clients
// receive the latest summary on connect. Hub implements http.Handler.
type Hub struct {
	config   Config
	upgrader websocket.Upgrader
	log      *zap.Logger
	metrics  *observability.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte

	closed atomic.Bool
}

// NewHub creates a hub. A nil config uses DefaultConfig.
func NewHub(config *Config, opts ...Option) *Hub {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	h := &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
		log:     zap.NewNop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// originChecker accepts requests without an Origin header, requests whose
// Origin host matches the Host header, and the listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "dashboard closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}
	h.add(c)

	go c.writeLoop(h.config)
	c.readLoop(h.config)
	h.remove(c)
}

// Broadcast sends s to every connected client and keeps it for late joiners.
func (h *Hub) Broadcast(s *domain.RunSummary) error {
	payload, err := json.Marshal(Message{Type: MessageTypeRunSummary, Summary: NewSummaryView(s)})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.last = payload
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.log.Warn("dropping slow dashboard client", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
	h.metrics.RecordBroadcast()
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		select {
		case c.send <- h.last:
		default:
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetDashboardClients(n)
	h.log.Debug("dashboard client connected", zap.Int("clients", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.metrics.SetDashboardClients(n)
		h.log.Debug("dashboard client disconnected", zap.Int("clients", n))
	}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readLoop discards client frames and returns when the connection fails.
func (c *client) readLoop(cfg Config) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop(cfg Config) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
