package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hovercar/core/internal/auth"
	httpapi "hovercar/core/internal/http"
	"hovercar/core/internal/input"
	"hovercar/core/internal/logging"
)

const (
	relaySendBuffer = 256
	relayReadLimit  = 4096
	relayWriteWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PilotSink receives remote control frames accepted by the relay.
type PilotSink interface {
	Submit(frame input.Frame)
}

// RelayConfig wires the relay's optional collaborators. A nil Gate or Pilots makes the relay
// one-way; a nil Signer lets any viewer pilot; a nil Limiter accepts every connection.
type RelayConfig struct {
	MaxViewers   int
	PingInterval time.Duration
	Gate         *input.Gate
	Pilots       PilotSink
	Signer       *auth.PilotSigner
	Limiter      *httpapi.KeyedLimiter
	Logger       *logging.Logger
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	// pilotID is the identity proven by the viewer's token; empty means unauthenticated.
	pilotID string
}

// Relay fans telemetry frames out to websocket viewers and feeds pilot frames from those
// viewers into the input gate.
type Relay struct {
	lock    sync.Mutex
	clients map[*viewer]bool
	cfg     RelayConfig
	logger  *logging.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
	accepted  atomic.Uint64
	refused   atomic.Uint64
}

// NewRelay builds a relay from cfg.
func NewRelay(cfg RelayConfig) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.L()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Relay{
		clients: make(map[*viewer]bool),
		cfg:     cfg,
		logger:  logger,
	}
}

// Publish queues the message for every viewer, dropping viewers whose buffer is full.
func (r *Relay) Publish(msg []byte) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.published.Add(1)
	for c := range r.clients {
		select {
		case c.send <- msg:
		default:
			//1.- A full buffer means the viewer cannot keep up; cut it loose.
			close(c.send)
			delete(r.clients, c)
			r.dropped.Add(1)
			r.logger.Warn("relay viewer dropped", logging.String("viewer", c.id))
		}
	}
}

// Stats reports the relay counters.
func (r *Relay) Stats() httpapi.RelayStats {
	r.lock.Lock()
	clients := len(r.clients)
	r.lock.Unlock()
	return httpapi.RelayStats{
		Clients:   clients,
		Published: r.published.Load(),
		Dropped:   r.dropped.Load(),
		Rejected:  r.rejected.Load(),
		Accepted:  r.accepted.Load(),
		Refused:   r.refused.Load(),
	}
}

// Close disconnects every viewer.
func (r *Relay) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for c := range r.clients {
		close(c.send)
		delete(r.clients, c)
	}
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	reqLogger := r.logger.With(logging.String("remote_addr", req.RemoteAddr))
	//1.- Throttle reconnect storms per host before doing any other work.
	if !r.cfg.Limiter.Allow(remoteHost(req.RemoteAddr)) {
		r.refused.Add(1)
		reqLogger.Warn("relay connection rate limited")
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	r.lock.Lock()
	full := r.cfg.MaxViewers > 0 && len(r.clients) >= r.cfg.MaxViewers
	r.lock.Unlock()
	if full {
		r.refused.Add(1)
		http.Error(w, "too many viewers", http.StatusServiceUnavailable)
		return
	}

	//2.- A presented pilot token must verify; viewers without one may only watch.
	var pilotID string
	if token := bearerToken(req); token != "" && r.cfg.Signer != nil {
		claims, err := r.cfg.Signer.Verify(token)
		if err != nil {
			r.refused.Add(1)
			reqLogger.Warn("relay pilot token rejected", logging.Error(err))
			http.Error(w, "invalid pilot token", http.StatusUnauthorized)
			return
		}
		pilotID = claims.PilotID
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		reqLogger.Warn("relay upgrade failed", logging.Error(err))
		return
	}
	client := &viewer{conn: conn, send: make(chan []byte, relaySendBuffer), id: req.RemoteAddr, pilotID: pilotID}
	r.lock.Lock()
	r.clients[client] = true
	r.lock.Unlock()
	reqLogger.Info("relay viewer connected", logging.String("pilot_id", pilotID))

	go r.readLoop(client)
	go r.writeLoop(client)
}

func (r *Relay) readLoop(client *viewer) {
	var pilotID string
	defer func() {
		r.lock.Lock()
		if r.clients[client] {
			close(client.send)
			delete(r.clients, client)
		}
		r.lock.Unlock()
		r.cfg.Gate.Forget(pilotID)
		client.conn.Close()
	}()
	client.conn.SetReadLimit(relayReadLimit)
	for {
		_, msg, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		//1.- Inbound messages are pilot frames; anything else is ignored.
		var frame input.Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.PilotID == "" {
			r.rejected.Add(1)
			continue
		}
		if !r.mayPilot(client, frame.PilotID) {
			r.rejected.Add(1)
			continue
		}
		pilotID = frame.PilotID
		if decision := r.cfg.Gate.Evaluate(frame); !decision.Accepted {
			r.rejected.Add(1)
			continue
		}
		r.accepted.Add(1)
		r.cfg.Pilots.Submit(frame)
	}
}

// mayPilot reports whether the viewer is allowed to send frames for pilotID.
func (r *Relay) mayPilot(client *viewer, pilotID string) bool {
	if r.cfg.Gate == nil || r.cfg.Pilots == nil {
		return false
	}
	if r.cfg.Signer == nil {
		return true
	}
	return client.pilotID != "" && client.pilotID == pilotID
}

func (r *Relay) writeLoop(client *viewer) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// bearerToken extracts a pilot token from the Authorization header or the token query
// parameter.
func bearerToken(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(req.URL.Query().Get("token"))
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
