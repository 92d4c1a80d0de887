package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	pkgredis "github.com/sbw-site/geotrack/internal/pkg/redis"
)

// Options configures a Hub.
type Options struct {
	// FrequencyMinutes is announced to clients on connect as the expected
	// reporting interval.
	FrequencyMinutes int
	// IngestTimeout bounds one batch's persistence.
	IngestTimeout time.Duration
}

// NewHub builds a hub. rc may be nil for a single-instance deployment.
func NewHub(ingest Ingester, rc *pkgredis.Client, logger *zap.Logger, opts Options) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 30 * time.Second
	}
	h := &Hub{
		sessions:   make(map[string]clientMeta),
		broadcast:  make(chan Message, 256),
		register:   make(chan clientMeta, 256),
		unregister: make(chan clientMeta, 256),
		done:       make(chan struct{}),
		rc:         rc,
		logger:     logger.Named("gateway"),
		sio:        socketio.NewServer(nil, nil),
		ingest:     ingest,
		frequency:  opts.FrequencyMinutes,
		nodeID:     uuid.NewString(),
		timeout:    opts.IngestTimeout,
	}
	h.registerNamespaces()
	return h
}

// Run starts the hub loop and Redis subscriber. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.deliver(msg)
			h.publish(ctx, msg)
		}
	}
}

func (h *Hub) registerClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[c.sid] = c
}

func (h *Hub) unregisterClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, c.sid)
}

func (h *Hub) publish(ctx context.Context, msg Message) {
	if h.rc == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("gateway encode failed", zap.Error(err))
		return
	}
	if err := h.rc.Publish(ctx, redisChanLocations, string(data)); err != nil {
		h.logger.Warn("gateway publish failed", zap.String("channel", redisChanLocations), zap.Error(err))
	}
}

// Broadcast relays event to every session except the one with id except
// ("" for all), on this node and, through Redis, on the others.
func (h *Hub) Broadcast(event string, payload any, except string) {
	select {
	case h.broadcast <- Message{Event: event, Payload: payload, Origin: h.nodeID, Except: except}:
	case <-h.done:
		h.logger.Debug("hub stopped, broadcast dropped", zap.String("event", event))
	}
}

func (h *Hub) track(ch chan<- clientMeta, c clientMeta) {
	select {
	case ch <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of sessions connected to this node.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}
