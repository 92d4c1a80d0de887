package gateway

import (
	"context"
	"sync"
	"time"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/modules/location"
	pkgredis "github.com/sbw-site/geotrack/internal/pkg/redis"
)

const (
	namespaceDefault = "/"

	eventMessage        = "message"
	eventUpdateLocation = "update_location"

	redisChanLocations = "geotrack:gateway:locations"

	greeting = "Connected to server"
)

// Message is the envelope used by hub broadcasts and Redis fan-out.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	// Origin is the node that accepted the batch; it skips its own echo.
	Origin string `json:"origin"`
	// Except is the socket id excluded from local delivery.
	Except string `json:"except,omitempty"`
}

// Ingester persists one update_location batch.
type Ingester interface {
	Ingest(ctx context.Context, sid string, payload any) location.Result
}

type clientMeta struct {
	sid     string
	address string
}

// Hub owns the socket.io server, tracks sessions and fans broadcasts out
// across instances over Redis.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]clientMeta

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta
	// done is closed when Run returns; sends after that are dropped.
	done chan struct{}

	rc        *pkgredis.Client
	logger    *zap.Logger
	sio       *socketio.Server
	ingest    Ingester
	frequency int
	nodeID    string
	timeout   time.Duration
}
