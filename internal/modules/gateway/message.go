package gateway

import (
	"context"
	"encoding/json"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// broadcastEnvelope is the body of a relayed message event.
type broadcastEnvelope struct {
	Data any `json:"data"`
}

func (h *Hub) deliver(msg Message) {
	nsp := h.sio.Of(namespaceDefault, nil)
	var err error
	if msg.Except != "" {
		err = nsp.Except(socketio.Room(msg.Except)).Emit(msg.Event, msg.Payload)
	} else {
		err = nsp.Emit(msg.Event, msg.Payload)
	}
	if err != nil {
		h.logger.Warn("gateway deliver failed", zap.String("event", msg.Event), zap.Error(err))
	}
}

// subscribeRedis listens for broadcasts from other server instances.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanLocations)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			msg, ok := h.decodeRemote(redisMsg.Payload)
			if !ok {
				continue
			}
			h.deliver(msg)
		}
	}
}

// decodeRemote parses a fan-out message and drops this node's own echo.
// Remote sessions never include the sender, so Except is cleared.
func (h *Hub) decodeRemote(raw string) (Message, bool) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		h.logger.Debug("gateway dropped malformed fan-out", zap.Error(err))
		return Message{}, false
	}
	if msg.Origin == h.nodeID || msg.Event == "" {
		return Message{}, false
	}
	msg.Except = ""
	return msg, true
}
