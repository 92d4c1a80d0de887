package gateway

import (
	"context"
	"strings"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/modules/location"
)

// connectPayload greets a new session.
type connectPayload struct {
	Data      string `json:"data"`
	Frequency int    `json:"frequency"`
}

func (h *Hub) registerNamespaces() {
	nsp := h.sio.Of(namespaceDefault, nil)
	_ = nsp.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())
		meta := clientMeta{sid: sid, address: clientAddress(client)}
		h.track(h.register, meta)
		h.logger.Info("client connected", zap.String("sid", sid), zap.String("address", meta.address))
		_ = client.Emit(eventMessage, connectPayload{Data: greeting, Frequency: h.frequency})

		// Handlers for one socket run in order, so a session's batches
		// are never interleaved.
		_ = client.On(eventUpdateLocation, func(eventArgs ...any) {
			ack, relay := h.handleUpdateLocation(sid, eventArgs...)
			if err := client.Emit(eventUpdateLocation, ack); err != nil {
				h.logger.Warn("ack emit failed", zap.String("sid", sid), zap.Error(err))
			}
			if relay != nil {
				h.Broadcast(eventMessage, *relay, sid)
			}
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.logger.Info("client disconnected", zap.String("sid", sid))
			h.track(h.unregister, meta)
		})
	})
}

// handleUpdateLocation ingests one batch and returns the ack for the sender
// and, on success, the envelope to relay to everyone else.
func (h *Hub) handleUpdateLocation(sid string, args ...any) (location.Ack, *broadcastEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	res := h.ingest.Ingest(ctx, sid, eventPayload(args))
	if !res.OK() {
		return res.Ack, nil
	}
	return res.Ack, &broadcastEnvelope{Data: res.Broadcast}
}

// eventPayload returns the first event argument, ignoring a trailing ack
// callback some clients attach.
func eventPayload(args []any) any {
	for _, a := range args {
		if _, isFunc := a.(func([]any, error)); isFunc {
			continue
		}
		return a
	}
	return nil
}

func clientAddress(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if fwd := firstValueFromMultiMap(handshake.Headers, "x-forwarded-for"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return handshake.Address
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	if len(values) == 0 {
		return ""
	}
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		v := strings.TrimSpace(list[0])
		if v != "" {
			return v
		}
	}
	return ""
}
