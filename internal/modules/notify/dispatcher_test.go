package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

type staticResolver struct {
	url string
	err error
}

func (r staticResolver) EndpointURL(_ context.Context, key string) (string, error) {
	if key != periphery.KeyNotificationAPI {
		return "", apperr.Config("unexpected key %s", key)
	}
	return r.url, r.err
}

type recordingPort struct {
	mu       sync.Mutex
	payloads []Payload
	fail     map[int]bool
}

func (p *recordingPort) Notify(_ context.Context, endpoint string, pl Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.payloads)
	p.payloads = append(p.payloads, pl)
	if p.fail[idx] {
		return apperr.Network(errors.New("connection refused"), "post notification")
	}
	return nil
}

func points(n int) []Point {
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{Coord: geo.Coord{Lat: float64(i), Lng: 1}, Center: geo.Coord{Lat: 0, Lng: 1}}
	}
	return out
}

func TestDispatchCountsOutcomes(t *testing.T) {
	port := &recordingPort{fail: map[int]bool{1: true}}
	core, logs := observer.New(zap.DebugLevel)
	d := NewDispatcher(staticResolver{url: "http://store.local"}, port, zap.New(core))

	sum := d.Dispatch(context.Background(), "rep@example.com", points(3))

	assert.Equal(t, Summary{Attempted: 3, Delivered: 2, Failed: 1}, sum)
	require.Len(t, port.payloads, 3)
	assert.Equal(t, Payload{ID: "rep@example.com", Lat: 2, Lng: 1, CenterLat: 0, CenterLng: 1}, port.payloads[2])

	failed := logs.FilterMessage("notification failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, string(apperr.KindNetwork), failed[0].ContextMap()["kind"])
}

func TestDispatchMissingEndpoint(t *testing.T) {
	port := &recordingPort{}
	d := NewDispatcher(staticResolver{err: apperr.Config("API URL for key '%s' not found", periphery.KeyNotificationAPI)}, port, nil)

	sum := d.Dispatch(context.Background(), "rep", points(2))

	assert.Zero(t, sum.Attempted)
	assert.Contains(t, sum.SkippedReason, "not found")
	assert.Empty(t, port.payloads)
}

func TestDispatchNothingToSend(t *testing.T) {
	d := NewDispatcher(staticResolver{err: errors.New("must not be called")}, &recordingPort{}, nil)
	assert.Equal(t, Summary{}, d.Dispatch(context.Background(), "rep", nil))
}

func TestDispatchUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewDispatcher(staticResolver{url: url}, NewHTTPNotifier(HTTPOptions{}), nil)
	sum := d.Dispatch(context.Background(), "rep", points(1))
	assert.Equal(t, Summary{Attempted: 1, Failed: 1}, sum)
}
