package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sbw-site/geotrack/internal/pkg/apperr"
)

// Payload is the body posted for each in-periphery point.
type Payload struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
}

// NotifierPort delivers one payload to endpoint.
type NotifierPort interface {
	Notify(ctx context.Context, endpoint string, p Payload) error
}

// HTTPNotifier posts payloads as JSON. It never retries.
type HTTPNotifier struct {
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOptions configures an HTTPNotifier.
type HTTPOptions struct {
	Timeout time.Duration
	// RatePerSecond caps outbound calls across all users; 0 disables the limiter.
	RatePerSecond float64
	Burst         int
}

func NewHTTPNotifier(opts HTTPOptions) *HTTPNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n := &HTTPNotifier{client: &http.Client{Timeout: timeout}}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return n
}

func (n *HTTPNotifier) Notify(ctx context.Context, endpoint string, p Payload) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return apperr.Network(err, "rate limit wait")
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return apperr.Network(err, "encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperr.Network(err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return apperr.Network(err, "post notification")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Network(nil, "notification endpoint returned %d: %s", resp.StatusCode, truncate(respBody, 200))
	}
	return nil
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
