package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

// EndpointResolver looks up outbound URLs by key.
type EndpointResolver interface {
	EndpointURL(ctx context.Context, key string) (string, error)
}

// Point is one in-periphery observation to report.
type Point struct {
	Coord  geo.Coord
	Center geo.Coord
}

// Summary describes what a dispatch run did.
type Summary struct {
	Attempted     int    `json:"attempted"`
	Delivered     int    `json:"delivered"`
	Failed        int    `json:"failed"`
	SkippedReason string `json:"skipped_reason,omitempty"`
}

// Dispatcher fans in-periphery points out to the store endpoint.
// Failures are logged and counted; they never change classification.
type Dispatcher struct {
	endpoints EndpointResolver
	port      NotifierPort
	log       *zap.Logger
}

func NewDispatcher(endpoints EndpointResolver, port NotifierPort, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{endpoints: endpoints, port: port, log: log}
}

// Dispatch sends one notification per point for userID. The endpoint is
// resolved once per call; when it is missing the whole dispatch is skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, points []Point) Summary {
	var sum Summary
	if len(points) == 0 {
		return sum
	}

	endpoint, err := d.endpoints.EndpointURL(ctx, periphery.KeyNotificationAPI)
	if err != nil {
		d.log.Error("notification dispatch skipped",
			zap.String("user", userID),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		sum.SkippedReason = apperr.Message(err)
		return sum
	}

	for _, pt := range points {
		if ctx.Err() != nil {
			sum.SkippedReason = ctx.Err().Error()
			break
		}
		sum.Attempted++
		payload := Payload{
			ID:        userID,
			Lat:       pt.Coord.Lat,
			Lng:       pt.Coord.Lng,
			CenterLat: pt.Center.Lat,
			CenterLng: pt.Center.Lng,
		}
		if err := d.port.Notify(ctx, endpoint, payload); err != nil {
			sum.Failed++
			d.log.Warn("notification failed",
				zap.String("user", userID),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.Error(err),
			)
			continue
		}
		sum.Delivered++
	}

	d.log.Info("notifications dispatched",
		zap.String("user", userID),
		zap.Int("attempted", sum.Attempted),
		zap.Int("delivered", sum.Delivered),
		zap.Int("failed", sum.Failed),
	)
	return sum
}
