package movement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/modules/notify"
	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

// PingSource loads persisted pings.
type PingSource interface {
	Range(ctx context.Context, userID string, start, end time.Time) ([]models.LocationData, error)
	ActiveUsers(ctx context.Context, start, end time.Time) ([]string, error)
}

// ParamsSource resolves periphery parameters.
type ParamsSource interface {
	Params(ctx context.Context) periphery.Params
	Resolve(ctx context.Context, override periphery.Override) periphery.Params
}

// Dispatcher delivers in-periphery notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, points []notify.Point) notify.Summary
}

var (
	_ ParamsSource = (*periphery.Provider)(nil)
	_ Dispatcher   = (*notify.Dispatcher)(nil)
)

// Service runs movement analysis for a user and time range.
type Service struct {
	pings      PingSource
	params     ParamsSource
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewService(pings PingSource, params ParamsSource, dispatcher Dispatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pings: pings, params: params, dispatcher: dispatcher, log: log}
}

// Request describes one on-demand analysis.
type Request struct {
	UserID   string
	Start    time.Time
	End      time.Time
	Override periphery.Override
	// Notify dispatches a notification for every in-periphery point.
	Notify bool
}

// Report resolves parameters (override first, then the upstream, then the
// defaults) and analyzes the user's pings in [Start, End].
func (s *Service) Report(ctx context.Context, req Request) (*Report, error) {
	params := s.params.Resolve(ctx, req.Override)
	return s.analyze(ctx, req.UserID, req.Start, req.End, params, req.Notify)
}

func (s *Service) analyze(ctx context.Context, userID string, start, end time.Time, params periphery.Params, dispatch bool) (*Report, error) {
	rows, err := s.pings.Range(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	a, err := Analyze(toPings(rows), params, start)
	if err != nil {
		s.log.Error("analysis aborted", zap.String("user", userID), zap.Error(err))
		return nil, err
	}

	report := NewReport(userID, start, end, a)
	if dispatch && s.dispatcher != nil {
		if in := a.InPeriphery(); len(in) > 0 {
			sum := s.dispatcher.Dispatch(ctx, userID, notifyPoints(in))
			report.Notifications = &sum
		}
	}

	s.log.Debug("user analyzed",
		zap.String("user", userID),
		zap.Int("points", len(a.Points)),
		zap.Float64("total_m", a.TotalDistance),
		zap.Float64("radius", params.Radius),
		zap.Int("minutes", params.Minutes),
	)
	return report, nil
}

func toPings(rows []models.LocationData) []Ping {
	out := make([]Ping, len(rows))
	for i, r := range rows {
		out[i] = Ping{
			ID:        r.ID,
			UserID:    r.UserID,
			Coord:     geo.Coord{Lat: r.Latitude, Lng: r.Longitude},
			Timestamp: r.Timestamp,
		}
	}
	return out
}

func notifyPoints(results []PointResult) []notify.Point {
	out := make([]notify.Point, len(results))
	for i, r := range results {
		out[i] = notify.Point{Coord: r.Coord, Center: r.Center}
	}
	return out
}
