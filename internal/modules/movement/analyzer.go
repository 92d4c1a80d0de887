package movement

import (
	"time"

	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

// Ping is one observation fed to the analyzer.
type Ping struct {
	ID        string
	UserID    string
	Coord     geo.Coord
	Timestamp time.Time
}

// PointResult is the classification of a single ping.
type PointResult struct {
	Ping
	// SegmentDistance is the distance from the preceding ping, 0 for the first.
	SegmentDistance  float64
	DistanceToCenter float64
	InPeriphery      bool
	// Center is the reference the ping was classified against: the mean of
	// the previous window's members, or the first ping before any window closed.
	Center    geo.Coord
	WindowEnd time.Time
}

// Analysis is the outcome of one scan.
type Analysis struct {
	Params        periphery.Params
	WindowStart   time.Time
	Points        []PointResult
	TotalDistance float64
	// OverallCenter is the mean of every ping; zero when there are none.
	OverallCenter geo.Coord
	// ValidUntil is the end of the last window reached by the scan.
	ValidUntil time.Time
}

// NoData reports whether the scan saw no pings.
func (a *Analysis) NoData() bool { return len(a.Points) == 0 }

// InPeriphery returns the points classified as inside the periphery.
func (a *Analysis) InPeriphery() []PointResult {
	var out []PointResult
	for _, p := range a.Points {
		if p.InPeriphery {
			out = append(out, p)
		}
	}
	return out
}

type window struct {
	end       time.Time
	length    time.Duration
	center    geo.Coord
	hasCenter bool
	members   []geo.Coord
}

// close recomputes the center from the members when there are any, then
// moves on to the next window. An empty window keeps the previous center.
func (w *window) close() {
	if c, ok := geo.Centroid(w.members); ok {
		w.center = c
		w.hasCenter = true
	}
	w.end = w.end.Add(w.length)
	w.members = w.members[:0]
}

// Analyze classifies pings, which must be sorted by timestamp, against a
// lagging centroid that is recomputed every params.Minutes starting at
// windowStart. A ping at or past the current window end closes exactly one
// window; gaps longer than a window are not fast-forwarded.
func Analyze(pings []Ping, params periphery.Params, windowStart time.Time) (*Analysis, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	w := &window{
		end:    windowStart.Add(params.Window()),
		length: params.Window(),
	}
	a := &Analysis{
		Params:      params,
		WindowStart: windowStart,
		Points:      make([]PointResult, 0, len(pings)),
	}

	all := make([]geo.Coord, 0, len(pings))
	var prev *Ping
	for i := range pings {
		p := pings[i]
		if !p.Coord.Finite() {
			return nil, apperr.DataIntegrity("ping %s has non-finite coordinates (%v, %v)", p.ID, p.Coord.Lat, p.Coord.Lng)
		}
		if prev != nil && p.Timestamp.Before(prev.Timestamp) {
			return nil, apperr.DataIntegrity("ping %s is out of timestamp order", p.ID)
		}

		var segment float64
		if prev != nil {
			segment = geo.Distance(prev.Coord, p.Coord)
		}
		a.TotalDistance += segment

		if !p.Timestamp.Before(w.end) {
			w.close()
		}
		w.members = append(w.members, p.Coord)
		if !w.hasCenter {
			w.center = p.Coord
			w.hasCenter = true
		}

		toCenter := geo.Distance(w.center, p.Coord)
		a.Points = append(a.Points, PointResult{
			Ping:             p,
			SegmentDistance:  segment,
			DistanceToCenter: toCenter,
			InPeriphery:      !p.Timestamp.After(w.end) && toCenter <= params.Radius,
			Center:           w.center,
			WindowEnd:        w.end,
		})
		all = append(all, p.Coord)
		prev = &pings[i]
	}

	a.OverallCenter, _ = geo.Centroid(all)
	a.ValidUntil = w.end
	return a, nil
}
