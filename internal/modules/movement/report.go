package movement

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sbw-site/geotrack/internal/modules/notify"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

// Report is the JSON shape returned by the movement endpoint and archived
// by the hourly job.
type Report struct {
	Status                   string          `json:"status"`
	User                     string          `json:"user"`
	Message                  string          `json:"message,omitempty"`
	StartTime                time.Time       `json:"start_time"`
	EndTime                  time.Time       `json:"end_time"`
	CenterPoint              *geo.Coord      `json:"center_point,omitempty"`
	TotalDistanceMeters      float64         `json:"total_distance_meters"`
	PeripheryRadiusMeters    float64         `json:"periphery_radius_meters"`
	PeripheryDurationMinutes int             `json:"periphery_duration_minutes"`
	PeripheryValidUntil      time.Time       `json:"periphery_valid_until"`
	PointsCount              int             `json:"points_count"`
	Points                   []PointJSON     `json:"points"`
	Notifications            *notify.Summary `json:"notifications,omitempty"`
}

// PointJSON is the wire form of a PointResult.
type PointJSON struct {
	ID                string    `json:"id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Timestamp         time.Time `json:"timestamp"`
	DistanceMeters    float64   `json:"distance_meters"`
	DistanceToCenter  float64   `json:"distance_to_center"`
	InPeripheryFlag   int       `json:"in_periphery_flag"`
	CurrentCenterLat  float64   `json:"current_center_lat"`
	CurrentCenterLong float64   `json:"current_center_long"`
	WindowEnd         time.Time `json:"periphery_window_end"`
}

// NewReport renders a for user over [start, end]. Distances are rounded to
// centimeters; the analysis itself keeps full precision.
func NewReport(user string, start, end time.Time, a *Analysis) *Report {
	r := &Report{
		Status:                   "success",
		User:                     user,
		StartTime:                start,
		EndTime:                  end,
		TotalDistanceMeters:      round2(a.TotalDistance),
		PeripheryRadiusMeters:    a.Params.Radius,
		PeripheryDurationMinutes: a.Params.Minutes,
		PeripheryValidUntil:      a.ValidUntil,
		PointsCount:              len(a.Points),
		Points:                   make([]PointJSON, 0, len(a.Points)),
	}
	if a.NoData() {
		r.Message = "No data"
		return r
	}

	center := a.OverallCenter
	r.CenterPoint = &center
	for _, p := range a.Points {
		flag := 0
		if p.InPeriphery {
			flag = 1
		}
		r.Points = append(r.Points, PointJSON{
			ID:                p.ID,
			Latitude:          p.Coord.Lat,
			Longitude:         p.Coord.Lng,
			Timestamp:         p.Timestamp,
			DistanceMeters:    round2(p.SegmentDistance),
			DistanceToCenter:  round2(p.DistanceToCenter),
			InPeripheryFlag:   flag,
			CurrentCenterLat:  p.Center.Lat,
			CurrentCenterLong: p.Center.Lng,
			WindowEnd:         p.WindowEnd,
		})
	}
	return r
}

// JSON encodes the report for archiving.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
