package geo

import (
	"math"

	"github.com/tidwall/geodesic"
	"gonum.org/v1/gonum/stat"
)

// Coord is a WGS84 latitude/longitude pair in degrees.
type Coord struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Finite reports whether both components are real numbers.
func (c Coord) Finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// Valid reports whether the coordinate is finite and inside the WGS84 ranges.
func (c Coord) Valid() bool {
	return c.Finite() && c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Distance returns the geodesic distance in meters between a and b on the
// WGS84 ellipsoid.
func Distance(a, b Coord) float64 {
	if a == b {
		return 0
	}
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &s12, nil, nil)
	return s12
}

// Centroid returns the arithmetic mean of coords. ok is false for an empty slice.
func Centroid(coords []Coord) (center Coord, ok bool) {
	if len(coords) == 0 {
		return Coord{}, false
	}
	lats := make([]float64, len(coords))
	lngs := make([]float64, len(coords))
	for i, c := range coords {
		lats[i] = c.Lat
		lngs[i] = c.Lng
	}
	return Coord{Lat: stat.Mean(lats, nil), Lng: stat.Mean(lngs, nil)}, true
}
