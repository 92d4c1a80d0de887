package periphery

import (
	"math"
	"time"

	"github.com/sbw-site/geotrack/internal/pkg/apperr"
)

// Well-known api_configs keys.
const (
	KeyParamsAPI       = "PERIPHERY_PARAMS_API"
	KeyNotificationAPI = "STORE_SALESPERSON_LOCATION_API_URL"
)

const (
	DefaultRadius  = 20.0
	DefaultMinutes = 20

	// MaxMinutes caps the window at one week.
	MaxMinutes = 7 * 24 * 60
)

// Params is the periphery geofence in effect for one analysis run.
type Params struct {
	Radius  float64 `json:"radius"`  // meters
	Minutes int     `json:"minutes"` // window length
}

// Defaults returns the static fallback parameters.
func Defaults() Params {
	return Params{Radius: DefaultRadius, Minutes: DefaultMinutes}
}

// Validate reports whether p describes a usable window: 1..MaxMinutes
// minutes and a finite, non-negative radius.
func (p Params) Validate() error {
	if p.Minutes <= 0 || p.Minutes > MaxMinutes {
		return apperr.Validation("periphery duration must be between 1 and %d minutes, got %d", MaxMinutes, p.Minutes)
	}
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius < 0 {
		return apperr.Validation("periphery radius must be a finite non-negative number, got %v", p.Radius)
	}
	return nil
}

// Window returns the window length as a duration.
func (p Params) Window() time.Duration {
	return time.Duration(p.Minutes) * time.Minute
}

// Override carries caller-supplied values that take precedence over the
// fetched or default parameters. Nil fields are not overridden.
type Override struct {
	Radius  *float64
	Minutes *int
}

// Complete reports whether every field is supplied.
func (o Override) Complete() bool {
	return o.Radius != nil && o.Minutes != nil
}

// Apply returns base with the overridden fields replaced.
func (o Override) Apply(base Params) Params {
	if o.Radius != nil {
		base.Radius = *o.Radius
	}
	if o.Minutes != nil {
		base.Minutes = *o.Minutes
	}
	return base
}
