// Package interpolate estimates the velocity at a query point from the
// velocities measured at surrounding surface points.
//
// A Task carries everything one row needs: copies of the surface points
// with that row's values and the query coordinates. Tasks share no state and
// may run concurrently. The spatial algorithm is an Interpolator so callers
// can swap it, or stub it in tests.
package interpolate

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/velinterp/internal/errors"
)

// Method names accepted by New.
const (
	MethodIDW   = "idw"
	MethodPlane = "plane"
	MethodMean  = "mean"
)

// SurfacePoint is a known location with its velocity for one time stamp.
type SurfacePoint struct {
	Lat   float64
	Lon   float64
	Value float64
}

// Point is the location being estimated.
type Point struct {
	Name string
	Lat  float64
	Lon  float64
}

// Interpolator computes a value at query from the surface points.
//
// Implementations must be safe for concurrent use and must not retain or
// modify surface.
type Interpolator interface {
	Interpolate(surface []SurfacePoint, query Point) (float64, error)
}

// InterpolatorFunc adapts a function to Interpolator.
type InterpolatorFunc func(surface []SurfacePoint, query Point) (float64, error)

// Interpolate calls f.
func (f InterpolatorFunc) Interpolate(surface []SurfacePoint, query Point) (float64, error) {
	return f(surface, query)
}

// Options tunes the strategies built by New.
type Options struct {
	// IDWPower is the distance exponent of inverse distance weighting.
	IDWPower float64
}

// New returns the strategy registered under method.
func New(method string, opts Options) (Interpolator, error) {
	switch strings.ToLower(method) {
	case MethodIDW, "":
		power := opts.IDWPower
		if power <= 0 {
			power = 2
		}
		return &IDW{Power: power}, nil
	case MethodPlane:
		return Plane{}, nil
	case MethodMean:
		return Mean{}, nil
	default:
		return nil, errors.NewInvalidValue("interpolation.method", method, "unknown method")
	}
}

// =============================================================================
// Task
// =============================================================================

// Task interpolates one row.
type Task struct {
	Surface   []SurfacePoint
	Query     Point
	Method    Interpolator
	Precision int
}

// NewTask builds a task for one row. Coordinates and values are copied so the
// task owns its inputs.
func NewTask(method Interpolator, precision int, query Point, lats, lons, values []float64) (*Task, error) {
	if len(lats) != len(values) || len(lons) != len(values) {
		return nil, fmt.Errorf("%d lats, %d lons, %d values", len(lats), len(lons), len(values))
	}
	surface := make([]SurfacePoint, len(values))
	for i := range values {
		surface[i] = SurfacePoint{Lat: lats[i], Lon: lons[i], Value: values[i]}
	}
	return &Task{
		Surface:   surface,
		Query:     query,
		Method:    method,
		Precision: precision,
	}, nil
}

// Run computes the rounded value at the query point. Every error it
// returns is a non-fatal task error; any other strategy error is wrapped
// in ErrInterpolation.
func (t *Task) Run() (float64, error) {
	if len(t.Surface) == 0 {
		return 0, errors.ErrNoSurfacePoints
	}
	if !finite(t.Query.Lat) || !finite(t.Query.Lon) {
		return 0, fmt.Errorf("query point (%v, %v): %w", t.Query.Lat, t.Query.Lon, errors.ErrNonFiniteInput)
	}
	for i, p := range t.Surface {
		if !finite(p.Lat) || !finite(p.Lon) || !finite(p.Value) {
			return 0, fmt.Errorf("surface point %d (%v, %v, %v): %w", i, p.Lat, p.Lon, p.Value, errors.ErrNonFiniteInput)
		}
	}

	v, err := t.Method.Interpolate(t.Surface, t.Query)
	if err != nil {
		if errors.IsTaskError(err) && !errors.IsFatal(err) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", errors.ErrInterpolation, err)
	}
	if !finite(v) {
		return 0, fmt.Errorf("interpolated value %v: %w", v, errors.ErrNonFiniteInput)
	}
	return Round(v, t.Precision), nil
}

// Round rounds v half away from zero to places decimal places.
func Round(v float64, places int) float64 {
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
