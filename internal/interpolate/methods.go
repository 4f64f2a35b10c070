package interpolate

import (
	"fmt"
	"math"

	"github.com/xtxerr/velinterp/internal/errors"
)

// coincident is the squared distance, in degrees, below which the query is
// treated as sitting on a surface point.
const coincident = 1e-18

// =============================================================================
// Inverse distance weighting
// =============================================================================

// IDW weights each surface value by 1/d^Power. A query on top of a surface
// point returns that point's value.
type IDW struct {
	Power float64
}

// Interpolate implements Interpolator.
func (m *IDW) Interpolate(surface []SurfacePoint, query Point) (float64, error) {
	if len(surface) == 0 {
		return 0, errors.ErrNoSurfacePoints
	}

	var num, den float64
	for _, p := range surface {
		dx := p.Lat - query.Lat
		dy := p.Lon - query.Lon
		d2 := dx*dx + dy*dy
		if d2 < coincident {
			return p.Value, nil
		}
		w := math.Pow(d2, -m.Power/2)
		num += w * p.Value
		den += w
	}

	if den == 0 || math.IsInf(den, 0) {
		return 0, fmt.Errorf("idw weights sum to %v: %w", den, errors.ErrDegenerateGeometry)
	}
	return num / den, nil
}

// =============================================================================
// Least-squares plane
// =============================================================================

// Plane fits v = a + b*lat + c*lon through the surface points by least
// squares and evaluates it at the query. Three points give the exact plane
// through them. Fewer than three points, or points on one line, have no
// unique plane.
type Plane struct{}

// Interpolate implements Interpolator.
func (Plane) Interpolate(surface []SurfacePoint, query Point) (float64, error) {
	n := len(surface)
	if n == 0 {
		return 0, errors.ErrNoSurfacePoints
	}
	if n < 3 {
		return 0, fmt.Errorf("plane needs 3 points, have %d: %w", n, errors.ErrDegenerateGeometry)
	}

	var mx, my, mz float64
	for _, p := range surface {
		mx += p.Lat
		my += p.Lon
		mz += p.Value
	}
	mx /= float64(n)
	my /= float64(n)
	mz /= float64(n)

	// Centered normal equations; the intercept drops out as the mean.
	var sxx, sxy, syy, sxz, syz float64
	for _, p := range surface {
		dx := p.Lat - mx
		dy := p.Lon - my
		dz := p.Value - mz
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
		sxz += dx * dz
		syz += dy * dz
	}

	det := sxx*syy - sxy*sxy
	if sxx == 0 || syy == 0 || det <= 1e-12*sxx*syy {
		return 0, fmt.Errorf("surface points are collinear: %w", errors.ErrDegenerateGeometry)
	}

	b := (sxz*syy - syz*sxy) / det
	c := (syz*sxx - sxz*sxy) / det
	return mz + b*(query.Lat-mx) + c*(query.Lon-my), nil
}

// =============================================================================
// Mean
// =============================================================================

// Mean ignores geometry and averages the surface values.
type Mean struct{}

// Interpolate implements Interpolator.
func (Mean) Interpolate(surface []SurfacePoint, _ Point) (float64, error) {
	if len(surface) == 0 {
		return 0, errors.ErrNoSurfacePoints
	}
	var sum float64
	for _, p := range surface {
		sum += p.Value
	}
	return sum / float64(len(surface)), nil
}
