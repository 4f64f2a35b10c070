package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/interpolate"
	"github.com/xtxerr/velinterp/internal/jobs"
	"github.com/xtxerr/velinterp/internal/table"
)

// Runner is the job runner the dispatcher submits to. *jobs.Pool
// implements it.
type Runner interface {
	Submit(key string, fn jobs.Func) error
	AwaitAll(ctx context.Context) error
	Result(key string) (jobs.Result, bool)
	Forget(keys ...string)
	Shutdown()
}

// Geometry is the fixed spatial input of a run: the query point and the
// surface point coordinates, positionally matching the table's value
// columns.
type Geometry struct {
	Query interpolate.Point
	Lats  []float64
	Lons  []float64
}

// Width returns the number of surface points.
func (g Geometry) Width() int {
	return len(g.Lats)
}

// Validate checks that coordinates pair up.
func (g Geometry) Validate() error {
	if len(g.Lats) != len(g.Lons) {
		return fmt.Errorf("geometry has %d lats and %d lons", len(g.Lats), len(g.Lons))
	}
	if len(g.Lats) == 0 {
		return errors.ErrNoSurfacePoints
	}
	return nil
}

// BatchResults maps every job of a batch to its outcome.
type BatchResults map[JobKey]jobs.Result

// Keys returns the keys ordered by row.
func (br BatchResults) Keys() []JobKey {
	keys := make([]JobKey, 0, len(br))
	for k := range br {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Row < keys[j].Row })
	return keys
}

// Dispatcher turns the unresolved rows of a batch window into tasks, runs
// them and gathers every outcome.
type Dispatcher struct {
	runner    Runner
	geometry  Geometry
	method    interpolate.Interpolator
	precision int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(runner Runner, geometry Geometry, method interpolate.Interpolator, precision int) *Dispatcher {
	return &Dispatcher{
		runner:    runner,
		geometry:  geometry,
		method:    method,
		precision: precision,
	}
}

// RunBatch submits one task per unresolved row in rng and blocks until all
// of them complete. Task failures are returned in the mapping; an error is
// returned only when the runner itself fails.
//
// The wait ignores cancellation of ctx so a batch is never abandoned
// half-way; callers check ctx between batches.
func (d *Dispatcher) RunBatch(ctx context.Context, tbl *table.Table, rng table.Range) (BatchResults, error) {
	pending := tbl.PendingIn(rng)
	keys := make([]JobKey, 0, len(pending))
	names := make([]string, 0, len(pending))

	for _, i := range pending {
		row := tbl.Row(i)
		task, err := interpolate.NewTask(d.method, d.precision, d.geometry.Query, d.geometry.Lats, d.geometry.Lons, row.Values)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCheckpointMismatch, "row %d stamp %d: %v", i, row.Stamp, err)
		}

		key := JobKey{Row: i, Stamp: row.Stamp}
		if err := d.runner.Submit(key.String(), task.Run); err != nil {
			return nil, fmt.Errorf("batch %s: %w", rng, err)
		}
		keys = append(keys, key)
		names = append(names, key.String())
	}

	if err := d.runner.AwaitAll(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("batch %s: await: %w", rng, err)
	}
	defer d.runner.Forget(names...)

	results := make(BatchResults, len(keys))
	for _, key := range keys {
		r, ok := d.runner.Result(key.String())
		if !ok {
			return nil, fmt.Errorf("batch %s: job %s: %w", rng, key, errors.ErrMissingResult)
		}
		results[key] = r
	}
	return results, nil
}
