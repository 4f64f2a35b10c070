// Package pipeline runs the resumable batch interpolation loop.
//
// The Driver loads the checkpointed table, or builds and persists a fresh
// one, then repeats plan, dispatch and checkpoint until no unresolved row is
// left. The table is only mutated between batches, on the driver goroutine,
// and is saved after every batch. An interrupted run loses at most the batch
// in flight; the next run resumes at the first unresolved row.
package pipeline

import (
	"context"
	"fmt"
	"time"

	defaults "github.com/xtxerr/velinterp/config"
	"github.com/xtxerr/velinterp/internal/checkpoint"
	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/interpolate"
	"github.com/xtxerr/velinterp/internal/logging"
	"github.com/xtxerr/velinterp/internal/table"
)

var log = logging.Component("pipeline")

// =============================================================================
// Types
// =============================================================================

// State is a driver lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateLooping
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLooping:
		return "looping"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the explicit settings of one run.
type Config struct {
	// BatchSize is the maximum number of rows per batch.
	BatchSize int

	// CheckpointPath is where the table is persisted.
	CheckpointPath string

	// Precision is the number of decimal places results are rounded to.
	Precision int
}

// DefaultConfig returns a Config with default batch size and precision.
func DefaultConfig(checkpointPath string) Config {
	return Config{
		BatchSize:      defaults.DefaultBatchSize,
		CheckpointPath: checkpointPath,
		Precision:      defaults.DefaultPrecision,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	errs := errors.NewValidationErrors()
	if c.BatchSize <= 0 {
		errs.Add(errors.NewInvalidValue("batch_size", c.BatchSize, "must be positive"))
	}
	if c.CheckpointPath == "" {
		errs.AddMissing("checkpoint_path")
	}
	if c.Precision < 0 {
		errs.Add(errors.NewInvalidValue("precision", c.Precision, "must not be negative"))
	}
	return errs.Err()
}

// TableBuilder builds the aligned table when no checkpoint exists.
type TableBuilder interface {
	Build(ctx context.Context) (*table.Table, error)
}

// BuilderFunc adapts a function to TableBuilder.
type BuilderFunc func(ctx context.Context) (*table.Table, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context) (*table.Table, error) {
	return f(ctx)
}

// Deps are the collaborators of a Driver.
type Deps struct {
	Store        checkpoint.Store
	Builder      TableBuilder
	Runner       Runner
	Interpolator interpolate.Interpolator
	Geometry     Geometry

	// Metrics is optional.
	Metrics *Metrics
}

// Outcome reports how a run ended.
type Outcome struct {
	State      State
	Resumed    bool
	Batches    int
	Resolved   int
	Failed     int
	Rows       int
	Unresolved int
	Duration   time.Duration

	// Table is the final in-memory table; it matches the checkpoint when
	// State is StateDone.
	Table *table.Table
}

// =============================================================================
// Driver
// =============================================================================

// Driver owns the plan, dispatch, checkpoint loop.
type Driver struct {
	cfg          Config
	store        checkpoint.Store
	builder      TableBuilder
	runner       Runner
	geometry     Geometry
	dispatcher   *Dispatcher
	checkpointer *Checkpointer
	metrics      *Metrics

	state State
}

// NewDriver creates a Driver.
func NewDriver(cfg Config, deps Deps) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, errors.NewMissingField("store")
	}
	if deps.Builder == nil {
		return nil, errors.NewMissingField("builder")
	}
	if deps.Runner == nil {
		return nil, errors.NewMissingField("runner")
	}
	if deps.Interpolator == nil {
		return nil, errors.NewMissingField("interpolator")
	}
	if err := deps.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}

	return &Driver{
		cfg:          cfg,
		store:        deps.Store,
		builder:      deps.Builder,
		runner:       deps.Runner,
		geometry:     deps.Geometry,
		dispatcher:   NewDispatcher(deps.Runner, deps.Geometry, deps.Interpolator, cfg.Precision),
		checkpointer: NewCheckpointer(deps.Store, cfg.CheckpointPath),
		metrics:      deps.Metrics,
		state:        StateInitializing,
	}, nil
}

// State returns the current state.
func (d *Driver) State() State {
	return d.state
}

// Run executes the pipeline to completion. The runner is shut down before
// Run returns, whatever the outcome.
//
// Cancelling ctx stops the loop at the next batch boundary; the checkpoint
// then holds every batch completed so far.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	logger := log.Ctx(ctx)
	out := &Outcome{}

	shut := false
	shutdown := func() {
		if !shut {
			shut = true
			d.runner.Shutdown()
		}
	}
	defer shutdown()

	fail := func(err error) (*Outcome, error) {
		shutdown()
		d.transition(ctx, StateFailed)
		out.State = StateFailed
		out.Duration = time.Since(start)
		if out.Table != nil {
			out.Rows = out.Table.Len()
			out.Unresolved = out.Table.Unresolved()
		}
		logger.Error("pipeline failed", "error", err, "batches", out.Batches, "path", d.checkpointer.Path())
		return out, err
	}

	d.transition(ctx, StateInitializing)
	tbl, resumed, err := d.initialize(ctx)
	if err != nil {
		return fail(err)
	}
	out.Table = tbl
	out.Resumed = resumed

	estimate := tbl.EstimateBatches(d.cfg.BatchSize)
	logger.Info("table ready",
		"path", d.checkpointer.Path(),
		"resumed", resumed,
		"rows", tbl.Len(),
		"unresolved", tbl.Unresolved(),
		"batches", estimate)
	d.metrics.setUnresolved(tbl.Unresolved())

	d.transition(ctx, StateLooping)
	from := 0
	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("interrupted after %d batches: %w", out.Batches, err))
		}

		rng, ok := tbl.NextBatch(from, d.cfg.BatchSize)
		if !ok {
			break
		}

		batchStart := time.Now()
		results, err := d.dispatcher.RunBatch(ctx, tbl, rng)
		if err != nil {
			return fail(err)
		}

		applied, err := d.checkpointer.Apply(tbl, results)
		if err != nil {
			return fail(err)
		}

		out.Batches++
		out.Resolved += applied.Resolved
		out.Failed += len(applied.Failures)
		unresolved := tbl.Unresolved()
		d.metrics.observeBatch(applied.Resolved, len(applied.Failures), unresolved, time.Since(batchStart))

		for _, f := range applied.Failures {
			logger.Warn("row left unresolved", "row", f.Key.Row, "stamp", f.Key.Stamp, "error", f.Err)
		}
		logger.Info("batch checkpointed",
			"batch", out.Batches,
			"of", estimate,
			"start", rng.Start,
			"end", rng.End,
			"submitted", len(results),
			"resolved", applied.Resolved,
			"failed", len(applied.Failures),
			"unresolved", unresolved)

		from = rng.End
	}

	d.transition(ctx, StateDraining)
	shutdown()

	d.transition(ctx, StateDone)
	out.State = StateDone
	out.Rows = tbl.Len()
	out.Unresolved = tbl.Unresolved()
	out.Duration = time.Since(start)

	logger.Info("pipeline done",
		"batches", out.Batches,
		"resolved", out.Resolved,
		"failed", out.Failed,
		"unresolved", out.Unresolved,
		"duration", out.Duration)
	return out, nil
}

// initialize loads the checkpoint, or builds the table and persists it
// before any work is dispatched.
func (d *Driver) initialize(ctx context.Context) (*table.Table, bool, error) {
	tbl, found, err := d.store.Load(d.checkpointer.Path())
	if err != nil {
		return nil, false, err
	}
	if found {
		if tbl.Width() != d.geometry.Width() {
			return nil, false, fmt.Errorf("checkpoint %s has %d surface columns, route has %d: %w",
				d.checkpointer.Path(), tbl.Width(), d.geometry.Width(), errors.ErrCheckpointMismatch)
		}
		return tbl, true, nil
	}

	tbl, err = d.builder.Build(ctx)
	if err != nil {
		return nil, false, err
	}
	if tbl.Width() != d.geometry.Width() {
		return nil, false, fmt.Errorf("built table has %d surface columns, route has %d: %w",
			tbl.Width(), d.geometry.Width(), errors.ErrCheckpointMismatch)
	}
	if err := d.checkpointer.Save(tbl); err != nil {
		return nil, false, err
	}
	return tbl, false, nil
}

func (d *Driver) transition(ctx context.Context, to State) {
	from := d.state
	d.state = to
	d.metrics.setState(to)
	if from != to {
		log.Ctx(ctx).Debug("state transition", "from", from.String(), "to", to.String())
	}
}
