// velinterp interpolates the current velocity at a route's first waypoint
// from the velocity series of the route's other waypoints.
//
// Usage:
//
//	velinterp <route.gpx>
//
// Progress is checkpointed to <waypoints_dir>/<name>/<checkpoint_name> after
// every batch. Running the same route again resumes where the last run
// stopped.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/xtxerr/velinterp/internal/checkpoint"
	"github.com/xtxerr/velinterp/internal/config"
	"github.com/xtxerr/velinterp/internal/interpolate"
	"github.com/xtxerr/velinterp/internal/jobs"
	"github.com/xtxerr/velinterp/internal/logging"
	"github.com/xtxerr/velinterp/internal/pipeline"
	"github.com/xtxerr/velinterp/internal/report"
	"github.com/xtxerr/velinterp/internal/route"
	"github.com/xtxerr/velinterp/internal/series"
	"github.com/xtxerr/velinterp/internal/table"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprintf(os.Stderr, "usage: %s <route.gpx>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "velinterp: load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.Format(cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithRunID(ctx, uuid.NewString())

	if err := run(ctx, cfg, os.Args[1]); err != nil {
		logging.WithContext(ctx).Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, routePath string) error {
	logger := logging.WithContext(ctx)
	logger.Info("velinterp starting", "version", Version, "route", routePath)

	// =========================================================================
	// Route and stations
	// =========================================================================

	rt, err := route.ReadFile(routePath)
	if err != nil {
		return err
	}

	idx, err := route.LoadStationIndex(cfg.Paths.StationIndex)
	if err != nil {
		return err
	}

	sources, err := idx.Sources(rt, cfg.Paths.StationsDir, cfg.Paths.SeriesFile)
	if err != nil {
		return err
	}

	query, err := route.Register(idx, rt.Query(), cfg.Paths.WaypointsDir)
	if err != nil {
		return err
	}
	ctx = logging.ContextWithWaypoint(ctx, query.Name)
	logger = logging.WithContext(ctx)

	lats, lons := rt.Coordinates()
	logger.Info("route loaded",
		"route", rt.Name,
		"stations", len(sources),
		"lat", query.Lat,
		"lon", query.Lon)

	// =========================================================================
	// Pipeline
	// =========================================================================

	method, err := interpolate.New(cfg.Interpolation.Method, interpolate.Options{
		IDWPower: cfg.Interpolation.IDWPower,
	})
	if err != nil {
		return err
	}

	loader := &series.Loader{Parallelism: cfg.Pipeline.Workers}
	builder := pipeline.BuilderFunc(func(ctx context.Context) (*table.Table, error) {
		ss, err := loader.Load(ctx, sources)
		if err != nil {
			return nil, err
		}
		return table.Align(ss)
	})

	checkpointPath := cfg.CheckpointPath(query.Name)
	store := checkpoint.NewFileStore(checkpoint.ParseCompressionType(cfg.Checkpoint.Compression))
	metrics := pipeline.NewMetrics()
	pool := jobs.NewPool(&jobs.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	})

	driver, err := pipeline.NewDriver(pipeline.Config{
		BatchSize:      cfg.Pipeline.BatchSize,
		CheckpointPath: checkpointPath,
		Precision:      cfg.Interpolation.Precision,
	}, pipeline.Deps{
		Store:        store,
		Builder:      builder,
		Runner:       pool,
		Interpolator: method,
		Geometry: pipeline.Geometry{
			Query: query.Point(),
			Lats:  lats,
			Lons:  lons,
		},
		Metrics: metrics,
	})
	if err != nil {
		pool.Shutdown()
		return err
	}

	out, runErr := driver.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	// =========================================================================
	// Summary
	// =========================================================================

	if cfg.Report.Enabled {
		s, err := report.Summarize(ctx, checkpointPath, checkpoint.FormatForPath(checkpointPath), out.Table, report.Options{
			MemoryLimit: cfg.Report.MemoryLimit,
			Accuracy:    cfg.Report.Accuracy,
		})
		if err != nil {
			logger.Warn("summary failed", "path", checkpointPath, "error", err)
		} else {
			logger.Info("summary",
				"rows", s.Rows,
				"resolved", s.Resolved,
				"unresolved", s.Unresolved,
				"min", s.Min,
				"max", s.Max,
				"mean", s.Mean,
				"p50", s.P50,
				"p90", s.P90,
				"p99", s.P99)
		}
	}

	fmt.Printf("%s: %d rows, %d unresolved, %d batches -> %s\n",
		query.Name, out.Rows, out.Unresolved, out.Batches, checkpointPath)
	return nil
}
