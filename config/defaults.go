// Package config provides configuration defaults for the velinterp application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via velinterp.yaml or VELINTERP_* environment
// variables.
package config

// =============================================================================
// Pipeline Defaults
// =============================================================================

const (
	// DefaultBatchSize is the maximum number of rows dispatched per batch.
	// At most one batch of work is lost when the process is interrupted.
	// Override via config: pipeline.batch_size
	DefaultBatchSize = 1000

	// DefaultWorkers is the number of concurrent interpolation workers.
	// Zero means one worker per CPU.
	// Override via config: pipeline.workers
	DefaultWorkers = 0

	// DefaultQueueSize is the job queue capacity of the runner.
	// Submissions block while the queue is full.
	// Override via config: pipeline.queue_size
	DefaultQueueSize = 1024
)

// =============================================================================
// Interpolation Defaults
// =============================================================================

const (
	// DefaultMethod is the spatial interpolation strategy.
	// Override via config: interpolation.method
	DefaultMethod = "idw"

	// DefaultPrecision is the number of decimal places results are rounded to.
	// Override via config: interpolation.precision
	DefaultPrecision = 2

	// DefaultIDWPower is the distance exponent of inverse distance weighting.
	// Override via config: interpolation.idw_power
	DefaultIDWPower = 2.0
)

// =============================================================================
// Path Defaults
// =============================================================================

const (
	// DefaultConfigFile is read when VELINTERP_CONFIG is unset.
	DefaultConfigFile = "velinterp.yaml"

	// DefaultStationsDir holds one folder per station with its velocity CSV.
	// Override via config: paths.stations_dir
	DefaultStationsDir = "stations"

	// DefaultWaypointsDir receives one folder per query waypoint.
	// Override via config: paths.waypoints_dir
	DefaultWaypointsDir = "waypoints"

	// DefaultSeriesFile is the per-station velocity CSV name.
	// Override via config: paths.series_file
	DefaultSeriesFile = "velocity.csv"

	// DefaultCheckpointName is the checkpoint file name inside the waypoint folder.
	// Its extension selects the codec (.csv or .parquet).
	// Override via config: paths.checkpoint_name
	DefaultCheckpointName = "velocity.csv"
)

// =============================================================================
// Report Defaults
// =============================================================================

const (
	// DefaultReportMemoryLimit caps DuckDB memory for the post-run summary.
	// Override via config: report.memory_limit
	DefaultReportMemoryLimit = "512MB"

	// DefaultSketchAccuracy is the DDSketch relative accuracy for percentiles.
	// Override via config: report.accuracy
	DefaultSketchAccuracy = 0.01
)
