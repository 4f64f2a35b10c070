package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/velinterp/config"
	"github.com/xtxerr/velinterp/internal/errors"
)

// EnvConfigFile names the environment variable holding the config file path.
const EnvConfigFile = "VELINTERP_CONFIG"

// Config represents the complete run configuration.
type Config struct {
	// Paths locates stations, waypoints and checkpoints.
	Paths PathsConfig `yaml:"paths"`

	// Pipeline configures batching and the job runner.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Interpolation selects and tunes the interpolation strategy.
	Interpolation InterpolationConfig `yaml:"interpolation"`

	// Checkpoint configures the persisted table.
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Report configures the post-run summary.
	Report ReportConfig `yaml:"report"`

	// Metrics configures metric export.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configures the global logger.
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates inputs and outputs on disk.
type PathsConfig struct {
	// StationsDir holds one folder per station.
	StationsDir string `yaml:"stations_dir" validate:"required"`

	// StationIndex is an optional JSON index mapping station names to metadata.
	StationIndex string `yaml:"station_index"`

	// SeriesFile is the velocity CSV name inside a station folder.
	SeriesFile string `yaml:"series_file" validate:"required"`

	// WaypointsDir receives one folder per query waypoint.
	WaypointsDir string `yaml:"waypoints_dir" validate:"required"`

	// CheckpointName is the checkpoint file name in the waypoint folder.
	CheckpointName string `yaml:"checkpoint_name" validate:"required"`
}

// PipelineConfig configures batching and concurrency.
type PipelineConfig struct {
	// BatchSize is the maximum number of rows per batch.
	BatchSize int `yaml:"batch_size" validate:"gt=0"`

	// Workers is the worker count; 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`

	// QueueSize is the runner's job queue capacity.
	QueueSize int `yaml:"queue_size" validate:"gt=0"`
}

// InterpolationConfig selects the interpolation strategy.
type InterpolationConfig struct {
	// Method is one of idw, plane, mean.
	Method string `yaml:"method" validate:"oneof=idw plane mean"`

	// Precision is the number of decimal places kept.
	Precision int `yaml:"precision" validate:"gte=0,lte=10"`

	// IDWPower is the distance exponent for idw.
	IDWPower float64 `yaml:"idw_power" validate:"gt=0"`
}

// CheckpointConfig configures the persisted table.
type CheckpointConfig struct {
	// Compression applies to parquet checkpoints: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression" validate:"oneof=snappy zstd lz4 gzip none"`
}

// ReportConfig configures the post-run summary.
type ReportConfig struct {
	// Enabled runs the summary after a successful run.
	Enabled bool `yaml:"enabled"`

	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Accuracy is the DDSketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy" validate:"gt=0,lt=1"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `yaml:"textfile"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`

	// Format is auto, text or json.
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			StationsDir:    defaults.DefaultStationsDir,
			SeriesFile:     defaults.DefaultSeriesFile,
			WaypointsDir:   defaults.DefaultWaypointsDir,
			CheckpointName: defaults.DefaultCheckpointName,
		},
		Pipeline: PipelineConfig{
			BatchSize: defaults.DefaultBatchSize,
			Workers:   defaults.DefaultWorkers,
			QueueSize: defaults.DefaultQueueSize,
		},
		Interpolation: InterpolationConfig{
			Method:    defaults.DefaultMethod,
			Precision: defaults.DefaultPrecision,
			IDWPower:  defaults.DefaultIDWPower,
		},
		Checkpoint: CheckpointConfig{
			Compression: "zstd",
		},
		Report: ReportConfig{
			Enabled:     true,
			MemoryLimit: defaults.DefaultReportMemoryLimit,
			Accuracy:    defaults.DefaultSketchAccuracy,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", errors.Wrap(errors.ErrInvalidConfig, err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// LoadFromEnv resolves the config file from VELINTERP_CONFIG (after loading an
// optional .env file), applies VELINTERP_* overrides and validates the result.
// A missing default config file yields the defaults; a missing explicitly
// named file is an error.
func LoadFromEnv() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = defaults.DefaultConfigFile
	}

	cfg, err := Load(path)
	switch {
	case err == nil:
	case !explicit && os.IsNotExist(unwrapPathError(err)):
		cfg = DefaultConfig()
	default:
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func unwrapPathError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe
	}
	return err
}

// ApplyEnv overrides fields from VELINTERP_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"VELINTERP_STATIONS_DIR":    &c.Paths.StationsDir,
		"VELINTERP_STATION_INDEX":   &c.Paths.StationIndex,
		"VELINTERP_WAYPOINTS_DIR":   &c.Paths.WaypointsDir,
		"VELINTERP_CHECKPOINT_NAME": &c.Paths.CheckpointName,
		"VELINTERP_METHOD":          &c.Interpolation.Method,
		"VELINTERP_METRICS_FILE":    &c.Metrics.Textfile,
		"VELINTERP_LOG_LEVEL":       &c.Logging.Level,
		"VELINTERP_LOG_FORMAT":      &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"VELINTERP_BATCH_SIZE": &c.Pipeline.BatchSize,
		"VELINTERP_WORKERS":    &c.Pipeline.Workers,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewInvalidValue(key, v, "not an integer")
		}
		*dst = n
	}
	return nil
}

// CheckpointPath returns the checkpoint location for a query waypoint.
func (c *Config) CheckpointPath(waypoint string) string {
	return filepath.Join(c.WaypointFolder(waypoint), c.Paths.CheckpointName)
}

// WaypointFolder returns the output folder for a query waypoint.
func (c *Config) WaypointFolder(waypoint string) string {
	return filepath.Join(c.Paths.WaypointsDir, waypoint)
}
