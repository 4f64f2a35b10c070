// Package report summarizes a finished checkpoint.
//
// Counts and extremes are computed by DuckDB straight from the checkpoint
// file, so the summary reflects what was persisted rather than what the
// process holds in memory. Percentiles come from a DDSketch over the
// in-memory results.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
	_ "github.com/marcboeker/go-duckdb"

	defaults "github.com/xtxerr/velinterp/config"
	"github.com/xtxerr/velinterp/internal/checkpoint"
	"github.com/xtxerr/velinterp/internal/logging"
	"github.com/xtxerr/velinterp/internal/table"
)

var log = logging.Component("report")

// Options tunes Summarize.
type Options struct {
	// MemoryLimit is the DuckDB memory limit, e.g. "512MB".
	MemoryLimit string

	// Accuracy is the DDSketch relative accuracy.
	Accuracy float64
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		MemoryLimit: defaults.DefaultReportMemoryLimit,
		Accuracy:    defaults.DefaultSketchAccuracy,
	}
}

// Summary describes the result column of a checkpoint.
type Summary struct {
	Path       string
	Rows       int64
	Resolved   int64
	Unresolved int64
	FirstStamp int64
	LastStamp  int64

	// Zero when nothing is resolved.
	Min  float64
	Max  float64
	Mean float64
	P50  float64
	P90  float64
	P99  float64
}

// Complete reports whether every row has a value.
func (s *Summary) Complete() bool {
	return s.Unresolved == 0
}

// Summarize reads the checkpoint at path with DuckDB and adds percentiles
// computed from tbl. A disagreement between file and table counts is logged.
func Summarize(ctx context.Context, path string, format checkpoint.Format, tbl *table.Table, opts Options) (*Summary, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	if opts.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit='%s'", strings.ReplaceAll(opts.MemoryLimit, "'", ""))); err != nil {
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	s := &Summary{Path: path}
	if err := querySummary(ctx, db, path, format, s); err != nil {
		return nil, err
	}

	if tbl != nil {
		if resolved := int64(tbl.Len() - tbl.Unresolved()); int64(tbl.Len()) != s.Rows || resolved != s.Resolved {
			log.Warn("checkpoint and table disagree",
				"path", path,
				"file_rows", s.Rows,
				"table_rows", tbl.Len(),
				"file_resolved", s.Resolved,
				"table_resolved", resolved)
		}
		if err := addPercentiles(s, tbl.Results(), opts.Accuracy); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func source(format checkpoint.Format) string {
	if format == checkpoint.FormatParquet {
		return `read_parquet($1)`
	}
	return `read_csv($1, header = true, nullstr = '', types = {'stamp': 'BIGINT', 'Velocity_Major': 'DOUBLE'})`
}

func querySummary(ctx context.Context, db *sql.DB, path string, format checkpoint.Format, s *Summary) error {
	query := `
		WITH v AS (
			SELECT
				stamp,
				CASE WHEN isnan("Velocity_Major") THEN NULL ELSE "Velocity_Major" END AS vm
			FROM ` + source(format) + `
		)
		SELECT
			count(*),
			count(vm),
			coalesce(min(stamp), 0),
			coalesce(max(stamp), 0),
			min(vm), max(vm), avg(vm)
		FROM v
	`

	var minV, maxV, meanV sql.NullFloat64
	err := db.QueryRowContext(ctx, query, path).Scan(
		&s.Rows, &s.Resolved, &s.FirstStamp, &s.LastStamp,
		&minV, &maxV, &meanV,
	)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", path, err)
	}

	s.Unresolved = s.Rows - s.Resolved
	s.Min = minV.Float64
	s.Max = maxV.Float64
	s.Mean = meanV.Float64
	return nil
}

func addPercentiles(s *Summary, results []float64, accuracy float64) error {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = defaults.DefaultSketchAccuracy
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return fmt.Errorf("create sketch: %w", err)
	}

	for _, v := range results {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if err := sketch.Add(v); err != nil {
			return fmt.Errorf("sketch add: %w", err)
		}
	}
	if sketch.IsEmpty() {
		return nil
	}

	qs, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99})
	if err != nil {
		return fmt.Errorf("sketch quantiles: %w", err)
	}
	s.P50, s.P90, s.P99 = qs[0], qs[1], qs[2]
	return nil
}
