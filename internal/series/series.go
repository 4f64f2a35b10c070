// Package series reads per-station velocity time series.
//
// A station series is a CSV file with a header row naming at least the
// columns stamp (unix seconds), Time (free text) and Velocity_Major. Extra
// columns are ignored. Empty or NaN velocity cells read as NaN.
package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xtxerr/velinterp/internal/errors"
)

// Column names of a station series file.
const (
	ColumnStamp    = "stamp"
	ColumnTime     = "Time"
	ColumnVelocity = "Velocity_Major"
)

// Point is one observation of a series.
type Point struct {
	Stamp int64
	Time  string
	Value float64
}

// Key returns the join key of the point.
func (p Point) Key() Key {
	return Key{Stamp: p.Stamp, Time: p.Time}
}

// Key identifies a row across series: the time axis value plus its
// companion ordering column.
type Key struct {
	Stamp int64
	Time  string
}

// Series is an ordered velocity time series of one station.
type Series struct {
	Name   string
	Path   string
	Points []Point
}

// Len returns the number of points.
func (s *Series) Len() int {
	return len(s.Points)
}

// ReadFile reads a station series from a CSV file.
func ReadFile(name, path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("station %s: %s: %w", name, path, errors.ErrMissingSeries)
		}
		return nil, fmt.Errorf("open series %s: %w", path, err)
	}
	defer f.Close()

	s, err := Read(name, f)
	if err != nil {
		return nil, fmt.Errorf("station %s: %s: %w", name, path, err)
	}
	s.Path = path
	return s, nil
}

// Read parses a station series from r.
func Read(name string, r io.Reader) (*Series, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.ErrEmptySeries
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformedSeries, err.Error())
	}

	idxStamp, idxTime, idxValue := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case ColumnStamp:
			idxStamp = i
		case ColumnTime:
			idxTime = i
		case ColumnVelocity:
			idxValue = i
		}
	}
	if idxStamp < 0 || idxTime < 0 || idxValue < 0 {
		return nil, fmt.Errorf("header %v lacks %s/%s/%s: %w",
			header, ColumnStamp, ColumnTime, ColumnVelocity, errors.ErrMalformedSeries)
	}

	s := &Series{Name: name}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(errors.ErrMalformedSeries, err.Error())
		}

		stamp, err := strconv.ParseInt(strings.TrimSpace(rec[idxStamp]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: stamp %q: %w", line, rec[idxStamp], errors.ErrMalformedSeries)
		}
		value, err := ParseValue(rec[idxValue])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s %q: %w", line, ColumnVelocity, rec[idxValue], errors.ErrMalformedSeries)
		}

		s.Points = append(s.Points, Point{
			Stamp: stamp,
			Time:  rec[idxTime],
			Value: value,
		})
	}

	if len(s.Points) == 0 {
		return nil, errors.ErrEmptySeries
	}
	return s, nil
}

// ParseValue parses a velocity cell. Empty cells and NaN spellings map to NaN.
func ParseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// FormatValue renders a value so that ParseValue returns the identical
// float64. NaN renders as an empty cell.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
