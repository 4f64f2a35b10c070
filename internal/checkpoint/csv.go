package checkpoint

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/series"
	"github.com/xtxerr/velinterp/internal/table"
)

// CSVCodec reads and writes checkpoints as comma-separated text with a
// header row: stamp, Time, Velocity_Major, VM0..VMn-1.
//
// Floats are written in shortest round-trip form so a decode returns the
// bit-identical value. NaN is an empty cell, which is also how unresolved
// results look.
type CSVCodec struct{}

// Encode writes t to w.
func (CSVCodec) Encode(w io.Writer, t *table.Table) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	if err := cw.Write(t.Header()); err != nil {
		return err
	}

	rec := make([]string, 3+t.Width())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		rec[0] = strconv.FormatInt(r.Stamp, 10)
		rec[1] = r.Time
		rec[table.ResultPosition] = series.FormatValue(r.Result)
		for j, v := range r.Values {
			rec[3+j] = series.FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// Decode reads a table from r.
func (CSVCodec) Decode(r io.ReaderAt, size int64) (*table.Table, error) {
	cr := csv.NewReader(io.NewSectionReader(r, 0, size))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: %w", errors.ErrCheckpointRead)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCheckpointRead, err.Error())
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	header = append([]string(nil), header...)

	t := table.New(header[3:])
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(errors.ErrCheckpointRead, err.Error())
		}

		stamp, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: stamp %q: %w", line, rec[0], errors.ErrCheckpointRead)
		}
		result, err := series.ParseValue(rec[table.ResultPosition])
		if err != nil {
			return nil, fmt.Errorf("line %d: result %q: %w", line, rec[table.ResultPosition], errors.ErrCheckpointRead)
		}
		values := make([]float64, len(rec)-3)
		for j := range values {
			v, err := series.ParseValue(rec[3+j])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s %q: %w", line, header[3+j], rec[3+j], errors.ErrCheckpointRead)
			}
			values[j] = v
		}

		if err := t.Append(table.Row{Stamp: stamp, Time: rec[1], Result: result, Values: values}); err != nil {
			return nil, errors.Wrap(errors.ErrCheckpointRead, err.Error())
		}
	}
	return t, nil
}

func checkHeader(header []string) error {
	if len(header) < 3 ||
		header[0] != table.StampColumn ||
		header[1] != table.TimeColumn ||
		header[table.ResultPosition] != table.ResultColumn {
		return fmt.Errorf("unexpected header %v: %w", header, errors.ErrCheckpointRead)
	}
	return nil
}
