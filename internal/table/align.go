package table

import (
	"fmt"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/series"
)

// Align inner-joins the station series on (stamp, Time), left to right,
// keeping the row order of the first series. Series i becomes column VM<i>
// and every row starts unresolved.
//
// Align fails without producing a table when any series is empty, when a
// series repeats a join key, or when no key is common to all series.
func Align(all []*series.Series) (*Table, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("no series to align: %w", errors.ErrEmptySeries)
	}

	for i, s := range all {
		if s == nil || s.Len() == 0 {
			return nil, fmt.Errorf("series %d (%s): %w", i, seriesName(s), errors.ErrEmptySeries)
		}
	}

	first := all[0]
	if err := checkUnique(first); err != nil {
		return nil, err
	}

	// Rows surviving the join so far, in first-series order.
	keys := make([]series.Key, len(first.Points))
	values := make([][]float64, len(first.Points))
	for i, p := range first.Points {
		keys[i] = p.Key()
		values[i] = append(make([]float64, 0, len(all)), p.Value)
	}

	for _, s := range all[1:] {
		if err := checkUnique(s); err != nil {
			return nil, err
		}

		index := make(map[series.Key]float64, len(s.Points))
		for _, p := range s.Points {
			index[p.Key()] = p.Value
		}

		n := 0
		for i, k := range keys {
			v, ok := index[k]
			if !ok {
				continue
			}
			keys[n] = k
			values[n] = append(values[i], v)
			n++
		}
		keys = keys[:n]
		values = values[:n]
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%d series: %w", len(all), errors.ErrNoCommonRows)
	}

	t := NewWithWidth(len(all))
	t.rows = make([]Row, len(keys))
	for i, k := range keys {
		t.rows[i] = Row{
			Stamp:  k.Stamp,
			Time:   k.Time,
			Result: Unresolved,
			Values: values[i],
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func checkUnique(s *series.Series) error {
	seen := make(map[int64]struct{}, len(s.Points))
	for _, p := range s.Points {
		if _, ok := seen[p.Stamp]; ok {
			return fmt.Errorf("series %s: stamp %d: %w", seriesName(s), p.Stamp, errors.ErrDuplicateStamp)
		}
		seen[p.Stamp] = struct{}{}
	}
	return nil
}

func seriesName(s *series.Series) string {
	if s == nil {
		return "<nil>"
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}
