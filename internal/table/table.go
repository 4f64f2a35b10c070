// Package table holds the aligned velocity table: one row per time stamp,
// one value column per surface point and one result column for the
// interpolated velocity at the query point.
//
// The table is the single record of progress. A row is unresolved while its
// result is NaN; once a finite result is written it is never reset.
package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xtxerr/velinterp/internal/errors"
)

// Fixed column names. The result column sits at ResultPosition so the
// checkpoint reads like a station series (stamp, Time, Velocity_Major).
const (
	StampColumn    = "stamp"
	TimeColumn     = "Time"
	ResultColumn   = "Velocity_Major"
	ResultPosition = 2

	valueColumnPrefix = "VM"
)

// ValueColumn returns the position-derived name of surface column i.
func ValueColumn(i int) string {
	return valueColumnPrefix + strconv.Itoa(i)
}

// Unresolved is the result sentinel of a row that still needs work.
var Unresolved = math.NaN()

// Row is one time stamp of the table.
type Row struct {
	Stamp  int64
	Time   string
	Result float64
	Values []float64
}

// Resolved reports whether the row holds a computed result.
func (r *Row) Resolved() bool {
	return !math.IsNaN(r.Result)
}

// Table is the aligned time-series table.
//
// Table is not safe for concurrent use; the pipeline mutates it only
// between batches.
type Table struct {
	columns []string
	rows    []Row
}

// New creates an empty table with the given surface column names.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols}
}

// NewWithWidth creates an empty table with width position-named columns.
func NewWithWidth(width int) *Table {
	cols := make([]string, width)
	for i := range cols {
		cols[i] = ValueColumn(i)
	}
	return &Table{columns: cols}
}

// Append adds a row. The values slice is copied.
func (t *Table) Append(r Row) error {
	if len(r.Values) != len(t.columns) {
		return fmt.Errorf("row %d has %d values, table has %d columns", len(t.rows), len(r.Values), len(t.columns))
	}
	vals := make([]float64, len(r.Values))
	copy(vals, r.Values)
	r.Values = vals
	t.rows = append(t.rows, r)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of surface value columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Columns returns the surface value column names.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Header returns every column name in file order.
func (t *Table) Header() []string {
	h := make([]string, 0, len(t.columns)+3)
	h = append(h, StampColumn, TimeColumn)
	h = append(h, ResultColumn)
	return append(h, t.columns...)
}

// Row returns row i. The returned row shares its Values slice with the table
// and must not be modified.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Values returns a copy of the surface values of row i.
func (t *Table) Values(i int) []float64 {
	out := make([]float64, len(t.rows[i].Values))
	copy(out, t.rows[i].Values)
	return out
}

// IsResolved reports whether row i holds a computed result.
func (t *Table) IsResolved(i int) bool {
	return t.rows[i].Resolved()
}

// Unresolved returns the number of rows still lacking a result.
func (t *Table) Unresolved() int {
	n := 0
	for i := range t.rows {
		if !t.rows[i].Resolved() {
			n++
		}
	}
	return n
}

// FirstUnresolved returns the index of the first unresolved row at or after
// from, or -1 when there is none.
func (t *Table) FirstUnresolved(from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(t.rows); i++ {
		if !t.rows[i].Resolved() {
			return i
		}
	}
	return -1
}

// Resolve writes a computed result into row i. The stamp must match the row
// so a result can never land on the wrong row. Non-finite results are
// rejected; they would read back as unresolved or poison the column.
func (t *Table) Resolve(i int, stamp int64, v float64) error {
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", i, len(t.rows))
	}
	if t.rows[i].Stamp != stamp {
		return fmt.Errorf("row %d has stamp %d, result is for stamp %d", i, t.rows[i].Stamp, stamp)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("row %d stamp %d: result %v: %w", i, stamp, v, errors.ErrNonFiniteInput)
	}
	t.rows[i].Result = v
	return nil
}

// Results returns a copy of the result column.
func (t *Table) Results() []float64 {
	out := make([]float64, len(t.rows))
	for i := range t.rows {
		out[i] = t.rows[i].Result
	}
	return out
}

// Validate checks that stamps are unique and every row has one value per
// column.
func (t *Table) Validate() error {
	seen := make(map[int64]int, len(t.rows))
	for i := range t.rows {
		r := &t.rows[i]
		if len(r.Values) != len(t.columns) {
			return fmt.Errorf("row %d has %d values, table has %d columns", i, len(r.Values), len(t.columns))
		}
		if prev, ok := seen[r.Stamp]; ok {
			return fmt.Errorf("stamp %d at rows %d and %d: %w", r.Stamp, prev, i, errors.ErrDuplicateStamp)
		}
		seen[r.Stamp] = i
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := New(t.columns)
	c.rows = make([]Row, len(t.rows))
	for i, r := range t.rows {
		r.Values = append([]float64(nil), r.Values...)
		c.rows[i] = r
	}
	return c
}
