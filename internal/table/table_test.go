package table

import (
	"math"
	"strconv"
	"testing"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/series"
)

func mkSeries(name string, pts ...series.Point) *series.Series {
	return &series.Series{Name: name, Points: pts}
}

func pt(stamp int64, v float64) series.Point {
	return series.Point{Stamp: stamp, Time: "t" + itoa(stamp), Value: v}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// newTable builds an n-row, 1-column table; rows listed in resolved get a
// result, the rest stay unresolved.
func newTable(t *testing.T, n int, resolved ...int) *Table {
	t.Helper()
	tbl := NewWithWidth(1)
	for i := 0; i < n; i++ {
		if err := tbl.Append(Row{Stamp: int64(i), Time: itoa(int64(i)), Result: Unresolved, Values: []float64{float64(i)}}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	for _, i := range resolved {
		if err := tbl.Resolve(i, int64(i), 1); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	return tbl
}

func TestAlignInnerJoin(t *testing.T) {
	a := mkSeries("A", pt(1, 1.0), pt(2, 2.0), pt(3, 3.0), pt(4, 4.0))
	b := mkSeries("B", pt(4, 40.0), pt(2, 20.0), pt(3, 30.0))
	c := mkSeries("C", pt(2, 200.0), pt(4, 400.0), pt(5, 500.0))

	tbl, err := Align([]*series.Series{a, b, c})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}

	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if tbl.Width() != 3 {
		t.Fatalf("expected 3 columns, got %d", tbl.Width())
	}

	// Order follows the first series
	r0, r1 := tbl.Row(0), tbl.Row(1)
	if r0.Stamp != 2 || r1.Stamp != 4 {
		t.Errorf("expected stamps 2,4 got %d,%d", r0.Stamp, r1.Stamp)
	}
	if r0.Values[0] != 2 || r0.Values[1] != 20 || r0.Values[2] != 200 {
		t.Errorf("unexpected row 0 values: %v", r0.Values)
	}
	if r1.Values[0] != 4 || r1.Values[1] != 40 || r1.Values[2] != 400 {
		t.Errorf("unexpected row 1 values: %v", r1.Values)
	}
	if r0.Time != "t2" {
		t.Errorf("expected Time t2, got %q", r0.Time)
	}

	if tbl.Unresolved() != 2 {
		t.Errorf("expected all rows unresolved, got %d", tbl.Unresolved())
	}

	want := []string{"stamp", "Time", "Velocity_Major", "VM0", "VM1", "VM2"}
	got := tbl.Header()
	if len(got) != len(want) {
		t.Fatalf("header %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAlignJoinsOnTimeToo(t *testing.T) {
	a := mkSeries("A", series.Point{Stamp: 1, Time: "x", Value: 1})
	b := mkSeries("B", series.Point{Stamp: 1, Time: "y", Value: 2})

	_, err := Align([]*series.Series{a, b})
	if !errors.Is(err, errors.ErrNoCommonRows) {
		t.Errorf("expected ErrNoCommonRows, got %v", err)
	}
}

func TestAlignErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []*series.Series
		want error
	}{
		{"no series", nil, errors.ErrEmptySeries},
		{"empty series", []*series.Series{mkSeries("A", pt(1, 1)), mkSeries("B")}, errors.ErrEmptySeries},
		{"no common keys", []*series.Series{mkSeries("A", pt(1, 1)), mkSeries("B", pt(2, 2))}, errors.ErrNoCommonRows},
		{"duplicate stamp", []*series.Series{mkSeries("A", pt(1, 1), pt(1, 2))}, errors.ErrDuplicateStamp},
		{"duplicate stamp later", []*series.Series{mkSeries("A", pt(1, 1)), mkSeries("B", pt(1, 1), pt(1, 3))}, errors.ErrDuplicateStamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Align(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tbl != nil {
				t.Error("expected no table on error")
			}
			if !errors.IsInputError(err) {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}

func TestNextBatchBound(t *testing.T) {
	tbl := newTable(t, 2500)

	var sizes []int
	from := 0
	for {
		rng, ok := tbl.NextBatch(from, 1000)
		if !ok {
			break
		}
		sizes = append(sizes, rng.Len())
		for _, i := range tbl.PendingIn(rng) {
			if err := tbl.Resolve(i, int64(i), 0.5); err != nil {
				t.Fatalf("Resolve: %v", err)
			}
		}
		from = rng.End
	}

	if len(sizes) != 3 || sizes[0] != 1000 || sizes[1] != 1000 || sizes[2] != 500 {
		t.Errorf("expected batches [1000 1000 500], got %v", sizes)
	}
	if tbl.Unresolved() != 0 {
		t.Errorf("expected no unresolved rows, got %d", tbl.Unresolved())
	}
}

func TestNextBatchGap(t *testing.T) {
	// Rows 0-4 and 6-10 resolved, row 5 is the only gap.
	tbl := newTable(t, 11, 0, 1, 2, 3, 4, 6, 7, 8, 9, 10)

	rng, ok := tbl.NextBatch(0, 1000)
	if !ok {
		t.Fatal("expected a batch")
	}
	if rng.Start != 5 || rng.End != 11 {
		t.Errorf("expected [5,11), got %s", rng)
	}

	pending := tbl.PendingIn(rng)
	if len(pending) != 1 || pending[0] != 5 {
		t.Fatalf("expected only row 5 pending, got %v", pending)
	}

	if err := tbl.Resolve(5, 5, 2.5); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := tbl.NextBatch(0, 1000); ok {
		t.Error("expected no further batch")
	}
}

func TestNextBatchFromFrontier(t *testing.T) {
	tbl := newTable(t, 10)

	rng, ok := tbl.NextBatch(4, 3)
	if !ok || rng.Start != 4 || rng.End != 7 {
		t.Errorf("expected [4,7), got %s ok=%v", rng, ok)
	}

	if _, ok := tbl.NextBatch(10, 3); ok {
		t.Error("expected no batch past the end")
	}
}

func TestEstimateBatches(t *testing.T) {
	tbl := newTable(t, 2500, 0, 1)
	if got := tbl.EstimateBatches(1000); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := newTable(t, 0).EstimateBatches(1000); got != 0 {
		t.Errorf("expected 0 for empty table, got %d", got)
	}
}

func TestResolve(t *testing.T) {
	tbl := newTable(t, 3)

	if err := tbl.Resolve(1, 99, 1); err == nil {
		t.Error("expected stamp mismatch error")
	}
	if err := tbl.Resolve(3, 3, 1); err == nil {
		t.Error("expected out of range error")
	}
	if err := tbl.Resolve(1, 1, math.NaN()); !errors.Is(err, errors.ErrNonFiniteInput) {
		t.Errorf("expected ErrNonFiniteInput, got %v", err)
	}
	if err := tbl.Resolve(1, 1, math.Inf(1)); err == nil {
		t.Error("expected error for +Inf")
	}
	if tbl.IsResolved(1) {
		t.Error("row 1 should still be unresolved")
	}

	if err := tbl.Resolve(1, 1, -0.42); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !tbl.IsResolved(1) || tbl.Row(1).Result != -0.42 {
		t.Errorf("row 1 not resolved correctly: %+v", tbl.Row(1))
	}
}

func TestValidateAndClone(t *testing.T) {
	tbl := newTable(t, 3, 1)

	c := tbl.Clone()
	if err := c.Resolve(0, 0, 9); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tbl.IsResolved(0) {
		t.Error("clone shares state with original")
	}

	dup := NewWithWidth(1)
	dup.Append(Row{Stamp: 1, Result: Unresolved, Values: []float64{1}})
	dup.Append(Row{Stamp: 1, Result: Unresolved, Values: []float64{2}})
	if err := dup.Validate(); !errors.Is(err, errors.ErrDuplicateStamp) {
		t.Errorf("expected ErrDuplicateStamp, got %v", err)
	}

	if err := dup.Append(Row{Stamp: 2, Values: []float64{1, 2}}); err == nil {
		t.Error("expected width mismatch error")
	}
}
