package table

import "fmt"

// Range is a half-open row window [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of rows in the window.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// NextBatch returns the window starting at the first unresolved row at or
// after from, at most size rows long and clipped to the table. It returns
// false when no unresolved row remains past from.
//
// The window may contain rows that are already resolved (a gap followed by
// finished rows); callers dispatch only the unresolved rows inside it.
func (t *Table) NextBatch(from, size int) (Range, bool) {
	if size <= 0 {
		size = 1
	}
	first := t.FirstUnresolved(from)
	if first < 0 {
		return Range{}, false
	}
	end := first + size
	if end > len(t.rows) {
		end = len(t.rows)
	}
	return Range{Start: first, End: end}, true
}

// PendingIn returns the unresolved row indices inside r, in order.
func (t *Table) PendingIn(r Range) []int {
	var out []int
	for i := r.Start; i < r.End && i < len(t.rows); i++ {
		if !t.rows[i].Resolved() {
			out = append(out, i)
		}
	}
	return out
}

// EstimateBatches returns the number of batches needed for the currently
// unresolved rows if they were packed contiguously. It is used for progress
// reporting only.
func (t *Table) EstimateBatches(size int) int {
	if size <= 0 {
		size = 1
	}
	n := t.Unresolved()
	return (n + size - 1) / size
}
