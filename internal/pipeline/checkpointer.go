package pipeline

import (
	"fmt"

	"github.com/xtxerr/velinterp/internal/checkpoint"
	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/table"
)

// RowFailure records a task that failed without stopping the run.
type RowFailure struct {
	Key JobKey
	Err error
}

// Applied summarizes what a batch changed.
type Applied struct {
	Resolved int
	Failures []RowFailure
}

// Checkpointer writes batch results into the table and persists it.
type Checkpointer struct {
	store checkpoint.Store
	path  string
}

// NewCheckpointer creates a Checkpointer saving to path.
func NewCheckpointer(store checkpoint.Store, path string) *Checkpointer {
	return &Checkpointer{store: store, path: path}
}

// Path returns the checkpoint location.
func (c *Checkpointer) Path() string {
	return c.path
}

// Apply merges results into tbl and saves it.
//
// A fatal failure in any result, or a result whose key does not match its
// row, aborts before the table is touched. Recoverable task failures leave
// their rows unresolved and are reported in Applied.
func (c *Checkpointer) Apply(tbl *table.Table, results BatchResults) (Applied, error) {
	keys := results.Keys()

	for _, key := range keys {
		r := results[key]
		if !r.OK() && errors.IsFatal(r.Err) {
			return Applied{}, fmt.Errorf("job %s: %w", key, r.Err)
		}
		if key.Row < 0 || key.Row >= tbl.Len() {
			return Applied{}, fmt.Errorf("job %s: row out of range: %w", key, errors.ErrCheckpointMismatch)
		}
		if stamp := tbl.Row(key.Row).Stamp; stamp != key.Stamp {
			return Applied{}, fmt.Errorf("job %s: row holds stamp %d: %w", key, stamp, errors.ErrCheckpointMismatch)
		}
	}

	var applied Applied
	for _, key := range keys {
		r := results[key]
		if !r.OK() {
			applied.Failures = append(applied.Failures, RowFailure{Key: key, Err: r.Err})
			continue
		}
		if err := tbl.Resolve(key.Row, key.Stamp, r.Value); err != nil {
			applied.Failures = append(applied.Failures, RowFailure{Key: key, Err: err})
			continue
		}
		applied.Resolved++
	}

	if err := c.Save(tbl); err != nil {
		return applied, err
	}
	return applied, nil
}

// Save persists tbl.
func (c *Checkpointer) Save(tbl *table.Table) error {
	return c.store.Save(tbl, c.path)
}
