// Package checkpoint persists the aligned table between batches.
//
// A checkpoint is both the resumption state and the output so far. Saves
// replace the whole file atomically: a concurrent or later Load sees either
// the previous checkpoint or the new one, never a partial write.
//
// Two on-disk formats are supported, selected by file extension:
//   - .csv: delimited text, unresolved results as empty cells
//   - .parquet: columnar, surface values as a list column
package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/logging"
	"github.com/xtxerr/velinterp/internal/table"
)

var log = logging.Component("checkpoint")

// Format names a checkpoint encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatForPath picks the format from the file extension. Anything other
// than .parquet is CSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return FormatParquet
	}
	return FormatCSV
}

// Codec encodes and decodes a table.
type Codec interface {
	Encode(w io.Writer, t *table.Table) error
	Decode(r io.ReaderAt, size int64) (*table.Table, error)
}

// Store loads and saves checkpoints.
type Store interface {
	// Load returns the table at path. The boolean is false, with a nil
	// error, when no checkpoint exists yet.
	Load(path string) (*table.Table, bool, error)

	// Save atomically replaces the checkpoint at path.
	Save(t *table.Table, path string) error
}

// FileStore is the filesystem Store.
type FileStore struct {
	// Compression applies to parquet checkpoints.
	Compression CompressionType
}

// NewFileStore creates a FileStore.
func NewFileStore(compression CompressionType) *FileStore {
	return &FileStore{Compression: compression}
}

func (s *FileStore) codec(path string) Codec {
	if FormatForPath(path) == FormatParquet {
		return &ParquetCodec{Compression: s.Compression}
	}
	return CSVCodec{}
}

// Load reads the checkpoint at path.
func (s *FileStore) Load(path string) (*table.Table, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open checkpoint %s: %w", path, errors.Wrap(errors.ErrCheckpointRead, err.Error()))
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat checkpoint %s: %w", path, errors.Wrap(errors.ErrCheckpointRead, err.Error()))
	}

	t, err := s.codec(path).Decode(f, stat.Size())
	if err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, false, fmt.Errorf("checkpoint %s: %w", path, err)
	}

	log.Debug("checkpoint loaded", "path", path, "rows", t.Len(), "unresolved", t.Unresolved())
	return t, true, nil
}

// Save writes t to a temporary file next to path and renames it over path.
func (s *FileStore) Save(t *table.Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", errors.Wrap(errors.ErrCheckpointWrite, err.Error()))
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("create pending checkpoint %s: %w", path, errors.Wrap(errors.ErrCheckpointWrite, err.Error()))
	}
	defer pf.Cleanup()

	if err := s.codec(path).Encode(pf, t); err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", path, errors.Wrap(errors.ErrCheckpointWrite, err.Error()))
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", path, errors.Wrap(errors.ErrCheckpointWrite, err.Error()))
	}

	log.Debug("checkpoint saved", "path", path, "rows", t.Len(), "unresolved", t.Unresolved())
	return nil
}
