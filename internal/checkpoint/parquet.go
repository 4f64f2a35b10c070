package checkpoint

import (
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/table"
)

// columnsMetadataKey stores the surface column names, comma separated, in
// the parquet footer.
const columnsMetadataKey = "velinterp.columns"

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// CheckpointRow is one table row in Parquet format. Result column naming
// matches the CSV header so queries work on either format.
type CheckpointRow struct {
	Stamp  int64     `parquet:"stamp"`
	Time   string    `parquet:"Time,zstd"`
	Result float64   `parquet:"Velocity_Major"`
	Values []float64 `parquet:"values,list"`
}

// ParquetCodec reads and writes checkpoints as Parquet.
type ParquetCodec struct {
	Compression CompressionType
}

// Encode writes t to w.
func (c *ParquetCodec) Encode(w io.Writer, t *table.Table) error {
	writer := parquet.NewGenericWriter[CheckpointRow](w,
		parquet.Compression(getCompression(c.Compression)),
		parquet.KeyValueMetadata(columnsMetadataKey, strings.Join(t.Columns(), ",")),
	)

	const chunk = 4096
	rows := make([]CheckpointRow, 0, chunk)
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		rows = append(rows, CheckpointRow{
			Stamp:  r.Stamp,
			Time:   r.Time,
			Result: r.Result,
			Values: r.Values,
		})
		if len(rows) == chunk {
			if _, err := writer.Write(rows); err != nil {
				writer.Close()
				return fmt.Errorf("write rows: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Decode reads a table from r.
func (c *ParquetCodec) Decode(r io.ReaderAt, size int64) (*table.Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCheckpointRead, err.Error())
	}

	names, ok := f.Lookup(columnsMetadataKey)
	if !ok {
		return nil, fmt.Errorf("missing %s metadata: %w", columnsMetadataKey, errors.ErrCheckpointRead)
	}
	var columns []string
	if names != "" {
		columns = strings.Split(names, ",")
	}

	reader := parquet.NewGenericReader[CheckpointRow](io.NewSectionReader(r, 0, size))
	defer reader.Close()

	t := table.New(columns)
	buf := make([]CheckpointRow, 4096)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			row := buf[i]
			if appendErr := t.Append(table.Row{
				Stamp:  row.Stamp,
				Time:   strings.Clone(row.Time),
				Result: row.Result,
				Values: row.Values,
			}); appendErr != nil {
				return nil, errors.Wrap(errors.ErrCheckpointRead, appendErr.Error())
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCheckpointRead, err.Error())
		}
		if n == 0 {
			break
		}
	}

	if int64(t.Len()) != f.NumRows() {
		return nil, fmt.Errorf("read %d of %d rows: %w", t.Len(), f.NumRows(), errors.ErrCheckpointRead)
	}
	return t, nil
}
