package pipeline

import (
	"strconv"
	"strings"
)

// JobKey identifies the job computing one row: the row index locates the
// row, the stamp guards against a result landing on a different row.
type JobKey struct {
	Row   int
	Stamp int64
}

// String returns "<row>/<stamp>".
func (k JobKey) String() string {
	var b strings.Builder
	b.Grow(24)
	b.WriteString(strconv.Itoa(k.Row))
	b.WriteByte('/')
	b.WriteString(strconv.FormatInt(k.Stamp, 10))
	return b.String()
}
