package series

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/velinterp/internal/logging"
)

var log = logging.Component("series")

// Source names a station and the file holding its series.
type Source struct {
	Name string
	Path string
}

// Loader reads station series concurrently. Stations sharing a file are read
// once.
type Loader struct {
	// Parallelism bounds concurrent reads; 0 means one per CPU.
	Parallelism int

	group singleflight.Group
}

// Load reads every source and returns the series in source order. The first
// failure cancels the remaining reads and is returned.
func (l *Loader) Load(ctx context.Context, sources []Source) ([]*Series, error) {
	limit := l.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	out := make([]*Series, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			v, err, shared := l.group.Do(src.Path, func() (interface{}, error) {
				return ReadFile(src.Name, src.Path)
			})
			if err != nil {
				return err
			}

			s := *v.(*Series)
			s.Name = src.Name
			out[i] = &s

			log.Debug("series loaded", "station", src.Name, "path", src.Path, "points", s.Len(), "shared", shared)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
