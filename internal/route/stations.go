package route

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/logging"
	"github.com/xtxerr/velinterp/internal/series"
)

var log = logging.Component("route")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Station is one entry of the station index.
type Station struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Type   string  `json:"type,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
	Folder string  `json:"folder,omitempty"`

	// VelocityCSV is the station's velocity series; empty means the default
	// location under the stations directory.
	VelocityCSV string `json:"velocity_csv,omitempty"`
}

// StationIndex maps station and waypoint names to their metadata. It is
// persisted as a JSON object keyed by name.
//
// StationIndex is safe for concurrent use.
type StationIndex struct {
	mu       sync.RWMutex
	path     string
	stations map[string]Station
}

// NewStationIndex returns an empty index that saves to path. An empty path
// keeps the index in memory only.
func NewStationIndex(path string) *StationIndex {
	return &StationIndex{path: path, stations: make(map[string]Station)}
}

// LoadStationIndex reads the index at path. A missing file yields an empty
// index that will be created on Save.
func LoadStationIndex(path string) (*StationIndex, error) {
	idx := NewStationIndex(path)
	if path == "" {
		return idx, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("station index absent", "path", path)
			return idx, nil
		}
		return nil, fmt.Errorf("read station index: %w", err)
	}

	if err := json.Unmarshal(data, &idx.stations); err != nil {
		return nil, fmt.Errorf("parse station index %s: %w", path, errors.Wrap(errors.ErrMalformedRoute, err.Error()))
	}
	if idx.stations == nil {
		idx.stations = make(map[string]Station)
	}
	for name, st := range idx.stations {
		if st.Name == "" {
			st.Name = name
			idx.stations[name] = st
		}
	}

	log.Debug("station index loaded", "path", path, "stations", len(idx.stations))
	return idx, nil
}

// Path returns where the index is saved.
func (i *StationIndex) Path() string {
	return i.path
}

// Lookup returns the station stored under name.
func (i *StationIndex) Lookup(name string) (Station, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	st, ok := i.stations[name]
	return st, ok
}

// Names returns the indexed names in sorted order.
func (i *StationIndex) Names() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	names := make([]string, 0, len(i.stations))
	for n := range i.stations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add stores a waypoint, replacing any entry of the same name. An existing
// velocity series path is kept.
func (i *StationIndex) Add(w Waypoint) {
	i.mu.Lock()
	defer i.mu.Unlock()

	st := Station{
		Name:   w.Name,
		Lat:    w.Lat,
		Lon:    w.Lon,
		Type:   w.Type,
		Symbol: w.Symbol,
		Folder: w.Folder,
	}
	if prev, ok := i.stations[w.Name]; ok {
		st.VelocityCSV = prev.VelocityCSV
	}
	i.stations[w.Name] = st
}

// Save atomically writes the index to its path.
func (i *StationIndex) Save() error {
	if i.path == "" {
		return nil
	}

	i.mu.RLock()
	data, err := json.MarshalIndent(i.stations, "", "  ")
	i.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode station index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(i.path), 0755); err != nil {
		return fmt.Errorf("create station index directory: %w", err)
	}
	if err := renameio.WriteFile(i.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write station index %s: %w", i.path, err)
	}
	return nil
}

// SeriesPath returns the velocity series file of a station: the indexed
// path when present, else <stationsDir>/<name>/<seriesFile>.
func (i *StationIndex) SeriesPath(name, stationsDir, seriesFile string) string {
	if st, ok := i.Lookup(name); ok && st.VelocityCSV != "" {
		return st.VelocityCSV
	}
	return filepath.Join(stationsDir, name, seriesFile)
}

// Sources resolves the series files of the route's surface stations.
// Every file must exist; a missing one is reported with the station name.
func (i *StationIndex) Sources(r *Route, stationsDir, seriesFile string) ([]series.Source, error) {
	surface := r.Surface()
	sources := make([]series.Source, len(surface))

	var missing []error
	for n, w := range surface {
		path := i.SeriesPath(w.Name, stationsDir, seriesFile)
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, fmt.Errorf("station %s: %s: %w", w.Name, path, errors.ErrMissingSeries))
			continue
		}
		sources[n] = series.Source{Name: w.Name, Path: path}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	return sources, nil
}
