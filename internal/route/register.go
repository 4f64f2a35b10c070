package route

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Register prepares the query waypoint's output folder under waypointsDir:
// the waypoint becomes type P with its symbol, the folder is created, a
// single-waypoint GPX file <folder>/<name>.gpx is written and the waypoint is
// added to the index, which is saved.
func Register(idx *StationIndex, w Waypoint, waypointsDir string) (Waypoint, error) {
	if err := checkName(w.Name); err != nil {
		return w, err
	}

	w.Folder = filepath.Join(waypointsDir, w.Name)
	w.Type = TypeQuery
	w.Symbol = CodeSymbols[w.Type]

	if err := os.MkdirAll(w.Folder, 0755); err != nil {
		return w, fmt.Errorf("create waypoint folder: %w", err)
	}
	if err := WriteGPX(w, GPXPath(w)); err != nil {
		return w, err
	}

	idx.Add(w)
	if err := idx.Save(); err != nil {
		return w, err
	}

	log.Info("waypoint registered", "waypoint", w.Name, "folder", w.Folder)
	return w, nil
}

// GPXPath returns <folder>/<name>.gpx.
func GPXPath(w Waypoint) string {
	return filepath.Join(w.Folder, w.Name+".gpx")
}

// WriteGPX atomically writes w as a one-waypoint GPX file.
func WriteGPX(w Waypoint, path string) error {
	data, err := MarshalGPX(w)
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write gpx %s: %w", path, err)
	}
	return nil
}
