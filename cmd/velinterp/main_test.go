package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtxerr/velinterp/internal/checkpoint"
	"github.com/xtxerr/velinterp/internal/config"
	"github.com/xtxerr/velinterp/internal/route"
)

const testRoute = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <name>Test Passage</name>
    <rtept lat="0" lon="0"><name>Q1</name></rtept>
    <rtept lat="0" lon="1"><name>EAST</name></rtept>
    <rtept lat="1" lon="0"><name>NORTH</name></rtept>
    <rtept lat="0" lon="-1"><name>WEST</name></rtept>
  </rte>
</gpx>
`

// writeStation writes a velocity CSV with the given values at stamps
// 1000, 1060, ...
func writeStation(t *testing.T, dir, name string, values ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("stamp,Time,Velocity_Major\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%d,t%d,%s\n", 1000+60*i, i, v)
	}
	path := filepath.Join(dir, name, "velocity.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, checkpointName string) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Paths.StationsDir = filepath.Join(root, "stations")
	cfg.Paths.StationIndex = filepath.Join(root, "stations.json")
	cfg.Paths.WaypointsDir = filepath.Join(root, "waypoints")
	cfg.Paths.CheckpointName = checkpointName
	cfg.Pipeline.BatchSize = 2
	cfg.Pipeline.Workers = 2

	writeStation(t, cfg.Paths.StationsDir, "EAST", "1.5", "1.5", "NaN", "1.5", "1.5")
	writeStation(t, cfg.Paths.StationsDir, "NORTH", "1.5", "1.5", "1.5", "1.5", "1.5")
	writeStation(t, cfg.Paths.StationsDir, "WEST", "1.5", "1.5", "1.5", "1.5", "1.5")

	routePath := filepath.Join(root, "passage.gpx")
	if err := os.WriteFile(routePath, []byte(testRoute), 0644); err != nil {
		t.Fatal(err)
	}
	return cfg, routePath
}

func TestRun(t *testing.T) {
	for _, name := range []string{"velocity.csv", "velocity.parquet"} {
		t.Run(name, func(t *testing.T) {
			cfg, routePath := testConfig(t, name)

			if err := run(context.Background(), cfg, routePath); err != nil {
				t.Fatalf("run: %v", err)
			}

			path := cfg.CheckpointPath("Q1")
			tbl, ok, err := checkpoint.NewFileStore(checkpoint.CompressionZstd).Load(path)
			if err != nil || !ok {
				t.Fatalf("Load %s: ok=%v err=%v", path, ok, err)
			}
			if tbl.Len() != 5 || tbl.Width() != 3 {
				t.Fatalf("unexpected table %dx%d", tbl.Len(), tbl.Width())
			}
			for i, v := range tbl.Results() {
				if i == 2 {
					if !math.IsNaN(v) {
						t.Errorf("row 2 has a NaN input and should stay unresolved, got %v", v)
					}
					continue
				}
				if v != 1.5 {
					t.Errorf("row %d = %v, want 1.5", i, v)
				}
			}

			// The query waypoint is registered next to its checkpoint.
			if _, err := os.Stat(filepath.Join(cfg.WaypointFolder("Q1"), "Q1.gpx")); err != nil {
				t.Errorf("waypoint GPX: %v", err)
			}
			idx, err := route.LoadStationIndex(cfg.Paths.StationIndex)
			if err != nil {
				t.Fatalf("LoadStationIndex: %v", err)
			}
			if _, ok := idx.Lookup("Q1"); !ok {
				t.Error("query waypoint missing from station index")
			}

			// A second run resumes from the checkpoint and changes nothing.
			before, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := run(context.Background(), cfg, routePath); err != nil {
				t.Fatalf("second run: %v", err)
			}
			after, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if name == "velocity.csv" && string(before) != string(after) {
				t.Errorf("checkpoint changed on resume:\n%s\n---\n%s", before, after)
			}
		})
	}
}

func TestRunMissingStation(t *testing.T) {
	cfg, routePath := testConfig(t, "velocity.csv")
	if err := os.RemoveAll(filepath.Join(cfg.Paths.StationsDir, "WEST")); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), cfg, routePath)
	if err == nil || !strings.Contains(err.Error(), "WEST") {
		t.Fatalf("expected missing series error naming WEST, got %v", err)
	}
	if _, statErr := os.Stat(cfg.CheckpointPath("Q1")); !os.IsNotExist(statErr) {
		t.Errorf("no checkpoint should be written, stat err = %v", statErr)
	}
}
