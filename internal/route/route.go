// Package route reads GPX routes and manages waypoint metadata.
//
// The first waypoint of a route is the query point; every other waypoint is
// a surface station whose velocity series is looked up in the station index.
package route

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/interpolate"
)

// Waypoint types.
const (
	TypeQuery       = "P"
	TypeHarmonic    = "H"
	TypeSubordinate = "S"
	TypeLocation    = "L"
)

// CodeSymbols maps a waypoint type to its GPX display symbol.
var CodeSymbols = map[string]string{
	TypeQuery:       "Waypoint",
	TypeHarmonic:    "Navaid, Blue",
	TypeSubordinate: "Navaid, White",
	TypeLocation:    "Flag, Blue",
}

// Waypoint is a named location of a route.
type Waypoint struct {
	Name   string
	Lat    float64
	Lon    float64
	Type   string
	Symbol string

	// Folder is the waypoint's output directory, set on registration.
	Folder string
}

// Point returns the waypoint as an interpolation query point.
func (w Waypoint) Point() interpolate.Point {
	return interpolate.Point{Name: w.Name, Lat: w.Lat, Lon: w.Lon}
}

// Route is an ordered list of waypoints.
type Route struct {
	Name      string
	Waypoints []Waypoint
}

// Query returns the waypoint being interpolated.
func (r *Route) Query() Waypoint {
	return r.Waypoints[0]
}

// Surface returns the stations surrounding the query point.
func (r *Route) Surface() []Waypoint {
	return r.Waypoints[1:]
}

// Coordinates returns the surface latitudes and longitudes in route order.
func (r *Route) Coordinates() (lats, lons []float64) {
	surface := r.Surface()
	lats = make([]float64, len(surface))
	lons = make([]float64, len(surface))
	for i, w := range surface {
		lats[i] = w.Lat
		lons[i] = w.Lon
	}
	return lats, lons
}

// =============================================================================
// GPX
// =============================================================================

type gpxDoc struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr,omitempty"`
	Creator   string     `xml:"creator,attr,omitempty"`
	Xmlns     string     `xml:"xmlns,attr,omitempty"`
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []gpxRoute `xml:"rte"`
}

type gpxRoute struct {
	Name   string     `xml:"name,omitempty"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Name string `xml:"name,omitempty"`
	Sym  string `xml:"sym,omitempty"`
	Type string `xml:"type,omitempty"`
}

// ReadFile parses the GPX route at path.
func ReadFile(path string) (*Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open route %s: %w", path, errors.Wrap(errors.ErrMalformedRoute, err.Error()))
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", path, err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return r, nil
}

// Parse reads a GPX document. Waypoints come from the first <rte>; a file
// without routes falls back to its top-level <wpt> elements. At least two
// waypoints are required: the query point and one station.
func Parse(r io.Reader) (*Route, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedRoute, err.Error())
	}

	var (
		name   string
		points []gpxPoint
	)
	if len(doc.Routes) > 0 {
		name = strings.TrimSpace(doc.Routes[0].Name)
		points = doc.Routes[0].Points
	} else {
		points = doc.Waypoints
	}

	if len(points) < 2 {
		return nil, fmt.Errorf("need a query point and at least one station, have %d waypoints: %w", len(points), errors.ErrMalformedRoute)
	}

	route := &Route{Name: name, Waypoints: make([]Waypoint, 0, len(points))}
	seen := make(map[string]int, len(points))
	for i, p := range points {
		w, err := p.waypoint()
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		if prev, ok := seen[w.Name]; ok {
			return nil, fmt.Errorf("waypoint %d: name %q repeats waypoint %d: %w", i, w.Name, prev, errors.ErrMalformedRoute)
		}
		seen[w.Name] = i
		route.Waypoints = append(route.Waypoints, w)
	}
	return route, nil
}

func (p gpxPoint) waypoint() (Waypoint, error) {
	name := strings.TrimSpace(p.Name)
	if err := checkName(name); err != nil {
		return Waypoint{}, err
	}

	lat, err := parseCoord(p.Lat, 90)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%s lat: %w", name, err)
	}
	lon, err := parseCoord(p.Lon, 180)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%s lon: %w", name, err)
	}

	return Waypoint{
		Name:   name,
		Lat:    lat,
		Lon:    lon,
		Type:   strings.TrimSpace(p.Type),
		Symbol: strings.TrimSpace(p.Sym),
	}, nil
}

// checkName rejects names that cannot be used as a folder name.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("missing name: %w", errors.ErrMalformedRoute)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q is not a valid folder name: %w", name, errors.ErrMalformedRoute)
	}
	return nil
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, errors.ErrMalformedRoute)
	}
	if math.IsNaN(v) || math.Abs(v) > limit {
		return 0, fmt.Errorf("%v out of range: %w", v, errors.ErrMalformedRoute)
	}
	return v, nil
}

// MarshalGPX encodes waypoints as a GPX document of <wpt> elements.
func MarshalGPX(waypoints ...Waypoint) ([]byte, error) {
	doc := gpxDoc{
		Version: "1.1",
		Creator: "velinterp",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
	}
	for _, w := range waypoints {
		doc.Waypoints = append(doc.Waypoints, gpxPoint{
			Lat:  formatCoord(w.Lat),
			Lon:  formatCoord(w.Lon),
			Name: w.Name,
			Sym:  w.Symbol,
			Type: w.Type,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
