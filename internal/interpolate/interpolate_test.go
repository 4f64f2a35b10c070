package interpolate

import (
	"math"
	"testing"

	"github.com/xtxerr/velinterp/internal/errors"
)

var triangle = []SurfacePoint{
	{Lat: 41.0, Lon: -71.0, Value: 1.20},
	{Lat: 41.1, Lon: -71.0, Value: -0.80},
	{Lat: 41.0, Lon: -71.2, Value: 0.35},
}

func TestCoincidentQuery(t *testing.T) {
	for _, method := range []string{MethodIDW, MethodPlane} {
		t.Run(method, func(t *testing.T) {
			interp, err := New(method, Options{IDWPower: 2})
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			for i, p := range triangle {
				task := &Task{
					Surface:   triangle,
					Query:     Point{Name: "Q", Lat: p.Lat, Lon: p.Lon},
					Method:    interp,
					Precision: 2,
				}
				got, err := task.Run()
				if err != nil {
					t.Fatalf("point %d: Run: %v", i, err)
				}
				if math.Abs(got-p.Value) > 0.005 {
					t.Errorf("point %d: expected %v, got %v", i, p.Value, got)
				}
			}
		})
	}
}

func TestPlaneIsExactForLinearField(t *testing.T) {
	// v = 2 + 3*lat - lon
	f := func(lat, lon float64) float64 { return 2 + 3*lat - lon }
	var surface []SurfacePoint
	for _, c := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 2}} {
		surface = append(surface, SurfacePoint{Lat: c[0], Lon: c[1], Value: f(c[0], c[1])})
	}

	got, err := Plane{}.Interpolate(surface, Point{Lat: 0.25, Lon: 0.75})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if want := f(0.25, 0.75); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestIDWBetweenPoints(t *testing.T) {
	surface := []SurfacePoint{
		{Lat: 0, Lon: 0, Value: 0},
		{Lat: 0, Lon: 2, Value: 10},
	}
	m := &IDW{Power: 2}

	mid, err := m.Interpolate(surface, Point{Lat: 0, Lon: 1})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if math.Abs(mid-5) > 1e-12 {
		t.Errorf("midpoint: expected 5, got %v", mid)
	}

	near, _ := m.Interpolate(surface, Point{Lat: 0, Lon: 0.5})
	if !(near > 0 && near < 5) {
		t.Errorf("expected value pulled toward the nearer point, got %v", near)
	}
}

func TestMean(t *testing.T) {
	got, err := Mean{}.Interpolate(triangle, Point{})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if want := (1.20 - 0.80 + 0.35) / 3; math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTaskErrors(t *testing.T) {
	plane := Plane{}
	mean := Mean{}

	tests := []struct {
		name   string
		task   Task
		want   error
		isTask bool
	}{
		{
			name:   "no surface points",
			task:   Task{Method: mean},
			want:   errors.ErrNoSurfacePoints,
			isTask: true,
		},
		{
			name:   "nan value",
			task:   Task{Method: mean, Surface: []SurfacePoint{{Value: math.NaN()}}},
			want:   errors.ErrNonFiniteInput,
			isTask: true,
		},
		{
			name:   "inf query",
			task:   Task{Method: mean, Surface: triangle, Query: Point{Lat: math.Inf(1)}},
			want:   errors.ErrNonFiniteInput,
			isTask: true,
		},
		{
			name: "collinear plane",
			task: Task{Method: plane, Surface: []SurfacePoint{
				{Lat: 0, Lon: 0, Value: 1}, {Lat: 1, Lon: 1, Value: 2}, {Lat: 2, Lon: 2, Value: 3},
			}},
			want:   errors.ErrDegenerateGeometry,
			isTask: true,
		},
		{
			name:   "plane with two points",
			task:   Task{Method: plane, Surface: triangle[:2]},
			want:   errors.ErrDegenerateGeometry,
			isTask: true,
		},
		{
			name: "non-finite result",
			task: Task{Method: InterpolatorFunc(func([]SurfacePoint, Point) (float64, error) {
				return math.Inf(-1), nil
			}), Surface: triangle},
			want:   errors.ErrNonFiniteInput,
			isTask: true,
		},
		{
			name: "untagged strategy error",
			task: Task{Method: InterpolatorFunc(func([]SurfacePoint, Point) (float64, error) {
				return 0, errors.New("solver did not converge")
			}), Surface: triangle},
			want:   errors.ErrInterpolation,
			isTask: true,
		},
		{
			name: "strategy error with a fatal category",
			task: Task{Method: InterpolatorFunc(func([]SurfacePoint, Point) (float64, error) {
				return 0, errors.ErrCheckpointWrite
			}), Surface: triangle},
			want:   errors.ErrInterpolation,
			isTask: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.task.Run()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if errors.IsTaskError(err) != tt.isTask {
				t.Errorf("IsTaskError(%v) = %v", err, !tt.isTask)
			}
			if errors.IsFatal(err) {
				t.Errorf("task error must not be fatal: %v", err)
			}
		})
	}
}

func TestNewTaskCopiesInputs(t *testing.T) {
	lats := []float64{0, 1, 0}
	lons := []float64{0, 0, 1}
	values := []float64{1, 2, 3}

	task, err := NewTask(Mean{}, 2, Point{Name: "Q"}, lats, lons, values)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	values[0] = 100

	got, err := task.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	if _, err := NewTask(Mean{}, 2, Point{}, lats[:2], lons, values); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{1.234, 2, 1.23},
		{1.235, 2, 1.24},
		{-1.235, 2, -1.24},
		{0.004, 2, 0},
		{2.5, 0, 3},
		{12.3456, 4, 12.3456},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}

func TestNewUnknownMethod(t *testing.T) {
	_, err := New("kriging", Options{})
	if !errors.IsConfigError(err) {
		t.Errorf("expected config error, got %v", err)
	}
}
