// Package hrir loads binary HRIR measurement grids and interpolates
// direction-dependent stereo impulse responses between measurement points
// using a Delaunay triangulation of the (azimuth, elevation) plane.
package hrir

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerateInput indicates the measurement grid cannot be
	// triangulated (fewer than three points, or coincident points).
	ErrDegenerateInput = errors.New("hrir: degenerate measurement grid")

	// ErrNotFound indicates no triangle contains the query direction.
	ErrNotFound = errors.New("hrir: direction outside triangulated domain")
)

// epsilon absorbs floating-point jitter in circumcircle and barycentric
// containment tests.
const epsilon = 1.0 / 1048576.0

// Point is a single HRIR measurement direction. BufferIndex is the offset
// of its left-ear impulse response in the dataset's flat sample buffer;
// the right-ear block follows immediately at BufferIndex+SampleSize.
type Point struct {
	Azimuth     float64
	Elevation   float64
	BufferIndex int
}

// triangle caches everything needed at query time: vertex indices and the
// inverse 2x2 barycentric transform. The circumcircle is only needed while
// triangulating and lives in openTriangle.
type triangle struct {
	p1, p2, p3 int

	// Inverse of [[x1-x3, x2-x3], [y1-y3, y2-y3]], row-major.
	inv00, inv01, inv10, inv11 float64
}

type openTriangle struct {
	p1, p2, p3       int
	centerX, centerY float64
	radiusSq         float64
}

type edge struct {
	a, b int
}

// Dataset is an immutable triangulated HRIR measurement grid.
type Dataset struct {
	points       []Point
	triangles    []triangle
	samples      []float32
	sampleSize   int
	minElevation float64
	maxElevation float64
}

// NewDataset triangulates the given measurement points over the flat
// sample buffer. sampleSize is the impulse-response length per ear.
// The points and samples are retained; callers must not mutate them.
func NewDataset(points []Point, samples []float32, sampleSize int) (*Dataset, error) {
	if sampleSize <= 0 {
		return nil, fmt.Errorf("hrir: invalid sample size %d", sampleSize)
	}
	for i, p := range points {
		end := p.BufferIndex + 2*sampleSize
		if p.BufferIndex < 0 || end > len(samples) {
			return nil, fmt.Errorf("hrir: point %d buffer range [%d,%d) outside sample buffer of %d", i, p.BufferIndex, end, len(samples))
		}
	}

	triangles, err := triangulate(points)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		points:       points,
		triangles:    triangles,
		samples:      samples,
		sampleSize:   sampleSize,
		minElevation: math.Inf(1),
		maxElevation: math.Inf(-1),
	}
	for _, p := range points {
		if p.Elevation < d.minElevation {
			d.minElevation = p.Elevation
		}
		if p.Elevation > d.maxElevation {
			d.maxElevation = p.Elevation
		}
	}
	return d, nil
}

// SampleSize returns the impulse-response length per ear.
func (d *Dataset) SampleSize() int { return d.sampleSize }

// NumPoints returns the number of measurement directions.
func (d *Dataset) NumPoints() int { return len(d.points) }

// NumTriangles returns the number of triangles covering the grid.
func (d *Dataset) NumTriangles() int { return len(d.triangles) }

// MinElevation returns the grid's lowest measured elevation in degrees.
// Queries below it are clamped, not rejected.
func (d *Dataset) MinElevation() float64 { return d.minElevation }

// MaxElevation returns the grid's highest measured elevation in degrees.
func (d *Dataset) MaxElevation() float64 { return d.maxElevation }

// triangulate runs an incremental Delaunay pass over the points in the
// (azimuth, elevation) plane. The descending-X order array is consumed
// from the back, so the sweep point only moves right and a triangle whose
// circumcircle lies entirely left of it can be closed permanently.
func triangulate(points []Point) ([]triangle, error) {
	n := len(points)
	if n < 3 {
		return nil, fmt.Errorf("%w: need at least 3 points, got %d", ErrDegenerateInput, n)
	}

	// Vertex table: measurement points first, super-triangle vertices
	// appended past index n-1 so they can be stripped by index range.
	xs := make([]float64, n, n+3)
	ys := make([]float64, n, n+3)
	for i, p := range points {
		xs[i] = p.Azimuth
		ys[i] = p.Elevation
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < n; i++ {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	dx := maxX - minX
	dy := maxY - minY
	dmax := math.Max(dx, dy)
	if dmax == 0 {
		return nil, fmt.Errorf("%w: all points coincide", ErrDegenerateInput)
	}
	midX := (minX + maxX) / 2
	midY := (minY + maxY) / 2

	// Enclosing super-triangle, 20x the bounding extent.
	xs = append(xs, midX-20*dmax, midX, midX+20*dmax)
	ys = append(ys, midY-dmax, midY+20*dmax, midY-dmax)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return xs[order[a]] > xs[order[b]]
	})

	super, err := newOpenTriangle(xs, ys, n, n+1, n+2)
	if err != nil {
		return nil, err
	}
	open := []openTriangle{super}
	var closed []openTriangle
	var edges []edge

	for i := len(order) - 1; i >= 0; i-- {
		pi := order[i]
		px := xs[pi]
		py := ys[pi]
		edges = edges[:0]

		// Partition open triangles: close those the sweep has passed,
		// break up those whose circumcircle contains the point.
		kept := open[:0]
		for _, t := range open {
			ddx := px - t.centerX
			if ddx > 0 && ddx*ddx > t.radiusSq+epsilon {
				closed = append(closed, t)
				continue
			}
			ddy := py - t.centerY
			if ddx*ddx+ddy*ddy-t.radiusSq <= epsilon {
				edges = append(edges,
					edge{t.p1, t.p2},
					edge{t.p2, t.p3},
					edge{t.p3, t.p1},
				)
				continue
			}
			kept = append(kept, t)
		}
		open = kept

		// An edge shared by two removed triangles is interior to the
		// cavity and must not seed a new triangle.
		edges = removeSharedEdges(edges)

		for _, e := range edges {
			t, err := newOpenTriangle(xs, ys, e.a, e.b, pi)
			if err != nil {
				return nil, err
			}
			open = append(open, t)
		}
	}

	closed = append(closed, open...)

	var out []triangle
	for _, t := range closed {
		if t.p1 >= n || t.p2 >= n || t.p3 >= n {
			continue
		}
		tri, err := finishTriangle(xs, ys, t)
		if err != nil {
			return nil, err
		}
		out = append(out, tri)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: triangulation produced no triangles", ErrDegenerateInput)
	}
	return out, nil
}

// newOpenTriangle computes the circumcircle via perpendicular-bisector
// intersection. Near-horizontal edges take a special branch to avoid
// dividing by a vanishing delta-Y; radius is kept squared throughout.
func newOpenTriangle(xs, ys []float64, p1, p2, p3 int) (openTriangle, error) {
	x1, y1 := xs[p1], ys[p1]
	x2, y2 := xs[p2], ys[p2]
	x3, y3 := xs[p3], ys[p3]

	dy12 := math.Abs(y2 - y1)
	dy23 := math.Abs(y3 - y2)

	var xc, yc float64
	switch {
	case dy12 < epsilon && dy23 < epsilon:
		return openTriangle{}, fmt.Errorf("%w: collinear points (%g,%g) (%g,%g) (%g,%g)",
			ErrDegenerateInput, x1, y1, x2, y2, x3, y3)
	case dy12 < epsilon:
		m2 := -(x3 - x2) / (y3 - y2)
		mx2 := (x2 + x3) / 2
		my2 := (y2 + y3) / 2
		xc = (x2 + x1) / 2
		yc = m2*(xc-mx2) + my2
	case dy23 < epsilon:
		m1 := -(x2 - x1) / (y2 - y1)
		mx1 := (x1 + x2) / 2
		my1 := (y1 + y2) / 2
		xc = (x3 + x2) / 2
		yc = m1*(xc-mx1) + my1
	default:
		m1 := -(x2 - x1) / (y2 - y1)
		m2 := -(x3 - x2) / (y3 - y2)
		mx1 := (x1 + x2) / 2
		my1 := (y1 + y2) / 2
		mx2 := (x2 + x3) / 2
		my2 := (y2 + y3) / 2
		xc = (m1*mx1 - m2*mx2 + my2 - my1) / (m1 - m2)
		yc = m1*(xc-mx1) + my1
	}

	ddx := x2 - xc
	ddy := y2 - yc
	rsq := ddx*ddx + ddy*ddy
	if rsq == 0 || math.IsNaN(rsq) || math.IsInf(rsq, 0) {
		return openTriangle{}, fmt.Errorf("%w: zero-area circumcircle", ErrDegenerateInput)
	}
	return openTriangle{p1: p1, p2: p2, p3: p3, centerX: xc, centerY: yc, radiusSq: rsq}, nil
}

// finishTriangle caches the inverse barycentric transform for O(1)
// weight computation at query time.
func finishTriangle(xs, ys []float64, t openTriangle) (triangle, error) {
	x1, y1 := xs[t.p1], ys[t.p1]
	x2, y2 := xs[t.p2], ys[t.p2]
	x3, y3 := xs[t.p3], ys[t.p3]

	m := mat.NewDense(2, 2, []float64{
		x1 - x3, x2 - x3,
		y1 - y3, y2 - y3,
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return triangle{}, fmt.Errorf("%w: singular barycentric transform: %v", ErrDegenerateInput, err)
	}
	return triangle{
		p1:    t.p1,
		p2:    t.p2,
		p3:    t.p3,
		inv00: inv.At(0, 0),
		inv01: inv.At(0, 1),
		inv10: inv.At(1, 0),
		inv11: inv.At(1, 1),
	}, nil
}

func removeSharedEdges(edges []edge) []edge {
	out := make([]edge, 0, len(edges))
	for i, e := range edges {
		shared := false
		for j, o := range edges {
			if i == j {
				continue
			}
			if (e.a == o.a && e.b == o.b) || (e.a == o.b && e.b == o.a) {
				shared = true
				break
			}
		}
		if !shared {
			out = append(out, e)
		}
	}
	return out
}
