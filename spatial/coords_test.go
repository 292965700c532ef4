package spatial

import (
	"math"
	"testing"
)

func TestDirectionFromPosition(t *testing.T) {
	cases := []struct {
		name      string
		x, y, z   float64
		azimuth   float64
		elevation float64
		distance  float64
	}{
		{"right", 1, 0, 0, 90, 0, 1},
		{"forward", 0, 0, 1, 180, 0, 1},
		{"left", -1, 0, 0, 270, 0, 1},
		{"back", 0, 0, -1, 0, 0, 1},
		{"below axis", 0, 1, 0, 90, -90, 1},
		{"above axis", 0, -1, 0, 90, 90, 1},
		{"forward-right at distance", 2, 0, 2, 135, 0, 2 * math.Sqrt2},
	}

	for _, c := range cases {
		dir, dist := DirectionFromPosition(c.x, c.y, c.z)
		if math.Abs(dir.Azimuth-c.azimuth) > 1e-9 {
			t.Fatalf("%s: azimuth = %f, want %f", c.name, dir.Azimuth, c.azimuth)
		}
		if math.Abs(dir.Elevation-c.elevation) > 1e-9 {
			t.Fatalf("%s: elevation = %f, want %f", c.name, dir.Elevation, c.elevation)
		}
		if math.Abs(dist-c.distance) > 1e-9 {
			t.Fatalf("%s: distance = %f, want %f", c.name, dist, c.distance)
		}
	}
}

func TestDirectionAzimuthRange(t *testing.T) {
	for angle := 0.0; angle < 2*math.Pi; angle += 0.1 {
		dir, _ := DirectionFromPosition(math.Cos(angle), 0, math.Sin(angle))
		if dir.Azimuth < 0 || dir.Azimuth >= 360 {
			t.Fatalf("azimuth %f outside [0,360) for angle %f", dir.Azimuth, angle)
		}
	}
}

func TestAngularDeltaWrapsSeam(t *testing.T) {
	a := Direction{Azimuth: 359.95}
	b := Direction{Azimuth: 0.05}
	if d := angularDelta(a, b); math.Abs(d-0.1) > 1e-9 {
		t.Fatalf("seam delta = %f, want 0.1", d)
	}

	c := Direction{Azimuth: 10, Elevation: 5}
	e := Direction{Azimuth: 11, Elevation: 9}
	if d := angularDelta(c, e); math.Abs(d-4) > 1e-9 {
		t.Fatalf("delta = %f, want 4 (elevation dominates)", d)
	}
}

func TestAttenuationGain(t *testing.T) {
	cases := []struct {
		distance, ref, rolloff float64
		want                   float64
	}{
		{1, 1, 1, 1},
		{0.25, 1, 1, 1},
		{3, 1, 1, 1.0 / 3},
		{3, 1, 2, 0.2},
		{10, 2, 1, 0.2},
	}
	for _, c := range cases {
		got := float64(AttenuationGain(c.distance, c.ref, c.rolloff))
		if math.Abs(got-c.want) > 1e-6 {
			t.Fatalf("AttenuationGain(%f,%f,%f) = %f, want %f", c.distance, c.ref, c.rolloff, got, c.want)
		}
	}
}
