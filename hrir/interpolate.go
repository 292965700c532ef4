package hrir

import "math"

// Interpolate synthesizes the stereo impulse response for a query
// direction. Azimuth is wrapped into [0,360); elevation is clamped to the
// grid's measured range. The containing triangle's barycentric weights
// blend the three measured responses per ear.
//
// The returned slices are freshly allocated per call; see InterpolateInto
// for the allocation-free variant.
func (d *Dataset) Interpolate(azimuth, elevation float64) (left, right []float32, err error) {
	left = make([]float32, d.sampleSize)
	right = make([]float32, d.sampleSize)
	if err := d.InterpolateInto(left, right, azimuth, elevation); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// InterpolateInto writes the interpolated impulse response into left and
// right, which must each hold at least SampleSize samples. On ErrNotFound
// the destination buffers are left untouched so callers can keep the
// previous response.
func (d *Dataset) InterpolateInto(left, right []float32, azimuth, elevation float64) error {
	x := wrapAzimuth(azimuth)
	y := elevation
	if y < d.minElevation {
		y = d.minElevation
	}
	if y > d.maxElevation {
		y = d.maxElevation
	}

	for _, t := range d.triangles {
		p3 := d.points[t.p3]
		rx := x - p3.Azimuth
		ry := y - p3.Elevation
		g1 := t.inv00*rx + t.inv01*ry
		g2 := t.inv10*rx + t.inv11*ry
		g3 := 1 - g1 - g2
		if g1 < -epsilon || g2 < -epsilon || g3 < -epsilon {
			continue
		}
		d.blend(left, right, t, float32(g1), float32(g2), float32(g3))
		return nil
	}
	return ErrNotFound
}

func (d *Dataset) blend(left, right []float32, t triangle, g1, g2, g3 float32) {
	n := d.sampleSize
	l1 := d.samples[d.points[t.p1].BufferIndex:]
	l2 := d.samples[d.points[t.p2].BufferIndex:]
	l3 := d.samples[d.points[t.p3].BufferIndex:]
	r1 := l1[n:]
	r2 := l2[n:]
	r3 := l3[n:]
	for i := 0; i < n; i++ {
		left[i] = g1*l1[i] + g2*l2[i] + g3*l3[i]
		right[i] = g1*r1[i] + g2*r2[i] + g3*r3[i]
	}
}

func wrapAzimuth(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	return az
}
