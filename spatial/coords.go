// Package spatial turns a mono signal into a spatialized stereo signal.
// The HRTF panner convolves the signal with direction-dependent impulse
// responses and crossfades between convolution kernels as the direction
// moves; the equal-power panner is the cheap non-HRTF alternative.
package spatial

import "math"

// Direction is a query direction in the measurement-grid convention:
// azimuth in [0,360) degrees increasing clockwise, elevation in degrees.
type Direction struct {
	Azimuth   float64
	Elevation float64
}

// DirectionFromPosition maps a listener-relative source position in the
// host engine's Y-up/Z-forward frame to a grid direction and a distance.
// Internally the panner frame is X-right/Y-forward/Z-up, reached via
// (x, y, z)_panner = (x, z, -y)_engine.
func DirectionFromPosition(x, y, z float64) (Direction, float64) {
	px := x
	py := z
	pz := -y

	azimuth := math.Atan2(py, px)*180/math.Pi + 90
	azimuth = math.Mod(azimuth, 360)
	if azimuth < 0 {
		azimuth += 360
	}

	horiz := math.Hypot(px, py)
	elevation := math.Atan2(pz, horiz) * 180 / math.Pi

	distance := math.Sqrt(x*x + y*y + z*z)
	return Direction{Azimuth: azimuth, Elevation: elevation}, distance
}

// angularDelta returns the largest per-axis angular change between two
// directions, with azimuth measured across the 0/360 seam.
func angularDelta(a, b Direction) float64 {
	daz := math.Abs(a.Azimuth - b.Azimuth)
	if daz > 180 {
		daz = 360 - daz
	}
	del := math.Abs(a.Elevation - b.Elevation)
	return math.Max(daz, del)
}

// AttenuationGain computes inverse-distance attenuation with rolloff.
// Distances inside refDistance are not amplified.
func AttenuationGain(distance, refDistance, rolloff float64) float32 {
	if refDistance <= 0 {
		return 1
	}
	d := math.Max(distance, refDistance)
	return float32(refDistance / (refDistance + rolloff*(d-refDistance)))
}
