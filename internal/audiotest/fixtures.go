// Package audiotest builds deterministic fixtures for tests and example
// tools: synthetic HRIR measurement grids, their binary asset encoding,
// and simple signal generators.
package audiotest

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/algo-spatial/hrir"
)

// Grid synthesizes a rectangular measurement grid. Azimuths run from 0
// (inclusive) to 360 (exclusive) in azStep degrees; elevations from
// elMin to elMax inclusive in elStep degrees.
//
// The impulse responses are direction-coded so interpolation is easy to
// verify: sample 0 of the left ear is azimuth/360, sample 0 of the right
// ear is (elevation+90)/180, and sample 1 of both ears is 1. Barycentric
// interpolation reproduces linear functions exactly, so an interpolated
// response directly reveals the weights applied.
func Grid(azStep, elMin, elMax, elStep float64, sampleSize int) ([]hrir.Point, []float32) {
	var points []hrir.Point
	var samples []float32

	for el := elMin; el <= elMax+1e-9; el += elStep {
		for az := 0.0; az < 360-1e-9; az += azStep {
			left := make([]float32, sampleSize)
			right := make([]float32, sampleSize)
			left[0] = float32(az / 360)
			right[0] = float32((el + 90) / 180)
			if sampleSize > 1 {
				left[1] = 1
				right[1] = 1
			}

			points = append(points, hrir.Point{
				Azimuth:     az,
				Elevation:   el,
				BufferIndex: len(samples),
			})
			samples = append(samples, left...)
			samples = append(samples, right...)
		}
	}
	return points, samples
}

// EncodeBin serializes a grid into the binary HRIR asset layout:
// little-endian float32 records of [elevation, azimuth, samples], the
// left-ear record immediately followed by its right-ear counterpart.
func EncodeBin(points []hrir.Point, samples []float32, sampleSize int) []byte {
	out := make([]byte, 0, len(points)*2*(2+sampleSize)*4)
	putF32 := func(v float32) {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	for _, p := range points {
		for ear := 0; ear < 2; ear++ {
			putF32(float32(p.Elevation))
			putF32(float32(p.Azimuth))
			start := p.BufferIndex + ear*sampleSize
			for _, s := range samples[start : start+sampleSize] {
				putF32(s)
			}
		}
	}
	return out
}

// Sine generates n samples of a sine tone.
func Sine(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	w := 2 * math.Pi * freq / float64(sampleRate)
	for i := range out {
		out[i] = float32(math.Sin(w * float64(i)))
	}
	return out
}

// Impulse generates a unit impulse of length n.
func Impulse(n int) []float32 {
	out := make([]float32, n)
	if n > 0 {
		out[0] = 1
	}
	return out
}
