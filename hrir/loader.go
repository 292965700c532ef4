package hrir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// ErrBadAsset indicates the binary HRIR asset does not match the expected
// record layout.
var ErrBadAsset = errors.New("hrir: malformed HRIR asset")

var sampleSizeToken = regexp.MustCompile(`(\d+)`)

// LoadFile reads a binary HRIR asset. The impulse-response length per ear
// is encoded as a numeric token in the file name (e.g. "hrtf_128.bin")
// and must match the file's record stride.
func LoadFile(path string) (*Dataset, error) {
	tok := sampleSizeToken.FindString(filepath.Base(path))
	if tok == "" {
		return nil, fmt.Errorf("%w: no sample-size token in file name %q", ErrBadAsset, filepath.Base(path))
	}
	sampleSize, err := strconv.Atoi(tok)
	if err != nil || sampleSize <= 0 {
		return nil, fmt.Errorf("%w: bad sample-size token %q", ErrBadAsset, tok)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadDataset(f, sampleSize)
}

// ReadDataset parses a little-endian float32 stream of measurement
// records. Each direction contributes two consecutive records of
// [elevation, azimuth, sampleSize samples]: the left ear first, then the
// right ear at the same direction.
func ReadDataset(r io.Reader, sampleSize int) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hrir: read asset: %w", err)
	}

	recordBytes := (2 + sampleSize) * 4
	pairBytes := 2 * recordBytes
	if len(raw) == 0 || len(raw)%pairBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte record pairs for sample size %d",
			ErrBadAsset, len(raw), pairBytes, sampleSize)
	}

	numDirections := len(raw) / pairBytes
	points := make([]Point, 0, numDirections+32)
	samples := make([]float32, 0, numDirections*2*sampleSize)

	off := 0
	readF32 := func() float64 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		return float64(v)
	}

	for i := 0; i < numDirections; i++ {
		elevation := readF32()
		azimuth := readF32()

		bufferIndex := len(samples)
		for s := 0; s < sampleSize; s++ {
			samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
			off += 4
		}

		rElevation := readF32()
		rAzimuth := readF32()
		if rElevation != elevation || rAzimuth != azimuth {
			return nil, fmt.Errorf("%w: right-ear record %d direction (%g,%g) does not match left (%g,%g)",
				ErrBadAsset, i, rAzimuth, rElevation, azimuth, elevation)
		}
		for s := 0; s < sampleSize; s++ {
			samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
			off += 4
		}

		points = append(points, Point{
			Azimuth:     wrapAzimuth(azimuth),
			Elevation:   elevation,
			BufferIndex: bufferIndex,
		})
	}

	points = closeAzimuthSeam(points)
	return NewDataset(points, samples, sampleSize)
}

// closeAzimuthSeam duplicates the 0-degree azimuth column at 360 degrees
// so queries just below the wrap point still fall inside a triangle. The
// duplicates share the originals' sample blocks.
func closeAzimuthSeam(points []Point) []Point {
	for _, p := range points {
		if p.Azimuth == 0 {
			points = append(points, Point{
				Azimuth:     360,
				Elevation:   p.Elevation,
				BufferIndex: p.BufferIndex,
			})
		}
	}
	return points
}
