// Command hrtf-convert packs a directory of raw KEMAR-style HRIR
// measurements into the engine's binary asset format.
//
// The input directory holds elev<N> subdirectories (N from -40 to 90 in
// steps of 10), each containing big-endian 16-bit .dat files named
// L<elev>e<azimuth>a.dat with a matching R file per direction. The
// output is a little-endian float32 stream of [elevation, azimuth,
// samples] records, left ear followed by right ear.
//
// Usage:
//
//	hrtf-convert [options] <input-directory>
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sampleSize = flag.Int("sample-size", 128, "Samples kept per impulse response")
	offset     = flag.Int("offset", 40, "Leading samples skipped in each measurement")
	outputDir  = flag.String("output-dir", ".", "Directory for the generated asset")
	verbose    = flag.Bool("verbose", false, "Show progress and details")
)

var azimuthToken = regexp.MustCompile(`e(.*?)a`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input-directory>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Packs elev* directories of .dat HRIR measurements into hrtf_<size>.bin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inputDir string) error {
	if *sampleSize < 1 {
		return fmt.Errorf("sample size must be positive, got %d", *sampleSize)
	}

	outPath := filepath.Join(*outputDir, fmt.Sprintf("hrtf_%d.bin", *sampleSize))
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	records := 0
	for elev := -40; elev <= 90; elev += 10 {
		dir := filepath.Join(inputDir, fmt.Sprintf("elev%d", elev))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			// The right ear is read alongside its left counterpart.
			if !strings.HasPrefix(name, "L") {
				continue
			}
			azimuth, err := parseAzimuth(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			left, err := readMeasurement(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			rightName := strings.Replace(name, "L", "R", 1)
			right, err := readMeasurement(filepath.Join(dir, rightName))
			if err != nil {
				return err
			}

			if err := writeRecord(out, float32(elev), azimuth, left); err != nil {
				return err
			}
			if err := writeRecord(out, float32(elev), azimuth, right); err != nil {
				return err
			}
			records++
			if *verbose {
				fmt.Printf("elev %d azimuth %.0f (%s, %s)\n", elev, azimuth, name, rightName)
			}
		}
	}

	if records == 0 {
		os.Remove(outPath)
		return fmt.Errorf("no measurement pairs found under %s", inputDir)
	}

	fmt.Printf("Wrote %s (%d directions)\n", outPath, records)
	return nil
}

func parseAzimuth(name string) (float32, error) {
	m := azimuthToken.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("no azimuth token in file name")
	}
	az, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("bad azimuth token %q", m[1])
	}
	return float32(az), nil
}

// readMeasurement decodes a big-endian int16 .dat file, windows it to
// the configured sample range, and normalizes to [-1, 1].
func readMeasurement(path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	total := len(raw) / 2
	if total < *offset+*sampleSize {
		return nil, fmt.Errorf("%s: %d samples, need %d", path, total, *offset+*sampleSize)
	}

	samples := make([]float32, *sampleSize)
	for i := range samples {
		j := (*offset + i) * 2
		v := int16(binary.BigEndian.Uint16(raw[j : j+2]))
		samples[i] = float32(v) / float32(math.MaxInt16)
	}
	return samples, nil
}

func writeRecord(out *os.File, elevation, azimuth float32, samples []float32) error {
	buf := make([]byte, 0, (2+len(samples))*4)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(elevation))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(azimuth))
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s))
	}
	_, err := out.Write(buf)
	return err
}
