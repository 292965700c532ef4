package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	dspspatial "github.com/cwbudde/algo-dsp/dsp/effects/spatial"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-spatial/analysis"
	"github.com/cwbudde/algo-spatial/hrir"
	"github.com/cwbudde/algo-spatial/player"
	"github.com/cwbudde/algo-spatial/preset"
)

func main() {
	// Command-line flags
	input := flag.String("input", "", "Input audio file (wav/mp3/ogg). Empty renders a 440 Hz test tone")
	hrtfPath := flag.String("hrtf", "", "HRIR binary asset path override (optional when the preset names one)")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	duration := flag.Float64("duration", 4.0, "Render duration in seconds")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	orbitPeriod := flag.Float64("orbit-period", 4.0, "Seconds per full orbit around the listener")
	radius := flag.Float64("radius", 2.0, "Orbit radius in meters")
	height := flag.Float64("height", 0.0, "Source height above the listener in meters")
	volume := flag.Float64("volume", 1.0, "Playback volume (0-1)")
	gainDB := flag.Float64("gain-db", 0, "Master output gain in dB")
	crosstalk := flag.Bool("crosstalk", false, "Apply a loudspeaker crosstalk stage to the binaural output")
	report := flag.Bool("report", false, "Print interaural time and level metrics of the rendered output")
	flag.Parse()

	settings := preset.NewDefaultSettings()
	if *presetPath != "" {
		loaded, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		settings = loaded
	}
	if *hrtfPath != "" {
		settings.HRTFBinPath = *hrtfPath
	}
	if settings.HRTFBinPath == "" {
		fmt.Fprintln(os.Stderr, "Error: no HRIR asset given (use -hrtf or a preset with hrtf_bin_path)")
		os.Exit(1)
	}

	dataset, err := hrir.LoadFile(settings.HRTFBinPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading HRIR asset %q: %v\n", settings.HRTFBinPath, err)
		os.Exit(1)
	}

	ctx := player.NewContext(*sampleRate, 128)
	m := player.NewManager(ctx, player.Options{
		Voices:  settings.Voices,
		Dataset: dataset,
	})
	m.SetGlobalVolume(player.ChannelSfx, settings.SfxVolume, 0)
	m.SetGlobalVolume(player.ChannelMusic, settings.MusicVolume, 0)
	m.SetGlobalVolume(player.ChannelMaster, settings.MasterVolume, 0)
	if *gainDB != 0 {
		m.SetGlobalVolumeDB(player.ChannelMaster, float32(*gainDB), 0)
	}
	ctx.Resume()

	const sourceID = 1
	if *input != "" {
		if err := m.Load(sourceID, *input); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading input %q: %v\n", *input, err)
			os.Exit(1)
		}
	} else {
		tonePath, cleanup, err := writeTestTone(*sampleRate, *duration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error synthesizing test tone: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		if err := m.Load(sourceID, tonePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading test tone: %v\n", err)
			os.Exit(1)
		}
	}

	opts := settings.PannerOptions()
	pid := m.Play(sourceID, &player.PlayConfig{
		Volume:  float32(*volume),
		Loop:    true,
		Channel: player.ChannelSfx,
		Spatial: player.SpatialWith(0, *height, *radius, opts),
	})
	if pid == player.InvalidPlayID {
		fmt.Fprintln(os.Stderr, "Error: could not start playback voice")
		os.Exit(1)
	}

	fmt.Printf("Rendering %.2f seconds at %d Hz, orbit period %.2fs, radius %.2fm (HRIR: %s)...\n",
		*duration, *sampleRate, *orbitPeriod, *radius, settings.HRTFBinPath)

	totalFrames := int(float64(*sampleRate) * (*duration))
	if totalFrames < 1 {
		totalFrames = 1
	}
	blockSize := ctx.BlockSize()
	samples := make([]float32, 0, totalFrames*2)
	block := make([]float32, blockSize*2)

	framesRendered := 0
	for framesRendered < totalFrames {
		framesToRender := blockSize
		if framesRendered+framesToRender > totalFrames {
			framesToRender = totalFrames - framesRendered
		}

		// Engine coordinates are Y-up/Z-forward. Orbit in the horizontal
		// X/Z plane at the configured height.
		t := float64(framesRendered) / float64(*sampleRate)
		angle := 2 * math.Pi * t / *orbitPeriod
		m.SetPosition(pid, *radius*math.Sin(angle), *height, *radius*math.Cos(angle))

		out := block[:framesToRender*2]
		m.Render(out)
		samples = append(samples, out...)
		framesRendered += framesToRender
	}

	if *crosstalk {
		sim, err := dspspatial.NewHRTFCrosstalkSimulator(float64(*sampleRate))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating crosstalk stage: %v\n", err)
			os.Exit(1)
		}
		for i := 0; i+1 < len(samples); i += 2 {
			l, r := sim.ProcessStereo(float64(samples[i]), float64(samples[i+1]))
			samples[i] = float32(l)
			samples[i+1] = float32(r)
		}
	}

	if *report {
		left := make([]float32, 0, len(samples)/2)
		right := make([]float32, 0, len(samples)/2)
		for i := 0; i+1 < len(samples); i += 2 {
			left = append(left, samples[i])
			right = append(right, samples[i+1])
		}
		cues := analysis.CompareEars(left, right, *sampleRate)
		fmt.Printf("Interaural cues: ITD %+d samples (%.3f ms), ILD %+.2f dB (L rms %.4f, R rms %.4f)\n",
			cues.ITDSamples, cues.ITDSeconds*1000, cues.ILDDB, cues.LeftRMS, cues.RightRMS)
	}

	if err := writeStereoWAV(*output, *sampleRate, samples); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, totalFrames)
}

// writeTestTone renders a mono 440 Hz sine to a temp WAV so the default
// run works without an input file.
func writeTestTone(sampleRate int, duration float64) (string, func(), error) {
	frames := int(float64(sampleRate) * duration)
	if frames < 1 {
		frames = 1
	}
	data := make([]float32, frames)
	w := 2 * math.Pi * 440 / float64(sampleRate)
	for i := range data {
		data[i] = 0.5 * float32(math.Sin(w*float64(i)))
	}

	f, err := os.CreateTemp("", "spatial-tone-*.wav")
	if err != nil {
		return "", nil, err
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func writeStereoWAV(path string, sampleRate int, samples []float32) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 2, 1)
	defer encoder.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return encoder.Write(buf)
}
