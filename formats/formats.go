// Package formats decodes audio assets into mono PCM buffers at the
// engine sample rate. Decoders register themselves by file extension;
// wav, mp3 and ogg/vorbis are built in.
package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
)

var (
	// ErrDecode wraps any decoder failure.
	ErrDecode = errors.New("formats: decode failed")

	// ErrUnknownFormat indicates no decoder is registered for the
	// file's extension.
	ErrUnknownFormat = errors.New("formats: unknown format")
)

// Buffer is a decoded mono PCM asset.
type Buffer struct {
	Data       []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Data)) / float64(b.SampleRate)
}

// Decoder turns an encoded byte stream into a mono PCM buffer at the
// source's native rate.
type Decoder interface {
	Decode(r io.Reader) (*Buffer, error)
}

// Registry maps file extensions to decoders.
type Registry struct {
	mtx    sync.Mutex
	codecs map[string]Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register installs a decoder for an extension (without the dot).
func (r *Registry) Register(ext string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.codecs[strings.ToLower(ext)] = d
}

// Get looks up the decoder for an extension.
func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	d, ok := r.codecs[strings.ToLower(ext)]
	return d, ok
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register("wav", WAVDecoder{})
	r.Register("mp3", MP3Decoder{})
	r.Register("ogg", VorbisDecoder{})
	return r
}()

// Default returns the registry with the built-in decoders.
func Default() *Registry {
	return defaultRegistry
}

// DecodeFile decodes path into a mono buffer and resamples it to
// targetRate when the source rate differs.
func DecodeFile(path string, targetRate int) (*Buffer, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	dec, ok := defaultRegistry.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer f.Close()

	buf, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return Resample(buf, targetRate)
}

// Resample converts a buffer to the target rate. Buffers already at the
// target rate are returned unchanged.
func Resample(buf *Buffer, targetRate int) (*Buffer, error) {
	if targetRate <= 0 || buf.SampleRate == targetRate {
		return buf, nil
	}
	r, err := dspresample.NewForRates(
		float64(buf.SampleRate),
		float64(targetRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	in64 := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return &Buffer{Data: out, SampleRate: targetRate}, nil
}

// monoMix averages interleaved channels down to mono.
func monoMix(data []float32, channels int) []float32 {
	if channels <= 1 {
		return data
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	scale := 1.0 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		out[i] = sum * scale
	}
	return out
}
