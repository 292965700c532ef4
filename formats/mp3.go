package formats

import (
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1 layer 3 assets.
type MP3Decoder struct{}

// Decode reads the whole stream. go-mp3 emits 16-bit little-endian
// stereo regardless of the source channel layout.
func (MP3Decoder) Decode(r io.Reader) (*Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	samples := len(raw) / 2
	interleaved := make([]float32, samples)
	for i := 0; i < samples; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		interleaved[i] = float32(v) / 32768.0
	}

	return &Buffer{
		Data:       monoMix(interleaved, 2),
		SampleRate: dec.SampleRate(),
	}, nil
}
