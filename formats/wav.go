package formats

import (
	"fmt"
	"io"

	"github.com/cwbudde/wav"
)

// WAVDecoder decodes RIFF/WAVE assets.
type WAVDecoder struct{}

// Decode reads the full PCM payload and mixes it to mono.
func (WAVDecoder) Decode(r io.Reader) (*Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, fmt.Errorf("wav: reader must seek")
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: invalid file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("wav: invalid buffer")
	}
	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", buf.Format.SampleRate)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav: empty data")
	}

	return &Buffer{
		Data:       monoMix(buf.Data, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}
