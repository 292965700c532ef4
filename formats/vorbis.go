package formats

import (
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes ogg/vorbis assets.
type VorbisDecoder struct{}

// Decode reads the whole stream and mixes it to mono.
func (VorbisDecoder) Decode(r io.Reader) (*Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return &Buffer{
		Data:       monoMix(data, format.Channels),
		SampleRate: format.SampleRate,
	}, nil
}
