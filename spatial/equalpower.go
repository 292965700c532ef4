package spatial

import (
	"math"

	"github.com/cwbudde/algo-spatial/dsp"
)

// EqualPowerPanner spreads a mono signal across two channels with
// constant perceived power. Pan moves are ramped to avoid zipper noise.
type EqualPowerPanner struct {
	leftGain  *dsp.GainRamp
	rightGain *dsp.GainRamp
	rampLen   int
}

// NewEqualPowerPanner creates a centered panner. rampSamples bounds how
// fast pan moves are applied.
func NewEqualPowerPanner(rampSamples int) *EqualPowerPanner {
	g := float32(math.Sqrt2 / 2)
	return &EqualPowerPanner{
		leftGain:  dsp.NewGainRamp(g),
		rightGain: dsp.NewGainRamp(g),
		rampLen:   rampSamples,
	}
}

// SetPan positions the signal between full left (-1) and full right (+1).
func (p *EqualPowerPanner) SetPan(pan float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	p.leftGain.SetTarget(float32(math.Cos(angle)), p.rampLen)
	p.rightGain.SetTarget(float32(math.Sin(angle)), p.rampLen)
}

// SetDirection derives the pan position from a grid-convention azimuth:
// 90 degrees is hard right, 270 hard left, front and back are centered.
func (p *EqualPowerPanner) SetDirection(dir Direction) {
	p.SetPan(math.Sin(dir.Azimuth * math.Pi / 180))
}

// Process pans the mono input into interleaved stereo.
func (p *EqualPowerPanner) Process(input []float32) []float32 {
	output := make([]float32, len(input)*2)
	for i, s := range input {
		output[i*2] = s * p.leftGain.Next()
		output[i*2+1] = s * p.rightGain.Next()
	}
	return output
}
