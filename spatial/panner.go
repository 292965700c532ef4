package spatial

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-spatial/dsp"
)

// Interpolator supplies stereo impulse responses for a query direction.
// *hrir.Dataset satisfies it.
type Interpolator interface {
	SampleSize() int
	InterpolateInto(left, right []float32, azimuth, elevation float64) error
}

// directionThreshold is the smallest direction change (degrees) worth a
// new interpolation query.
const directionThreshold = 0.1

// Options configures a Panner. Zero values select the defaults.
type Options struct {
	// CrossfadeSeconds is the kernel crossfade window, clamped to
	// [0.128, 0.256]. Defaults to 0.15.
	CrossfadeSeconds float64

	// CrossoverHz splits the signal: content above is convolved with the
	// HRIR, content below bypasses to both ears. Defaults to 200.
	CrossoverHz float32

	// RefDistance and Rolloff shape distance attenuation. RefDistance
	// defaults to 1, Rolloff to 1.
	RefDistance float64
	Rolloff     float64

	// LowBandDelay delays the bypass path (samples) to roughly align it
	// with the HRIR group delay. Defaults to 16.
	LowBandDelay int
}

// Panner renders a mono signal binaurally. Two convolution stages share
// the high-passed input; direction changes load the new kernel into the
// idle stage and crossfade, so kernels never switch audibly.
type Panner struct {
	interp     Interpolator
	sampleRate int
	partSize   int

	crossfadeSamples int
	refDistance      float64
	rolloff          float64

	stages  [2]*convStage
	current int

	highpass        *dsp.Biquad
	lowpass         *dsp.Biquad
	lowDelay        *dsp.DelayLine
	lowDelaySamples int
	distGain        *dsp.GainRamp

	kernelL []float32
	kernelR []float32
	hpBuf   []float32
	lowBuf  []float32

	baseline    Direction
	hasBaseline bool
}

// NewPanner creates a panner fed by the given interpolator.
func NewPanner(interp Interpolator, sampleRate int, opts Options) (*Panner, error) {
	if interp == nil {
		return nil, fmt.Errorf("spatial: nil interpolator")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spatial: invalid sample rate %d", sampleRate)
	}

	crossfade := opts.CrossfadeSeconds
	if crossfade == 0 {
		crossfade = 0.15
	}
	if crossfade < 0.128 {
		crossfade = 0.128
	}
	if crossfade > 0.256 {
		crossfade = 0.256
	}
	crossover := opts.CrossoverHz
	if crossover <= 0 {
		crossover = 200
	}
	refDistance := opts.RefDistance
	if refDistance <= 0 {
		refDistance = 1
	}
	rolloff := opts.Rolloff
	if rolloff <= 0 {
		rolloff = 1
	}
	lowDelay := opts.LowBandDelay
	if lowDelay <= 0 {
		lowDelay = 16
	}

	const partSize = 128
	p := &Panner{
		interp:           interp,
		sampleRate:       sampleRate,
		partSize:         partSize,
		crossfadeSamples: int(crossfade * float64(sampleRate)),
		refDistance:      refDistance,
		rolloff:          rolloff,
		highpass:         dsp.NewHighpass(crossover, float32(sampleRate), 0.707),
		lowpass:          dsp.NewLowpass(crossover, float32(sampleRate), 0.707),
		lowDelay:         dsp.NewDelayLine(lowDelay + 1),
		lowDelaySamples:  lowDelay,
		distGain:         dsp.NewGainRamp(1),
		kernelL:          make([]float32, interp.SampleSize()),
		kernelR:          make([]float32, interp.SampleSize()),
	}
	p.stages[0] = newConvStage(partSize)
	p.stages[1] = newConvStage(partSize)
	return p, nil
}

// Update retargets the panner at a new direction. An unchanged direction
// is always a no-op, so repeated updates trigger exactly one crossfade;
// changes below 0.1 degrees are skipped while no crossfade is in flight.
// A direction the interpolator cannot resolve keeps the previous kernels.
func (p *Panner) Update(dir Direction) error {
	if p.hasBaseline {
		delta := angularDelta(dir, p.baseline)
		if delta == 0 || (delta < directionThreshold && !p.fading()) {
			return nil
		}
	}

	err := p.interp.InterpolateInto(p.kernelL, p.kernelR, dir.Azimuth, dir.Elevation)
	if err != nil {
		// Keep the previous interpolation.
		return nil
	}

	target := p.stages[1-p.current]
	if err := target.setKernel(p.kernelL, p.kernelR); err != nil {
		return err
	}

	if !p.hasBaseline {
		// First direction: no previous kernel to fade from.
		target.fade.SetTarget(1, 0)
		p.stages[p.current].fade.SetTarget(0, 0)
	} else {
		target.fade.SetTarget(1, p.crossfadeSamples)
		p.stages[p.current].fade.SetTarget(0, p.crossfadeSamples)
	}

	p.current = 1 - p.current
	p.baseline = dir
	p.hasBaseline = true
	return nil
}

// UpdateWithDistance retargets direction and distance attenuation
// together; the gain ramps over the same crossfade window.
func (p *Panner) UpdateWithDistance(dir Direction, distance float64) error {
	p.distGain.SetTarget(AttenuationGain(distance, p.refDistance, p.rolloff), p.crossfadeSamples)
	return p.Update(dir)
}

// UpdatePosition retargets from a listener-relative position in the host
// engine's Y-up/Z-forward frame.
func (p *Panner) UpdatePosition(x, y, z float64) error {
	dir, distance := DirectionFromPosition(x, y, z)
	return p.UpdateWithDistance(dir, distance)
}

// Direction returns the last accepted direction.
func (p *Panner) Direction() Direction {
	return p.baseline
}

func (p *Panner) fading() bool {
	return p.stages[0].fade.Ramping() || p.stages[1].fade.Ramping()
}

// Process renders the mono input into interleaved stereo.
func (p *Panner) Process(input []float32) []float32 {
	output := make([]float32, len(input)*2)
	if len(input) == 0 {
		return output
	}

	if len(p.hpBuf) < len(input) {
		p.hpBuf = make([]float32, len(input))
		p.lowBuf = make([]float32, len(input))
	}
	for i, s := range input {
		p.hpBuf[i] = p.highpass.Process(s)
		p.lowDelay.Write(p.lowpass.Process(s))
		p.lowBuf[i] = p.lowDelay.Read(p.lowDelaySamples)
	}

	p.stages[0].process(p.hpBuf[:len(input)])
	p.stages[1].process(p.hpBuf[:len(input)])

	for i := range input {
		g0 := p.stages[0].fade.Next()
		g1 := p.stages[1].fade.Next()
		dg := p.distGain.Next()
		low := p.lowBuf[i]
		l := p.stages[0].leftBuf[i]*g0 + p.stages[1].leftBuf[i]*g1 + low
		r := p.stages[0].rightBuf[i]*g0 + p.stages[1].rightBuf[i]*g1 + low
		output[i*2] = dsp.FlushDenormals(l * dg)
		output[i*2+1] = dsp.FlushDenormals(r * dg)
	}
	return output
}

// convStage is one convolution leg of the crossfade pair: a streaming
// overlap-add convolver per ear plus the stage's fade gain.
type convStage struct {
	partSize int

	leftOLA  *dspconv.StreamingOverlapAddT[float32, complex64]
	rightOLA *dspconv.StreamingOverlapAddT[float32, complex64]

	fade *dsp.GainRamp

	leftOut  []float32
	rightOut []float32
	leftBuf  []float32
	rightBuf []float32
}

func newConvStage(partSize int) *convStage {
	return &convStage{
		partSize: partSize,
		fade:     dsp.NewGainRamp(0),
		leftOut:  make([]float32, partSize),
		rightOut: make([]float32, partSize),
	}
}

// setKernel swaps in a new impulse-response pair. The convolvers are
// rebuilt, which clears their history; the caller crossfades this stage
// in from silence so the reset is inaudible.
func (s *convStage) setKernel(left, right []float32) error {
	if len(left) == 0 || len(right) == 0 {
		return fmt.Errorf("spatial: empty convolution kernel")
	}
	leftOLA, errL := dspconv.NewStreamingOverlapAdd32(left, s.partSize)
	rightOLA, errR := dspconv.NewStreamingOverlapAdd32(right, s.partSize)
	if errL != nil {
		return errL
	}
	if errR != nil {
		return errR
	}
	s.leftOLA = leftOLA
	s.rightOLA = rightOLA
	return nil
}

// process fills leftBuf/rightBuf with the convolved input, chunked to the
// partition size. A stage with no kernel yet outputs silence.
func (s *convStage) process(input []float32) {
	if len(s.leftBuf) < len(input) {
		s.leftBuf = make([]float32, len(input))
		s.rightBuf = make([]float32, len(input))
	}
	if s.leftOLA == nil {
		for i := range input {
			s.leftBuf[i] = 0
			s.rightBuf[i] = 0
		}
		return
	}

	processed := 0
	for processed < len(input) {
		blockEnd := processed + s.partSize
		if blockEnd > len(input) {
			blockEnd = len(input)
		}
		blockLen := blockEnd - processed
		block := input[processed:blockEnd]

		if blockLen < s.partSize {
			padded := make([]float32, s.partSize)
			copy(padded, block)
			block = padded
		}

		errL := s.leftOLA.ProcessBlockTo(s.leftOut, block)
		errR := s.rightOLA.ProcessBlockTo(s.rightOut, block)
		if errL != nil || errR != nil {
			// Fail-safe passthrough for this block.
			copy(s.leftBuf[processed:blockEnd], input[processed:blockEnd])
			copy(s.rightBuf[processed:blockEnd], input[processed:blockEnd])
			processed = blockEnd
			continue
		}

		copy(s.leftBuf[processed:blockEnd], s.leftOut[:blockLen])
		copy(s.rightBuf[processed:blockEnd], s.rightOut[:blockLen])
		processed = blockEnd
	}
}
